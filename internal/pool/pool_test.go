package pool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeItem struct {
	handle   uint64
	label    string
	bound    []uint64
	inUse    atomic.Bool
	disposed bool
}

func (f *fakeItem) Reset() {
	f.handle = 0
	f.label = ""
	f.bound = nil
}

func (f *fakeItem) Dispose() { f.disposed = true }

func newFakePool() (*Pool[*fakeItem], *int) {
	created := 0
	p := New("fake", func() (*fakeItem, error) {
		created++
		return &fakeItem{}, nil
	}, nil)
	return p, &created
}

func TestGetOrCreateReusesIdle(t *testing.T) {
	p, created := newFakePool()

	a, err := p.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if !p.TryReturnToPool(a) {
		t.Fatal("TryReturnToPool() = false, want true")
	}
	b, err := p.GetOrCreate()
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("GetOrCreate() did not reuse the idle instance")
	}
	if *created != 1 {
		t.Errorf("factory called %d times, want 1", *created)
	}

	s := p.Stats()
	if s.Created != 1 || s.Reused != 1 || s.CheckedOut != 1 || s.Idle != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestCheckedOutCount(t *testing.T) {
	p, _ := newFakePool()
	var items []*fakeItem
	gets, returns := 0, 0

	ops := []bool{true, true, false, true, false, false, true, true, false}
	for _, get := range ops {
		if get {
			it, err := p.GetOrCreate()
			if err != nil {
				t.Fatal(err)
			}
			items = append(items, it)
			gets++
		} else {
			it := items[len(items)-1]
			items = items[:len(items)-1]
			if p.TryReturnToPool(it) {
				returns++
			}
		}
		if out := p.Stats().CheckedOut; out != gets-returns {
			t.Fatalf("CheckedOut = %d, want %d", out, gets-returns)
		}
	}
}

func TestDoubleRelease(t *testing.T) {
	p, _ := newFakePool()
	it, err := p.GetOrCreate()
	if err != nil {
		t.Fatal(err)
	}

	if !p.TryReturnToPool(it) {
		t.Fatal("first TryReturnToPool() = false, want true")
	}
	if p.TryReturnToPool(it) {
		t.Fatal("second TryReturnToPool() = true, want false")
	}

	s := p.Stats()
	if s.Idle != 1 {
		t.Errorf("Idle = %d after double release, want 1", s.Idle)
	}
	if s.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", s.Rejected)
	}

	// The instance must be handed out once, not twice.
	a, _ := p.GetOrCreate()
	b, _ := p.GetOrCreate()
	if a == b {
		t.Error("double release let the same instance be checked out twice")
	}
}

func TestReleaseForeignInstance(t *testing.T) {
	p, _ := newFakePool()
	if p.TryReturnToPool(&fakeItem{}) {
		t.Error("TryReturnToPool(foreign) = true, want false")
	}
	if p.Stats().Idle != 0 {
		t.Error("foreign instance entered the idle set")
	}
}

func TestResetMatchesFreshInstance(t *testing.T) {
	p, _ := newFakePool()
	it, _ := p.GetOrCreate()
	it.handle = 42
	it.label = "frame"
	it.bound = []uint64{1, 2}
	p.TryReturnToPool(it)

	got, _ := p.GetOrCreate()
	fresh := &fakeItem{}
	if got.handle != fresh.handle || got.label != fresh.label || got.bound != nil {
		t.Errorf("reused instance = {%d %q %v}, want fresh state", got.handle, got.label, got.bound)
	}
}

func TestFactoryFailure(t *testing.T) {
	boom := errors.New("boom")
	p := New("failing", func() (*fakeItem, error) { return nil, boom }, nil)

	it, err := p.GetOrCreate()
	if !errors.Is(err, boom) {
		t.Fatalf("GetOrCreate() error = %v, want %v", err, boom)
	}
	if it != nil {
		t.Error("GetOrCreate() returned an instance on factory failure")
	}
	if p.Stats().CheckedOut != 0 {
		t.Error("failed creation counted as checked out")
	}
}

func TestPrewarm(t *testing.T) {
	p, created := newFakePool()
	if err := p.Prewarm(3); err != nil {
		t.Fatalf("Prewarm() error = %v", err)
	}
	if *created != 3 || p.Stats().Idle != 3 {
		t.Fatalf("after Prewarm(3): created=%d idle=%d", *created, p.Stats().Idle)
	}
	for range 3 {
		if _, err := p.GetOrCreate(); err != nil {
			t.Fatal(err)
		}
	}
	if *created != 3 {
		t.Errorf("GetOrCreate created new instances after prewarm: %d", *created)
	}
}

func TestPrewarmAfterConcurrentClose(t *testing.T) {
	var p *Pool[*fakeItem]
	var made []*fakeItem
	p = New("closing", func() (*fakeItem, error) {
		// Close lands while the factory runs.
		if len(made) == 0 {
			if err := p.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		}
		it := &fakeItem{}
		made = append(made, it)
		return it, nil
	}, nil)

	if err := p.Prewarm(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("Prewarm() error = %v, want ErrClosed", err)
	}
	if len(made) != 1 {
		t.Fatalf("factory called %d times, want 1", len(made))
	}
	if !made[0].disposed {
		t.Error("instance created during Close was not disposed")
	}
	if s := p.Stats(); s.Idle != 0 {
		t.Errorf("closed pool holds %d idle instances, want 0", s.Idle)
	}
}

func TestCloseDisposesIdle(t *testing.T) {
	p, _ := newFakePool()
	a, _ := p.GetOrCreate()
	b, _ := p.GetOrCreate()
	p.TryReturnToPool(a)

	err := p.Close()
	if !errors.Is(err, ErrLeaked) {
		t.Fatalf("Close() error = %v, want ErrLeaked", err)
	}
	if !a.disposed {
		t.Error("idle instance not disposed on Close")
	}
	if b.disposed {
		t.Error("checked-out instance disposed while still in use")
	}

	// Late return of the leaked instance disposes it.
	if !p.TryReturnToPool(b) {
		t.Error("late TryReturnToPool() = false, want true")
	}
	if !b.disposed {
		t.Error("late-returned instance not disposed")
	}

	if _, err := p.GetOrCreate(); !errors.Is(err, ErrClosed) {
		t.Errorf("GetOrCreate() after Close error = %v, want ErrClosed", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestConcurrentAcquireRelease(t *testing.T) {
	var created atomic.Int64
	p := New("concurrent", func() (*fakeItem, error) {
		created.Add(1)
		return &fakeItem{}, nil
	}, nil)

	const workers = 8
	const rounds = 500
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				it, err := p.GetOrCreate()
				if err != nil {
					t.Error(err)
					return
				}
				if !it.inUse.CompareAndSwap(false, true) {
					t.Error("instance handed to two callers at once")
					return
				}
				it.inUse.Store(false)
				if !p.TryReturnToPool(it) {
					t.Error("TryReturnToPool() = false")
					return
				}
			}
		}()
	}
	wg.Wait()

	s := p.Stats()
	if s.CheckedOut != 0 {
		t.Errorf("CheckedOut = %d after all returns", s.CheckedOut)
	}
	if int64(s.Idle) != created.Load() {
		t.Errorf("Idle = %d, created = %d", s.Idle, created.Load())
	}
	if created.Load() > workers {
		t.Errorf("created %d instances for %d workers", created.Load(), workers)
	}
}
