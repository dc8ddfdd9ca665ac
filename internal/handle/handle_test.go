package handle

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestOwnedLifecycle(t *testing.T) {
	var released []uint64
	h := NewOwned(uint64(7), func(v uint64) { released = append(released, v) })

	v, err := h.Get()
	if err != nil || v != 7 {
		t.Fatalf("Get() = %d, %v; want 7, nil", v, err)
	}
	if h.IsDisposed() {
		t.Fatal("IsDisposed() = true before Dispose")
	}

	if !h.Dispose() {
		t.Fatal("first Dispose() = false, want true")
	}
	if h.Dispose() {
		t.Fatal("second Dispose() = true, want false")
	}
	if len(released) != 1 || released[0] != 7 {
		t.Fatalf("release calls = %v, want [7]", released)
	}

	if _, err := h.Get(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Get() after Dispose error = %v, want ErrDisposed", err)
	}
}

func TestOwnedConcurrentDispose(t *testing.T) {
	var calls atomic.Int32
	h := NewOwned(uint64(1), func(uint64) { calls.Add(1) })

	var wg sync.WaitGroup
	var wins atomic.Int32
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h.Dispose() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 1 || wins.Load() != 1 {
		t.Errorf("release calls = %d, winning Dispose calls = %d; want 1, 1", calls.Load(), wins.Load())
	}
}

func TestOwnedNilRelease(t *testing.T) {
	h := NewOwned(uint64(3), nil)
	if !h.Dispose() {
		t.Error("Dispose() with nil release = false")
	}
}

func TestBorrowed(t *testing.T) {
	b := NewBorrowed[uint64]()

	if _, err := b.Get(); !errors.Is(err, ErrUnbound) {
		t.Fatalf("Get() unbound error = %v, want ErrUnbound", err)
	}

	b.Rebind(11)
	if v, err := b.Get(); err != nil || v != 11 {
		t.Fatalf("Get() = %d, %v; want 11, nil", v, err)
	}

	if b.Dispose() {
		t.Error("Borrowed.Dispose() = true, want false")
	}
	if v, err := b.Get(); err != nil || v != 11 {
		t.Errorf("Dispose released a borrowed handle: %d, %v", v, err)
	}

	b.Rebind(12)
	if v, _ := b.Get(); v != 12 {
		t.Errorf("Get() after Rebind = %d, want 12", v)
	}

	b.Unbind()
	if _, err := b.Get(); !errors.Is(err, ErrUnbound) {
		t.Errorf("Get() after Unbind error = %v, want ErrUnbound", err)
	}
}

func TestHandleInterface(t *testing.T) {
	var _ Handle[uint64] = NewOwned(uint64(1), nil)
	var _ Handle[uint64] = NewBorrowed[uint64]()
}
