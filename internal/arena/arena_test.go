package arena

import (
	"errors"
	"testing"
	"unsafe"
)

func newTestArena(t *testing.T, capacity int) *Arena {
	t.Helper()
	a, err := New(capacity)
	if err != nil {
		t.Fatalf("New(%d) error = %v", capacity, err)
	}
	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return a
}

func TestNewDefaultCapacity(t *testing.T) {
	a := newTestArena(t, 0)
	if a.Capacity() != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", a.Capacity(), DefaultCapacity)
	}
}

func TestAllocateAlignment(t *testing.T) {
	tests := []struct {
		name      string
		sizes     []int
		align     int
		wantUsed  int
		wantStart []int
	}{
		{"byte aligned", []int{3, 5}, 1, 8, []int{0, 3}},
		{"4 byte aligned", []int{3, 5}, 4, 9, []int{0, 4}},
		{"16 byte aligned", []int{1, 1, 1}, 16, 33, []int{0, 16, 32}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestArena(t, 64)
			for i, size := range tt.sizes {
				view, err := a.Allocate(size, tt.align)
				if err != nil {
					t.Fatalf("Allocate(%d, %d) error = %v", size, tt.align, err)
				}
				if len(view) != size {
					t.Errorf("len(view) = %d, want %d", len(view), size)
				}
				if cap(view) != size {
					t.Errorf("cap(view) = %d, want %d", cap(view), size)
				}
				start := a.Used() - size
				if start != tt.wantStart[i] {
					t.Errorf("allocation %d starts at %d, want %d", i, start, tt.wantStart[i])
				}
			}
			if a.Used() != tt.wantUsed {
				t.Errorf("Used() = %d, want %d", a.Used(), tt.wantUsed)
			}
		})
	}
}

func TestAllocateBadAlignment(t *testing.T) {
	a := newTestArena(t, 64)
	for _, align := range []int{0, -1, 3, 12} {
		if _, err := a.Allocate(4, align); !errors.Is(err, ErrBadAlignment) {
			t.Errorf("Allocate(4, %d) error = %v, want ErrBadAlignment", align, err)
		}
	}
}

func TestAllocateExhausted(t *testing.T) {
	a := newTestArena(t, 16)
	if _, err := a.Allocate(16, 1); err != nil {
		t.Fatalf("Allocate(16) error = %v", err)
	}
	if _, err := a.Allocate(1, 1); !errors.Is(err, ErrExhausted) {
		t.Fatalf("Allocate over capacity error = %v, want ErrExhausted", err)
	}
	if a.Used() != 16 {
		t.Errorf("failed allocation moved offset to %d", a.Used())
	}
}

func TestAllocateExhaustedByPadding(t *testing.T) {
	a := newTestArena(t, 16)
	if _, err := a.Allocate(1, 1); err != nil {
		t.Fatal(err)
	}
	// 8-byte alignment pushes the start to 8; 9 bytes no longer fit.
	if _, err := a.Allocate(9, 8); !errors.Is(err, ErrExhausted) {
		t.Fatalf("error = %v, want ErrExhausted", err)
	}
}

func TestResetReusesStartAddress(t *testing.T) {
	a := newTestArena(t, 64)

	first, err := a.Allocate(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	for i := range first {
		first[i] = 0xAB
	}
	if _, err := a.Allocate(8, 8); err != nil {
		t.Fatal(err)
	}

	a.Reset()
	a.Reset()
	if a.Used() != 0 {
		t.Fatalf("Used() after Reset = %d, want 0", a.Used())
	}

	again, err := a.Allocate(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if unsafe.SliceData(first) != unsafe.SliceData(again) {
		t.Error("allocation after Reset does not start at the first allocation's address")
	}
	for i, b := range again {
		if b != 0 {
			t.Fatalf("byte %d = %#x after Reset, want 0", i, b)
		}
	}
}

func TestAllocateCString(t *testing.T) {
	a := newTestArena(t, 32)

	cs, err := a.AllocateCString("label")
	if err != nil {
		t.Fatalf("AllocateCString error = %v", err)
	}
	if len(cs) != 6 || cs[5] != 0 {
		t.Fatalf("CString = %q, want NUL-terminated label", []byte(cs))
	}
	if cs.String() != "label" {
		t.Errorf("String() = %q, want %q", cs.String(), "label")
	}

	empty, err := a.AllocateCString("")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 1 || empty.String() != "" {
		t.Errorf("empty CString = %q", []byte(empty))
	}

	if _, err := a.AllocateCString("a\x00b"); !errors.Is(err, ErrInteriorNUL) {
		t.Errorf("interior NUL error = %v, want ErrInteriorNUL", err)
	}
}

func TestAllocateCStringExhausted(t *testing.T) {
	a := newTestArena(t, 4)
	if _, err := a.AllocateCString("four"); !errors.Is(err, ErrExhausted) {
		t.Fatalf("error = %v, want ErrExhausted", err)
	}
}

func TestClose(t *testing.T) {
	a, err := New(32)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := a.Allocate(1, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Allocate after Close error = %v, want ErrClosed", err)
	}
}
