// Package arena provides a fixed-capacity bump allocator for transient
// native-interop data.
//
// An Arena hands out zeroed, bounds-checked byte slices carved from one
// contiguous backing buffer. Allocations are never freed individually:
// Reset rewinds the write offset to zero in O(1). The intended pattern is
// allocate, call the native primitive, reset:
//
//	label, err := a.AllocateCString("shadow pass")
//	if err != nil {
//	    return err
//	}
//	err = drv.PushDebugGroup(cb, label)
//	a.Reset()
//
// Slices returned before a Reset must not be used after it.
//
// An Arena is not safe for concurrent use. Each owning scope keeps its own.
package arena

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultCapacity is the capacity used when a non-positive capacity is
// requested.
const DefaultCapacity = 1024

// Arena errors.
var (
	// ErrExhausted is returned when an allocation does not fit in the
	// remaining capacity.
	ErrExhausted = errors.New("arena: capacity exhausted")

	// ErrBadAlignment is returned when the alignment is not a power of two.
	ErrBadAlignment = errors.New("arena: alignment must be a power of two")

	// ErrInteriorNUL is returned when a string to be encoded as a C string
	// already contains a NUL byte.
	ErrInteriorNUL = errors.New("arena: string contains NUL byte")

	// ErrClosed is returned when allocating from a closed arena.
	ErrClosed = errors.New("arena: closed")
)

// CString is a NUL-terminated byte view into arena memory.
// The terminator is included in the slice.
type CString []byte

// String returns the text without the terminator.
func (c CString) String() string {
	if len(c) == 0 {
		return ""
	}
	return string(c[:len(c)-1])
}

// Arena is a bump allocator over a fixed-capacity buffer.
type Arena struct {
	buf     []byte
	offset  int
	release func([]byte) error
	closed  bool
}

// New creates an arena with the given capacity in bytes.
func New(capacity int) (*Arena, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	buf, release, err := allocBacking(capacity)
	if err != nil {
		return nil, fmt.Errorf("arena: allocate %d bytes: %w", capacity, err)
	}
	return &Arena{buf: buf, release: release}, nil
}

// Allocate reserves size bytes aligned to align and returns a zeroed view
// of exactly size bytes.
func (a *Arena) Allocate(size, align int) ([]byte, error) {
	if a.closed {
		return nil, ErrClosed
	}
	if align <= 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadAlignment, align)
	}
	if size < 0 {
		return nil, fmt.Errorf("arena: negative size %d", size)
	}

	start := alignUp(a.offset, align)
	end := start + size
	if end > len(a.buf) || end < start {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, capacity %d",
			ErrExhausted, size, start, len(a.buf))
	}

	view := a.buf[start:end:end]
	clear(view)
	a.offset = end
	return view, nil
}

// AllocateCString encodes s plus a NUL terminator into the arena.
func (a *Arena) AllocateCString(s string) (CString, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return nil, ErrInteriorNUL
	}
	view, err := a.Allocate(len(s)+1, 1)
	if err != nil {
		return nil, err
	}
	copy(view, s)
	return CString(view), nil
}

// Reset rewinds the arena. The backing buffer is kept.
func (a *Arena) Reset() {
	a.offset = 0
}

// Used returns the number of bytes consumed since the last Reset,
// including alignment padding.
func (a *Arena) Used() int {
	return a.offset
}

// Capacity returns the size of the backing buffer.
func (a *Arena) Capacity() int {
	return len(a.buf)
}

// Close releases the backing buffer. Close is idempotent.
func (a *Arena) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	a.offset = 0
	buf := a.buf
	a.buf = nil
	if a.release != nil {
		return a.release(buf)
	}
	return nil
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
