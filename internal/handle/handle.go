// Package handle wraps opaque native handles with explicit lifetimes.
//
// Owned holds a handle the application allocated: Dispose releases it
// exactly once, and every later Get fails with ErrDisposed. Borrowed holds a
// handle owned by the driver, such as the current swapchain image: Dispose
// never releases anything and the value is rebound every frame.
package handle

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrDisposed is returned by Get after Dispose.
	ErrDisposed = errors.New("handle: disposed")

	// ErrUnbound is returned by Borrowed.Get when no handle is bound.
	ErrUnbound = errors.New("handle: not bound")
)

// Handle is the common read side of Owned and Borrowed.
type Handle[H comparable] interface {
	// Get returns the native handle, or an error when it may not be used.
	Get() (H, error)

	// Dispose ends the application's use of the handle. It reports whether
	// this call performed the transition.
	Dispose() bool

	// IsDisposed reports whether Dispose has completed.
	IsDisposed() bool
}

// Owned is a Live/Disposed wrapper around one native handle.
type Owned[H comparable] struct {
	value    H
	release  func(H)
	disposed atomic.Bool
}

// NewOwned wraps value. release is invoked once, by the first Dispose.
func NewOwned[H comparable](value H, release func(H)) *Owned[H] {
	return &Owned[H]{value: value, release: release}
}

// Get returns the handle while the wrapper is Live.
func (o *Owned[H]) Get() (H, error) {
	if o.disposed.Load() {
		var zero H
		return zero, ErrDisposed
	}
	return o.value, nil
}

// Dispose releases the handle. Only the first call releases; later calls
// return false.
func (o *Owned[H]) Dispose() bool {
	if !o.disposed.CompareAndSwap(false, true) {
		return false
	}
	if o.release != nil {
		o.release(o.value)
	}
	return true
}

// IsDisposed reports whether the handle was released.
func (o *Owned[H]) IsDisposed() bool {
	return o.disposed.Load()
}

// Borrowed is a handle whose memory belongs to the driver.
type Borrowed[H comparable] struct {
	mu    sync.RWMutex
	value H
}

// NewBorrowed returns an unbound borrowed handle.
func NewBorrowed[H comparable]() *Borrowed[H] {
	return &Borrowed[H]{}
}

// Rebind points the wrapper at the handle supplied for the current frame.
func (b *Borrowed[H]) Rebind(value H) {
	b.mu.Lock()
	b.value = value
	b.mu.Unlock()
}

// Unbind clears the handle.
func (b *Borrowed[H]) Unbind() {
	var zero H
	b.Rebind(zero)
}

// Get returns the bound handle or ErrUnbound.
func (b *Borrowed[H]) Get() (H, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var zero H
	if b.value == zero {
		return zero, ErrUnbound
	}
	return b.value, nil
}

// Dispose is a no-op: the driver owns the handle.
func (b *Borrowed[H]) Dispose() bool { return false }

// IsDisposed always reports false.
func (b *Borrowed[H]) IsDisposed() bool { return false }
