// Package pool implements a generic cache of reusable wrapper instances.
//
// A Pool partitions its instances into an idle set, owned by the pool, and a
// checked-out set, each member owned by exactly one caller. GetOrCreate moves
// an instance from idle to checked out, creating one through the factory
// when the idle set is empty. TryReturnToPool resets an instance and moves it
// back. Returning an instance twice, or returning one the pool never handed
// out, is reported and leaves the pool unchanged.
//
// Pools never shrink: after warm-up, steady per-frame traffic reuses the same
// small set of instances.
package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eapache/queue"
)

// Pool errors.
var (
	// ErrClosed is returned by GetOrCreate after Close.
	ErrClosed = errors.New("pool: closed")

	// ErrLeaked is returned by Close when instances are still checked out.
	ErrLeaked = errors.New("pool: instances still checked out")
)

// Item is the poolable contract. Reset is called on every return to the
// pool and must clear all native-handle references and per-use state.
type Item interface {
	comparable
	Reset()
}

// disposer is implemented by items that own resources beyond their
// per-use state. Close disposes idle items through it.
type disposer interface {
	Dispose()
}

// Factory creates a fresh instance.
type Factory[T Item] func() (T, error)

// Stats is a snapshot of pool counters.
type Stats struct {
	Name       string
	Idle       int
	CheckedOut int
	Created    uint64
	Reused     uint64
	Rejected   uint64
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf("%s: idle=%d out=%d created=%d reused=%d rejected=%d",
		s.Name, s.Idle, s.CheckedOut, s.Created, s.Reused, s.Rejected)
}

// Pool is a thread-safe cache of T instances.
type Pool[T Item] struct {
	name    string
	factory Factory[T]
	logger  func() *slog.Logger

	// mu guards idle, out, the counters and closed.
	mu       sync.Mutex
	idle     *queue.Queue
	out      map[T]struct{}
	created  uint64
	reused   uint64
	rejected uint64
	closed   bool
}

// New creates a pool. name identifies the pool in logs and Stats.
// logger is consulted on every log call so late SetLogger calls are
// honoured; nil disables logging.
func New[T Item](name string, factory Factory[T], logger func() *slog.Logger) *Pool[T] {
	if logger == nil {
		logger = func() *slog.Logger { return slog.New(slog.DiscardHandler) }
	}
	return &Pool[T]{
		name:    name,
		factory: factory,
		logger:  logger,
		idle:    queue.New(),
		out:     make(map[T]struct{}),
	}
}

// GetOrCreate checks out an idle instance, or creates one when none is idle.
// Factory failures are logged and returned.
func (p *Pool[T]) GetOrCreate() (T, error) {
	var zero T

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, ErrClosed
	}
	if p.idle.Length() > 0 {
		item := p.idle.Remove().(T)
		p.out[item] = struct{}{}
		p.reused++
		p.mu.Unlock()
		return item, nil
	}
	p.mu.Unlock()

	// The factory runs unlocked; it may call into the native driver.
	item, err := p.factory()
	if err != nil {
		p.logger().Error("pool: factory failed", "pool", p.name, "error", err)
		return zero, fmt.Errorf("pool %s: create: %w", p.name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		dispose(item)
		return zero, ErrClosed
	}
	p.out[item] = struct{}{}
	p.created++
	p.logger().Debug("pool: created instance", "pool", p.name, "created", p.created)
	return item, nil
}

// TryReturnToPool resets item and marks it idle. It returns false, without
// touching item, when item is not currently checked out from this pool.
func (p *Pool[T]) TryReturnToPool(item T) bool {
	p.mu.Lock()
	if _, ok := p.out[item]; !ok {
		p.rejected++
		p.mu.Unlock()
		p.logger().Error("pool: release of instance not checked out", "pool", p.name)
		return false
	}
	delete(p.out, item)
	p.mu.Unlock()

	// Between the delete and the push the instance is owned by this call
	// alone, so Reset runs without the lock.
	item.Reset()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		dispose(item)
		return true
	}
	p.idle.Add(item)
	return true
}

// Prewarm creates instances until at least n are idle.
func (p *Pool[T]) Prewarm(n int) error {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return ErrClosed
		}
		if p.idle.Length() >= n {
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()

		item, err := p.factory()
		if err != nil {
			return fmt.Errorf("pool %s: prewarm: %w", p.name, err)
		}

		p.mu.Lock()
		p.created++
		if p.closed {
			p.mu.Unlock()
			dispose(item)
			return ErrClosed
		}
		p.idle.Add(item)
		p.mu.Unlock()
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Name:       p.name,
		Idle:       p.idle.Length(),
		CheckedOut: len(p.out),
		Created:    p.created,
		Reused:     p.reused,
		Rejected:   p.rejected,
	}
}

// Close disposes every idle instance. Instances still checked out are a
// caller error: they are logged and reported with ErrLeaked, and are
// disposed when they are eventually returned.
func (p *Pool[T]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := make([]T, 0, p.idle.Length())
	for p.idle.Length() > 0 {
		idle = append(idle, p.idle.Remove().(T))
	}
	leaked := len(p.out)
	p.mu.Unlock()

	for _, item := range idle {
		dispose(item)
	}

	if leaked > 0 {
		p.logger().Error("pool: closed with instances checked out", "pool", p.name, "leaked", leaked)
		return fmt.Errorf("pool %s: %w: %d", p.name, ErrLeaked, leaked)
	}
	return nil
}

func dispose[T Item](item T) {
	if d, ok := any(item).(disposer); ok {
		d.Dispose()
	}
}
