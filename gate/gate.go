// Package gate bounds how many downloads may use the network at once.
//
// A Gate admits callers in strict arrival order. It wraps
// golang.org/x/sync/semaphore, whose waiter list is FIFO and which passes a
// unit on to the next waiter when a cancellation races a grant.
package gate

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/blacker-cz/mangascraper"
	"golang.org/x/sync/semaphore"
)

// Gate is a counting admission gate with FIFO fairness.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64

	mu          sync.Mutex
	outstanding int64
}

// New returns a gate admitting at most capacity concurrent holders.
// A capacity below 1 is treated as 1.
func New(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Capacity returns the maximum number of concurrent holders.
func (g *Gate) Capacity() int {
	return int(g.capacity)
}

// Outstanding returns the number of units currently held.
func (g *Gate) Outstanding() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int(g.outstanding)
}

// Acquire blocks until a unit is granted or ctx is done.
// Use context.WithTimeout for a bounded wait. On failure nothing is held and
// ctx.Err() is returned.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.mu.Lock()
	g.outstanding++
	g.mu.Unlock()
	return nil
}

// TryAcquire takes a unit without blocking and reports whether it succeeded.
// It fails while other callers are waiting.
func (g *Gate) TryAcquire() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.mu.Lock()
	g.outstanding++
	g.mu.Unlock()
	return true
}

// Release returns n units to the gate, waking waiters in arrival order.
// Returns EINVALIDOP if n exceeds the outstanding count.
func (g *Gate) Release(n int) error {
	if n < 1 {
		return mangascraper.Errorf(mangascraper.EINVALIDOP, "release count must be positive, got %d", n)
	}

	g.mu.Lock()
	if int64(n) > g.outstanding {
		outstanding := g.outstanding
		g.mu.Unlock()
		return mangascraper.Errorf(mangascraper.EINVALIDOP, "release of %d exceeds %d outstanding", n, outstanding)
	}
	g.outstanding -= int64(n)
	g.mu.Unlock()

	g.sem.Release(int64(n))
	return nil
}

// Permit is one acquired unit. It must be released exactly once.
type Permit struct {
	gate     *Gate
	released atomic.Bool
}

// Enter acquires a unit and returns it as a Permit.
func (g *Gate) Enter(ctx context.Context) (*Permit, error) {
	if err := g.Acquire(ctx); err != nil {
		return nil, err
	}
	return &Permit{gate: g}, nil
}

// Release returns the permit's unit to its gate.
// Returns EINVALIDOP if the permit was already released.
func (p *Permit) Release() error {
	if !p.released.CompareAndSwap(false, true) {
		return mangascraper.Errorf(mangascraper.EINVALIDOP, "permit already released")
	}
	return p.gate.Release(1)
}

// Do runs fn while holding a unit. The unit is released however fn exits,
// including by panic.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	permit, err := g.Enter(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = permit.Release() }()
	return fn(ctx)
}
