package mirror

import (
	"context"
	"sync"
)

// Gate is a resettable broadcast readiness signal. Handlers whose
// correctness depends on a completed sync park in Wait until Set releases
// every waiter at once. Clear swaps in a fresh channel, so an event that
// arrives while a re-sync is in flight waits for that re-sync to finish,
// not for an older completed one.
//
// There is no wait timeout: a stalled bootstrap stalls dependent handlers
// until the process context is cancelled.
type Gate struct {
	mu  sync.Mutex
	ch  chan struct{}
	set bool
}

func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Set opens the gate and releases all current waiters. Setting an open gate
// is a no-op.
func (g *Gate) Set() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.set {
		close(g.ch)
		g.set = true
	}
}

// Clear closes the gate so new waiters block until the next Set. Clearing a
// closed gate is a no-op.
func (g *Gate) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.set {
		g.ch = make(chan struct{})
		g.set = false
	}
}

// Wait blocks until the gate is set or ctx is cancelled.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) IsSet() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.set
}
