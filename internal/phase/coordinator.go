package phase

import (
	"context"
	"sync"
	"time"
)

// Coordinator broadcasts phase status changes to whoever drives the run.
//
// Waiters take the channel from Changed before inspecting phase state and
// then wait on it, so a change between the inspection and the wait is not
// lost.
type Coordinator struct {
	mu      sync.Mutex
	changed chan struct{}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{changed: make(chan struct{})}
}

// Signal wakes every current waiter.
func (c *Coordinator) Signal() {
	c.mu.Lock()
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}

// Changed returns a channel closed by the next Signal.
func (c *Coordinator) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// Wait blocks until changed is closed, timeout elapses or ctx is done. It
// reports whether a change was signalled.
func (c *Coordinator) Wait(ctx context.Context, changed <-chan struct{}, timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-changed:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-changed:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
