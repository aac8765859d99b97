package loop

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Group is a fixed set of Loops handed out round-robin.
type Group struct {
	loops []*Loop
	next  atomic.Uint32
}

// NewGroup starts size loops. A size below one is raised to one.
func NewGroup(size int, logger zerolog.Logger) *Group {
	if size < 1 {
		size = 1
	}
	g := &Group{loops: make([]*Loop, size)}
	for i := range g.loops {
		g.loops[i] = New(i, logger)
	}
	return g
}

// Next returns the next loop in round-robin order.
func (g *Group) Next() *Loop {
	n := g.next.Add(1) - 1
	return g.loops[int(n%uint32(len(g.loops)))]
}

// Get returns the loop with the given index.
func (g *Group) Get(i int) *Loop {
	return g.loops[i]
}

// Size returns the number of loops.
func (g *Group) Size() int {
	return len(g.loops)
}

// Shutdown shuts every loop down and waits for all of them.
func (g *Group) Shutdown(ctx context.Context) error {
	var errs []error
	for _, l := range g.loops {
		if err := l.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
