package session

import (
	"fmt"
	"sync"
)

// Pool holds preallocated sessions for one scenario.
//
// Reserve must be called for every phase using the pool before any of them
// starts. Acquire and Release are safe for concurrent use.
type Pool struct {
	scenario  *Scenario
	executors []Executor
	nextID    func() int

	mu       sync.Mutex
	free     chan *Session
	sessions []*Session
}

// NewPool creates an empty pool. Sessions are spread round-robin over
// executors; nextID supplies unique session ids.
func NewPool(scenario *Scenario, executors []Executor, nextID func() int) *Pool {
	return &Pool{
		scenario:  scenario,
		executors: executors,
		nextID:    nextID,
		free:      make(chan *Session),
	}
}

// Reserve allocates n more sessions.
func (p *Pool) Reserve(n int) error {
	if n <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	created := make([]*Session, 0, n)
	for i := 0; i < n; i++ {
		exec := p.executors[len(p.sessions)%len(p.executors)]
		s := New(p.nextID(), p.scenario, exec)
		if err := reserveSteps(s, p.scenario); err != nil {
			return err
		}
		p.sessions = append(p.sessions, s)
		created = append(created, s)
	}

	free := make(chan *Session, len(p.sessions))
drain:
	for {
		select {
		case s := <-p.free:
			free <- s
		default:
			break drain
		}
	}
	for _, s := range created {
		free <- s
	}
	p.free = free
	return nil
}

func reserveSteps(s *Session, sc *Scenario) error {
	for _, seq := range sc.Sequences {
		for _, step := range seq.Steps {
			r, ok := step.(ResourceReserver)
			if !ok {
				continue
			}
			if err := r.Reserve(s); err != nil {
				return fmt.Errorf("sequence %s: %w", seq.Name, err)
			}
		}
	}
	return nil
}

// Acquire takes a session from the pool. An empty pool is a reservation bug
// and reported as ErrPoolExhausted.
func (p *Pool) Acquire() (*Session, error) {
	select {
	case s := <-p.free:
		return s, nil
	default:
		return nil, fmt.Errorf("scenario %s: %w (capacity %d)", p.scenario.Name, ErrPoolExhausted, cap(p.free))
	}
}

// Release returns a session to the pool.
func (p *Pool) Release(s *Session) error {
	select {
	case p.free <- s:
		return nil
	default:
		return fmt.Errorf("scenario %s: %w", p.scenario.Name, ErrPoolOverflow)
	}
}

// Available returns the number of idle sessions.
func (p *Pool) Available() int {
	return len(p.free)
}

// Capacity returns the number of allocated sessions.
func (p *Pool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Sessions returns every allocated session, idle or not.
func (p *Pool) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// Proceed nudges every session of the pool. Idle sessions ignore it, the
// others re-check their phase status on their executor.
func (p *Pool) Proceed() {
	for _, s := range p.Sessions() {
		s.Proceed()
	}
}
