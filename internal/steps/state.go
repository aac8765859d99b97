package steps

import (
	"fmt"

	"github.com/wesleyorama2/loadphase/internal/session"
)

// slots keeps per sequence instance state of a step in a session.
type slots[T any] struct {
	items []T
}

func (sl *slots[T]) Reset() {
	clear(sl.items)
}

func (sl *slots[T]) at(i int) *T {
	if i >= len(sl.items) {
		grown := make([]T, i+1)
		copy(grown, sl.items)
		sl.items = grown
	}
	return &sl.items[i]
}

// declareSlots registers the slots resource of a step.
func declareSlots[T any](s *session.Session, key string) error {
	limit := s.Scenario().MaxSequences
	if limit <= 0 {
		limit = session.DefaultMaxSequences
	}
	return s.DeclareResource(key, &slots[T]{items: make([]T, limit)})
}

// slotOf returns the state of the executing sequence instance.
func slotOf[T any](s *session.Session, key string) (*T, error) {
	sl, ok := s.Resource(key).(*slots[T])
	if !ok {
		return nil, fmt.Errorf("resource %s not reserved", key)
	}
	inst := s.CurrentSequence()
	if inst == nil {
		return nil, fmt.Errorf("resource %s: no current sequence", key)
	}
	return sl.at(inst.Index()), nil
}
