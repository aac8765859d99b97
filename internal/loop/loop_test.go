package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := New(0, zerolog.Nop())
	var (
		mu  sync.Mutex
		got []int
	)
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		i := i
		l.Submit(TaskFunc(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 99 {
				close(done)
			}
		}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not run")
	}
	require.NoError(t, l.Shutdown(context.Background()))

	require.Len(t, got, 100)
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
	assert.Equal(t, uint64(100), l.Executed())
}

func TestLoopSchedule(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := New(0, zerolog.Nop())
	defer l.Shutdown(context.Background())

	fired := make(chan time.Time, 1)
	start := time.Now()
	l.Schedule(TaskFunc(func() { fired <- time.Now() }), 20*time.Millisecond)

	select {
	case at := <-fired:
		if at.Sub(start) < 20*time.Millisecond {
			t.Errorf("task fired after %v, want >= 20ms", at.Sub(start))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled task did not fire")
	}
}

func TestLoopScheduleNegativeDelayRunsImmediately(t *testing.T) {
	l := New(0, zerolog.Nop())
	defer l.Shutdown(context.Background())

	fired := make(chan struct{})
	l.Schedule(TaskFunc(func() { close(fired) }), -time.Second)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("task with negative delay did not run")
	}
}

func TestLoopSurvivesPanic(t *testing.T) {
	l := New(0, zerolog.Nop())
	defer l.Shutdown(context.Background())

	ran := make(chan struct{})
	l.Submit(TaskFunc(func() { panic("boom") }))
	l.Submit(TaskFunc(func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("loop stopped after a panicking task")
	}
	assert.Equal(t, uint64(1), l.panics.Load())
}

func TestLoopDropsAfterShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := New(0, zerolog.Nop())
	require.NoError(t, l.Shutdown(context.Background()))

	var ran atomic.Bool
	l.Submit(TaskFunc(func() { ran.Store(true) }))
	time.Sleep(10 * time.Millisecond)

	assert.False(t, ran.Load())
	assert.Equal(t, uint64(1), l.Dropped())
}

func TestGroupRoundRobin(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	g := NewGroup(3, zerolog.Nop())
	defer g.Shutdown(context.Background())

	assert.Equal(t, 3, g.Size())
	ids := []int{g.Next().ID(), g.Next().ID(), g.Next().ID(), g.Next().ID()}
	assert.Equal(t, []int{0, 1, 2, 0}, ids)
	assert.Equal(t, 2, g.Get(2).ID())
}

func TestNewGroupMinimumSize(t *testing.T) {
	g := NewGroup(0, zerolog.Nop())
	defer g.Shutdown(context.Background())
	assert.Equal(t, 1, g.Size())
}
