package phase

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestCoordinatorWait(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewCoordinator()

	changed := c.Changed()
	if c.Wait(context.Background(), changed, 5*time.Millisecond) {
		t.Fatal("Wait() = true without a signal")
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		c.Signal()
	}()
	if !c.Wait(context.Background(), changed, 2*time.Second) {
		t.Fatal("Wait() = false, want true after Signal")
	}

	// a signal between Changed and Wait is not lost
	changed = c.Changed()
	c.Signal()
	if !c.Wait(context.Background(), changed, 0) {
		t.Fatal("Wait() lost a signal")
	}
}

func TestCoordinatorWaitCancelled(t *testing.T) {
	c := NewCoordinator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if c.Wait(ctx, c.Changed(), time.Hour) {
		t.Fatal("Wait() = true on cancelled context")
	}
}
