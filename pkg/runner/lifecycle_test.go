package runner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitForState(t *testing.T, r Runner, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %d, want %d", r.State(), want)
}

func TestLifecycleRunnerRunAndStop(t *testing.T) {
	var started, stopped, drained atomic.Bool
	r := NewLifecycleRunner(
		DrainerFunc(func() error {
			drained.Store(true)
			return nil
		}),
		Hooks{
			OnStart: func() { started.Store(true) },
			OnStop:  func() { stopped.Store(true) },
		},
		time.Second,
	)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()
	waitForState(t, r, StateRunning)
	if !started.Load() {
		t.Fatal("OnStart hook not invoked")
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}
	if !drained.Load() || !stopped.Load() {
		t.Fatalf("drained=%v stopped=%v", drained.Load(), stopped.Load())
	}
	if r.State() != StateStopped {
		t.Fatalf("state = %d", r.State())
	}
}

func TestLifecycleRunnerRejectsSecondRun(t *testing.T) {
	r := NewLifecycleRunner(nil, Hooks{}, time.Second)
	go func() { _ = r.Run(context.Background()) }()
	waitForState(t, r, StateRunning)
	defer func() { _ = r.Stop() }()

	if err := r.Run(context.Background()); err == nil {
		t.Fatal("expected state transition error")
	}
}

func TestLifecycleRunnerDrainTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	r := NewLifecycleRunner(
		DrainerFunc(func() error {
			<-block
			return nil
		}),
		Hooks{},
		20*time.Millisecond,
	)
	go func() { _ = r.Run(context.Background()) }()
	waitForState(t, r, StateRunning)

	if err := r.Stop(); err == nil {
		t.Fatal("expected drain timeout error")
	}
}
