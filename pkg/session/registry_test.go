package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type stubRunner struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (s *stubRunner) Start() error {
	s.started.Store(true)
	return nil
}

func (s *stubRunner) Stop() error {
	s.stopped.Store(true)
	return nil
}

func TestGetOrCreateStartsOnce(t *testing.T) {
	var built int
	reg := NewRegistry(func(ctx context.Context, callID string) (Runner, error) {
		built++
		return &stubRunner{}, nil
	})

	sess, created, err := reg.GetOrCreate("call-1")
	if err != nil || !created || sess == nil {
		t.Fatalf("sess=%v created=%v err=%v", sess, created, err)
	}
	_, created, _ = reg.GetOrCreate("call-1")
	if created {
		t.Fatal("second GetOrCreate must reuse")
	}
	if built != 1 {
		t.Fatalf("factory called %d times", built)
	}
	if reg.Count() != 1 {
		t.Fatalf("count = %d", reg.Count())
	}
}

func TestGetOrCreateEmptyID(t *testing.T) {
	reg := NewRegistry(func(ctx context.Context, callID string) (Runner, error) {
		t.Fatal("factory must not run")
		return nil, nil
	})
	sess, created, err := reg.GetOrCreate("")
	if sess != nil || created || err != nil {
		t.Fatalf("sess=%v created=%v err=%v", sess, created, err)
	}
}

func TestGetOrCreateFactoryError(t *testing.T) {
	reg := NewRegistry(func(ctx context.Context, callID string) (Runner, error) {
		return nil, errors.New("boom")
	})
	if _, _, err := reg.GetOrCreate("call-1"); err == nil {
		t.Fatal("expected error")
	}
	if reg.Count() != 0 {
		t.Fatalf("count = %d", reg.Count())
	}
}

func TestRemoveStopsRunnerAndCancels(t *testing.T) {
	runner := &stubRunner{}
	reg := NewRegistry(func(ctx context.Context, callID string) (Runner, error) {
		return runner, nil
	})
	sess, _, _ := reg.GetOrCreate("call-1")
	reg.Remove("call-1")

	if !runner.stopped.Load() {
		t.Fatal("runner not stopped")
	}
	select {
	case <-sess.Ctx.Done():
	default:
		t.Fatal("session context not cancelled")
	}
	if reg.Count() != 0 {
		t.Fatalf("count = %d", reg.Count())
	}
}

func TestWaitForEmpty(t *testing.T) {
	reg := NewRegistry(func(ctx context.Context, callID string) (Runner, error) {
		return &stubRunner{}, nil
	})
	_, _, _ = reg.GetOrCreate("call-1")

	go func() {
		time.Sleep(50 * time.Millisecond)
		reg.CloseAll()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !reg.WaitForEmpty(ctx, 10*time.Millisecond) {
		t.Fatal("expected registry to drain")
	}
}
