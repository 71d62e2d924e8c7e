package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Runner is the per-call unit of work owned by the registry.
type Runner interface {
	Start() error
	Stop() error
}

type Session struct {
	CallID  string
	Runner  Runner
	Ctx     context.Context
	Cancel  context.CancelFunc
	Created time.Time
}

type Factory func(ctx context.Context, callID string) (Runner, error)

// Registry tracks live call sessions. One session per call id; sessions are
// torn down on Remove and at drain.
type Registry struct {
	sessions sync.Map
	count    atomic.Int64
	factory  Factory
	draining atomic.Bool
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory}
}

func (r *Registry) GetOrCreate(callID string) (*Session, bool, error) {
	if callID == "" {
		return nil, false, nil
	}
	if v, ok := r.sessions.Load(callID); ok {
		return v.(*Session), false, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	runner, err := r.factory(ctx, callID)
	if err != nil {
		cancel()
		return nil, false, err
	}
	if err := runner.Start(); err != nil {
		cancel()
		return nil, false, err
	}
	sess := &Session{
		CallID:  callID,
		Runner:  runner,
		Ctx:     ctx,
		Cancel:  cancel,
		Created: time.Now(),
	}
	actual, loaded := r.sessions.LoadOrStore(callID, sess)
	if loaded {
		_ = runner.Stop()
		cancel()
		return actual.(*Session), false, nil
	}
	r.count.Add(1)
	return sess, true, nil
}

func (r *Registry) Get(callID string) (*Session, bool) {
	if v, ok := r.sessions.Load(callID); ok {
		return v.(*Session), true
	}
	return nil, false
}

func (r *Registry) Remove(callID string) {
	if v, ok := r.sessions.LoadAndDelete(callID); ok {
		sess := v.(*Session)
		if sess.Cancel != nil {
			sess.Cancel()
		}
		if sess.Runner != nil {
			_ = sess.Runner.Stop()
		}
		r.count.Add(-1)
	}
}

func (r *Registry) CloseAll() {
	r.sessions.Range(func(key, value any) bool {
		if callID, ok := key.(string); ok {
			r.Remove(callID)
		}
		return true
	})
}

func (r *Registry) Count() int64 {
	return r.count.Load()
}

func (r *Registry) SetDraining(v bool) {
	r.draining.Store(v)
}

func (r *Registry) Draining() bool {
	return r.draining.Load()
}

func (r *Registry) WaitForEmpty(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if r.Count() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
