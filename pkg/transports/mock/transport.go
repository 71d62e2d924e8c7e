package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/harunnryd/atena/pkg/events"
	"github.com/harunnryd/atena/pkg/transports"
)

// Transport is an in-memory transport for local testing and integration.
// It implements the transports.Transport interface without any network
// dependency.
type Transport struct {
	recvCh chan transports.Envelope
	sentCh chan transports.Envelope
	closed atomic.Bool
	mu     sync.Mutex
}

func New() *Transport {
	return &Transport{
		recvCh: make(chan transports.Envelope, 256),
		sentCh: make(chan transports.Envelope, 256),
	}
}

func (t *Transport) Name() string { return "mock" }

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	return nil
}

func (t *Transport) Stop() error {
	if t.closed.CompareAndSwap(false, true) {
		t.mu.Lock()
		close(t.recvCh)
		close(t.sentCh)
		t.mu.Unlock()
	}
	return nil
}

func (t *Transport) Recv() <-chan transports.Envelope { return t.recvCh }

func (t *Transport) Send(callID string, ev events.Event) error {
	if t.closed.Load() {
		return nil
	}
	select {
	case t.sentCh <- transports.Envelope{CallID: callID, Event: ev}:
	default:
	}
	return nil
}

// Push injects an inbound event into the transport.
func (t *Transport) Push(callID string, ev events.Event) {
	if t.closed.Load() {
		return
	}
	select {
	case t.recvCh <- transports.Envelope{CallID: callID, Event: ev}:
	default:
	}
}

// Sent exposes outbound events for inspection.
func (t *Transport) Sent() <-chan transports.Envelope { return t.sentCh }
