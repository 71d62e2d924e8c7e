package transports

import (
	"context"

	"github.com/harunnryd/atena/pkg/events"
)

// Envelope pairs an event with the call it belongs to.
type Envelope struct {
	CallID string
	Event  events.Event
}

// Transport is the boundary to the external voice runtime. Implementations
// own their network lifecycle and translate between wire messages and
// conversation events.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Recv() <-chan Envelope
	Send(callID string, ev events.Event) error
}

// ReadyReporter allows transports to expose readiness metadata (e.g., bound
// addresses). Implementations are optional and used for informational
// logging only.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
