package support

import (
	"fmt"
	"strings"
	"sync"
)

// NotFoundAnswer is returned by Lookup for topics outside the knowledge base.
const NotFoundAnswer = "I don't have specific information about that topic, but I can create a support ticket for follow-up."

type Ticket struct {
	ID          string
	Description string
	Priority    string
}

// Backend is the customer-service system behind the agent's tools. Real
// deployments implement this against their ticketing and KB services; the
// in-memory version serves demos and tests.
type Backend interface {
	Lookup(topic string) (string, bool)
	CreateTicket(description, priority string) Ticket
}

// InMemoryBackend holds per-call state: a canned knowledge base and a
// ticket store with monotonically increasing ids. Nothing survives the call.
type InMemoryBackend struct {
	mu          sync.Mutex
	kb          map[string]string
	tickets     []Ticket
	nextID      int
	escalations int
}

func NewInMemoryBackend(kb map[string]string) *InMemoryBackend {
	normalized := make(map[string]string, len(kb))
	for k, v := range kb {
		normalized[normalizeTopic(k)] = v
	}
	return &InMemoryBackend{kb: normalized, nextID: 1}
}

func (b *InMemoryBackend) Lookup(topic string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if answer, ok := b.kb[normalizeTopic(topic)]; ok {
		return answer, true
	}
	return NotFoundAnswer, false
}

func (b *InMemoryBackend) CreateTicket(description, priority string) Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := Ticket{
		ID:          fmt.Sprintf("TCK-%04d", b.nextID),
		Description: description,
		Priority:    priority,
	}
	b.nextID++
	b.tickets = append(b.tickets, t)
	return t
}

// Tickets returns a copy of the tickets created during this call.
func (b *InMemoryBackend) Tickets() []Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Ticket, len(b.tickets))
	copy(out, b.tickets)
	return out
}

// MarkEscalated bumps the escalation counter.
func (b *InMemoryBackend) MarkEscalated() {
	b.mu.Lock()
	b.escalations++
	b.mu.Unlock()
}

func (b *InMemoryBackend) Escalations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.escalations
}

func normalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}
