package support

import (
	"fmt"
	"testing"
)

func TestLookupHitReturnsConfiguredText(t *testing.T) {
	b := NewInMemoryBackend(map[string]string{
		"login": "To reset your password, go to Settings > Account > Reset Password.",
	})
	answer, ok := b.Lookup("Login")
	if !ok {
		t.Fatal("expected hit")
	}
	if answer != "To reset your password, go to Settings > Account > Reset Password." {
		t.Fatalf("answer = %q", answer)
	}
}

func TestLookupMissReturnsSentinel(t *testing.T) {
	b := NewInMemoryBackend(nil)
	answer, ok := b.Lookup("quantum")
	if ok {
		t.Fatal("expected miss")
	}
	if answer != NotFoundAnswer {
		t.Fatalf("answer = %q", answer)
	}
}

func TestTicketIDsUniqueAndMonotonic(t *testing.T) {
	b := NewInMemoryBackend(nil)
	seen := make(map[string]bool)
	var prev string
	for i := 0; i < 25; i++ {
		tk := b.CreateTicket(fmt.Sprintf("issue %d", i), "low")
		if seen[tk.ID] {
			t.Fatalf("duplicate ticket id %s", tk.ID)
		}
		seen[tk.ID] = true
		if prev != "" && tk.ID <= prev {
			t.Fatalf("ticket id %s not after %s", tk.ID, prev)
		}
		prev = tk.ID
	}
	if got := len(b.Tickets()); got != 25 {
		t.Fatalf("tickets = %d", got)
	}
}

func TestEscalationCounter(t *testing.T) {
	b := NewInMemoryBackend(nil)
	b.MarkEscalated()
	b.MarkEscalated()
	if got := b.Escalations(); got != 2 {
		t.Fatalf("escalations = %d", got)
	}
}
