package support

import (
	"errors"
	"strings"
	"testing"
)

func newTestRegistry() (*ToolRegistry, *InMemoryBackend) {
	backend := NewInMemoryBackend(map[string]string{
		"billing": "Billing questions are handled in the Billing tab of your dashboard.",
	})
	return NewToolRegistry(backend), backend
}

func TestToolsExposeAllFour(t *testing.T) {
	reg, _ := newTestRegistry()
	names := make(map[string]bool)
	for _, tool := range reg.Tools() {
		names[tool.Name] = true
	}
	for _, want := range []string{ToolSearchKnowledgeBase, ToolCreateTicket, ToolEscalateToHuman, ToolEndCall} {
		if !names[want] {
			t.Fatalf("missing tool %s", want)
		}
	}
}

func TestSearchKnowledgeBase(t *testing.T) {
	reg, _ := newTestRegistry()
	out, err := reg.HandleTool(ToolSearchKnowledgeBase, map[string]any{"topic": "billing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Billing questions are handled in the Billing tab of your dashboard." {
		t.Fatalf("out = %q", out)
	}

	out, err = reg.HandleTool(ToolSearchKnowledgeBase, map[string]any{"topic": "unknown"})
	if err != nil {
		t.Fatalf("miss must not error: %v", err)
	}
	if out != NotFoundAnswer {
		t.Fatalf("out = %q", out)
	}
}

func TestCreateTicket(t *testing.T) {
	reg, backend := newTestRegistry()
	out, err := reg.HandleTool(ToolCreateTicket, map[string]any{
		"description": "internet keeps dropping",
		"priority":    "HIGH",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tickets := backend.Tickets()
	if len(tickets) != 1 {
		t.Fatalf("tickets = %d", len(tickets))
	}
	if tickets[0].Priority != "high" {
		t.Fatalf("priority = %q", tickets[0].Priority)
	}
	if !strings.Contains(out, tickets[0].ID) {
		t.Fatalf("confirmation %q missing ticket id", out)
	}
}

func TestCreateTicketRejectsBadPriority(t *testing.T) {
	reg, backend := newTestRegistry()
	_, err := reg.HandleTool(ToolCreateTicket, map[string]any{
		"description": "x",
		"priority":    "urgent",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(backend.Tickets()) != 0 {
		t.Fatal("no ticket must be created on invalid input")
	}
}

func TestEscalateToHuman(t *testing.T) {
	reg, backend := newTestRegistry()
	out, err := reg.HandleTool(ToolEscalateToHuman, map[string]any{"reason": "customer very upset"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "customer very upset") {
		t.Fatalf("out = %q", out)
	}
	if backend.Escalations() != 1 {
		t.Fatalf("escalations = %d", backend.Escalations())
	}
}

func TestEndCall(t *testing.T) {
	reg, _ := newTestRegistry()
	out, err := reg.HandleTool(ToolEndCall, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != DefaultGoodbye {
		t.Fatalf("out = %q", out)
	}
	out, _ = reg.HandleTool(ToolEndCall, map[string]any{"goodbye_message": "Bye!"})
	if out != "Bye!" {
		t.Fatalf("out = %q", out)
	}
}

func TestUnknownTool(t *testing.T) {
	reg, _ := newTestRegistry()
	_, err := reg.HandleTool("reboot_router", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}
