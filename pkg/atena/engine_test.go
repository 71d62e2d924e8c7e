package atena

import (
	"context"
	"testing"
	"time"

	"github.com/harunnryd/atena/pkg/events"
	"github.com/harunnryd/atena/pkg/llm"
	mockllm "github.com/harunnryd/atena/pkg/providers/mock"
	"github.com/harunnryd/atena/pkg/support"
	mocktr "github.com/harunnryd/atena/pkg/transports/mock"
)

func testConfig() Config {
	return Config{
		Vendors:    VendorsConfig{LLM: VendorConfig{Provider: "mock"}},
		Transports: TransportsConfig{Provider: "mock"},
		Agent: AgentConfig{
			Prompt:      "You are a TechCorp support agent.",
			Temperature: 0.15,
			TopP:        0.75,
			MaxRetries:  1,
		},
		Monitor: MonitorConfig{
			Prompt: "You are an escalation analyst.",
			// Keep the monitor quiet so the scripted adapter only serves
			// the conversation turns under test.
			IntervalMS: 600000,
			MinTurns:   99,
		},
		Context:  ContextConfig{MaxHistory: 20},
		LogLevel: "error",
	}
}

func newTestEngine(t *testing.T, steps ...mockllm.Step) (*Engine, *mocktr.Transport) {
	t.Helper()
	providers := NewProviderRegistry()
	providers.RegisterLLM("mock", func(cfg Config) (llm.LLMAdapter, error) {
		return mockllm.NewLLMAdapter(steps...), nil
	})
	tr := mocktr.New()
	e := NewEngine(EngineOptions{
		Config:    testConfig(),
		Providers: providers,
		Transport: tr,
	})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = e.Stop() })
	return e, tr
}

func waitForKind(t *testing.T, tr *mocktr.Transport, kind events.Kind) events.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case env := <-tr.Sent():
			if env.Event.Kind() == kind {
				return env.Event
			}
		case <-deadline:
			t.Fatalf("no %s event on transport", kind)
		}
	}
}

func TestEngineAnswersUtterance(t *testing.T) {
	_, tr := newTestEngine(t, mockllm.Step{Response: llm.Response{Text: "Hello, how can I help?"}})

	tr.Push("call-1", events.NewCallStarted("call-1", ""))
	tr.Push("call-1", events.NewUserTranscription("hi there"))

	ev := waitForKind(t, tr, events.KindAgentResponse)
	if got := ev.(events.AgentResponse).Content; got != "Hello, how can I help?" {
		t.Fatalf("reply = %q", got)
	}
}

func TestEngineRunsTicketTool(t *testing.T) {
	e, tr := newTestEngine(t, mockllm.Step{Response: llm.Response{
		ToolCalls: []llm.ToolCall{{
			ID:   "tc-1",
			Name: support.ToolCreateTicket,
			Arguments: map[string]any{
				"description": "cannot log in",
				"priority":    "high",
			},
		}},
	}})

	tr.Push("call-1", events.NewUserTranscription("I need a ticket"))

	result := waitForKind(t, tr, events.KindToolResult).(events.ToolResult)
	if result.ToolName != support.ToolCreateTicket || result.Error != "" {
		t.Fatalf("tool result = %+v", result)
	}

	backend, ok := e.Backend().(*support.InMemoryBackend)
	if !ok {
		t.Fatal("expected in-memory backend")
	}
	tickets := backend.Tickets()
	if len(tickets) != 1 || tickets[0].Priority != "high" {
		t.Fatalf("tickets = %+v", tickets)
	}
}

func TestEngineEndCallTearsDownSession(t *testing.T) {
	e, tr := newTestEngine(t, mockllm.Step{Response: llm.Response{
		ToolCalls: []llm.ToolCall{{
			ID:        "tc-1",
			Name:      support.ToolEndCall,
			Arguments: map[string]any{},
		}},
	}})

	tr.Push("call-1", events.NewUserTranscription("goodbye"))

	end := waitForKind(t, tr, events.KindEndCall).(events.EndCall)
	if end.GoodbyeMessage != support.DefaultGoodbye {
		t.Fatalf("goodbye = %q", end.GoodbyeMessage)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if e.Registry().Count() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session not torn down, count = %d", e.Registry().Count())
}

func TestEngineAdapterFailureFallsBack(t *testing.T) {
	_, tr := newTestEngine(t, mockllm.Step{Err: context.DeadlineExceeded})

	tr.Push("call-1", events.NewUserTranscription("hello?"))

	ev := waitForKind(t, tr, events.KindAgentResponse)
	if got := ev.(events.AgentResponse).Content; got == "" {
		t.Fatal("expected fallback text")
	}
}

func TestEngineCallEndedRemovesSession(t *testing.T) {
	e, tr := newTestEngine(t, mockllm.Step{Response: llm.Response{Text: "hi"}})

	tr.Push("call-1", events.NewCallStarted("call-1", ""))
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && e.Registry().Count() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if e.Registry().Count() != 1 {
		t.Fatalf("count = %d", e.Registry().Count())
	}

	tr.Push("call-1", events.NewCallEnded("call-1", "hangup"))
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.Registry().Count() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session still present, count = %d", e.Registry().Count())
}
