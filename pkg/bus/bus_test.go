package bus

import (
	"testing"
	"time"

	"github.com/harunnryd/atena/pkg/events"
)

func TestPublishSubscribe(t *testing.T) {
	b := New(4)
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(events.NewAgentResponse("hello"))

	select {
	case ev := <-ch:
		ar, ok := ev.(events.AgentResponse)
		if !ok {
			t.Fatalf("unexpected event type %T", ev)
		}
		if ar.Content != "hello" {
			t.Fatalf("unexpected content %q", ar.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := New(1)
	_, cancel := b.Subscribe()
	defer cancel()

	b.Publish(events.NewAgentResponse("a"))
	b.Publish(events.NewAgentResponse("b"))

	if got := b.Dropped(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New(4)
	ch, cancel := b.Subscribe()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	// Publishing after cancel must not panic.
	b.Publish(events.NewAgentResponse("x"))
}

func TestCloseClosesSubscribers(t *testing.T) {
	b := New(4)
	ch, _ := b.Subscribe()
	b.Close()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after bus close")
	}
	b.Publish(events.NewAgentResponse("x"))
	b.Close()
}
