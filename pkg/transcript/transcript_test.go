package transcript

import (
	"strings"
	"testing"
)

func TestAppendMergesConsecutiveSameRole(t *testing.T) {
	l := NewLog(0)
	l.Append(RoleUser, "my internet")
	l.Append(RoleUser, "keeps dropping")
	l.Append(RoleAgent, "let me check")

	snap := l.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("entries = %d, want 2", len(snap))
	}
	if snap[0].Text != "my internet keeps dropping" {
		t.Fatalf("merged text = %q", snap[0].Text)
	}
}

func TestAppendIgnoresEmpty(t *testing.T) {
	l := NewLog(0)
	l.Append(RoleUser, "   ")
	if got := l.Turns(); got != 0 {
		t.Fatalf("turns = %d, want 0", got)
	}
}

func TestRestoreRollsBack(t *testing.T) {
	l := NewLog(0)
	l.Append(RoleUser, "hello")
	snap := l.Snapshot()
	l.Append(RoleAgent, "partial reply")
	l.Restore(snap)

	got := l.Snapshot()
	if len(got) != 1 || got[0].Text != "hello" {
		t.Fatalf("restore failed: %+v", got)
	}
}

func TestMessagesIncludeSystemPromptFirst(t *testing.T) {
	l := NewLog(0)
	l.Append(RoleUser, "hi")
	msgs := l.Messages("be helpful")
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0]["role"] != "system" || msgs[0]["content"] != "be helpful" {
		t.Fatalf("first message = %+v", msgs[0])
	}
	if msgs[1]["role"] != "user" {
		t.Fatalf("second message = %+v", msgs[1])
	}
}

func TestPrunePreservesSystemEntries(t *testing.T) {
	l := NewLog(3)
	l.Append(RoleSystem, "note")
	l.Append(RoleUser, "a")
	l.Append(RoleAgent, "b")
	l.Append(RoleUser, "c")

	snap := l.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("entries = %d, want 3", len(snap))
	}
	if snap[0].Role != RoleSystem {
		t.Fatalf("expected system entry preserved, got %+v", snap[0])
	}
}

func TestClearDropsHistory(t *testing.T) {
	l := NewLog(0)
	l.Append(RoleUser, "hello")
	dropped := l.Clear()
	if len(dropped) != 1 {
		t.Fatalf("dropped = %d, want 1", len(dropped))
	}
	if l.Turns() != 0 {
		t.Fatal("expected empty log after clear")
	}
}

func TestRender(t *testing.T) {
	l := NewLog(0)
	l.Append(RoleSystem, "hidden")
	l.Append(RoleUser, "hello")
	l.Append(RoleAgent, "hi there")
	out := Render(l.Snapshot())
	if strings.Contains(out, "hidden") {
		t.Fatal("system entries must not render")
	}
	if !strings.Contains(out, "User: hello") || !strings.Contains(out, "Agent: hi there") {
		t.Fatalf("render output = %q", out)
	}
}
