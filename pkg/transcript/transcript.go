package transcript

import (
	"strings"
	"sync"
	"time"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleAgent  Role = "assistant"
)

type Entry struct {
	Role Role
	Text string
	Time time.Time
}

// Log is an append-only ordered record of a single call. The conversation
// node owns it; the escalation monitor reads snapshots.
type Log struct {
	mu         sync.Mutex
	entries    []Entry
	maxHistory int
}

func NewLog(maxHistory int) *Log {
	return &Log{maxHistory: maxHistory}
}

// Append records a turn. Consecutive entries with the same role are merged
// into one so repeated partial utterances read as a single turn.
func (l *Log) Append(role Role, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.entries); n > 0 && role != RoleSystem && l.entries[n-1].Role == role {
		l.entries[n-1].Text += " " + text
		l.entries[n-1].Time = time.Now()
		return
	}
	l.entries = append(l.entries, Entry{Role: role, Text: text, Time: time.Now()})
	l.pruneLocked()
}

// Snapshot returns a copy safe for concurrent readers.
func (l *Log) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Restore replaces the log content, used to roll back partial turns after a
// failed generation.
func (l *Log) Restore(entries []Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]Entry, len(entries))
	copy(l.entries, entries)
}

// Turns counts non-system entries.
func (l *Log) Turns() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Role != RoleSystem {
			n++
		}
	}
	return n
}

// Clear drops and returns the recorded history.
func (l *Log) Clear() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.entries
	l.entries = nil
	return out
}

// Messages renders the log as chat-completion messages with the system
// prompt first.
func (l *Log) Messages(systemPrompt string) []map[string]any {
	snap := l.Snapshot()
	out := make([]map[string]any, 0, len(snap)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		out = append(out, map[string]any{"role": string(RoleSystem), "content": systemPrompt})
	}
	for _, e := range snap {
		out = append(out, map[string]any{"role": string(e.Role), "content": e.Text})
	}
	return out
}

// Render formats the log as a plain text conversation for analysis prompts.
func Render(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		switch e.Role {
		case RoleUser:
			b.WriteString("User: ")
		case RoleAgent:
			b.WriteString("Agent: ")
		default:
			continue
		}
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// pruneLocked drops the oldest non-system entries once the log exceeds
// maxHistory.
func (l *Log) pruneLocked() {
	if l.maxHistory <= 0 || len(l.entries) <= l.maxHistory {
		return
	}
	over := len(l.entries) - l.maxHistory
	kept := make([]Entry, 0, l.maxHistory)
	for _, e := range l.entries {
		if over > 0 && e.Role != RoleSystem {
			over--
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
}
