package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/atena/pkg/metrics"
)

// LatencyObserver measures per-call turn latency (committed utterance to
// first agent reply) and verdict cycle latency for the escalation monitor.
type LatencyObserver struct {
	mu     sync.Mutex
	turns  map[string]*turnTrace
	log    *slog.Logger
}

type turnTrace struct {
	utterance time.Time
	verdict   time.Time
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		turns: make(map[string]*turnTrace),
		log:   log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	callID := ""
	if ev.Tags != nil {
		callID = ev.Tags["call_id"]
	}
	if callID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.turns[callID]
	if t == nil {
		t = &turnTrace{}
		o.turns[callID] = t
	}
	switch ev.Name {
	case metrics.EventUtteranceReceived:
		t.utterance = ev.Time
	case metrics.EventReplySent:
		if t.utterance.IsZero() {
			return
		}
		o.log.Info("turn_latency",
			"call_id", callID,
			"reply_ms", durationMs(t.utterance, ev.Time),
		)
		t.utterance = time.Time{}
	case metrics.EventVerdictRequested:
		t.verdict = ev.Time
	case metrics.EventVerdictDone:
		if t.verdict.IsZero() {
			return
		}
		o.log.Info("verdict_latency",
			"call_id", callID,
			"verdict_ms", durationMs(t.verdict, ev.Time),
		)
		t.verdict = time.Time{}
	}
}

// Forget drops state for an ended call.
func (o *LatencyObserver) Forget(callID string) {
	o.mu.Lock()
	delete(o.turns, callID)
	o.mu.Unlock()
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}
