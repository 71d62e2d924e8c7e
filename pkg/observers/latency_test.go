package observers

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/atena/pkg/metrics"
)

func TestLatencyObserverLogsTurnLatency(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	obs := NewLatencyObserver(log)

	start := time.Now()
	obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventUtteranceReceived,
		Time: start,
		Tags: map[string]string{"call_id": "call-1"},
	})
	obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventReplySent,
		Time: start.Add(120 * time.Millisecond),
		Tags: map[string]string{"call_id": "call-1"},
	})

	out := buf.String()
	if !strings.Contains(out, "turn_latency") || !strings.Contains(out, "call-1") {
		t.Fatalf("missing turn latency log: %q", out)
	}
	if !strings.Contains(out, "reply_ms=120") {
		t.Fatalf("unexpected latency value: %q", out)
	}
}

func TestLatencyObserverIgnoresUnknownCall(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLatencyObserver(slog.New(slog.NewTextHandler(&buf, nil)))
	obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventReplySent,
		Time: time.Now(),
		Tags: map[string]string{"call_id": "call-2"},
	})
	if strings.Contains(buf.String(), "turn_latency") {
		t.Fatalf("reply without utterance must not log: %q", buf.String())
	}
}

func TestMultiObserverFansOut(t *testing.T) {
	a := metrics.NewMemoryObserver()
	b := metrics.NewMemoryObserver()
	m := NewMultiObserver(a, nil, b)
	m.RecordEvent(metrics.MetricsEvent{Name: "x"})
	if len(a.Events) != 1 || len(b.Events) != 1 {
		t.Fatalf("fan out failed: %d / %d", len(a.Events), len(b.Events))
	}
}
