package nodes

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/atena/pkg/bus"
	"github.com/harunnryd/atena/pkg/errorsx"
	"github.com/harunnryd/atena/pkg/events"
	"github.com/harunnryd/atena/pkg/llm"
	"github.com/harunnryd/atena/pkg/metrics"
	"github.com/harunnryd/atena/pkg/transcript"
)

// VerdictSchema is the strict JSON schema the monitor's completion is
// constrained to.
var VerdictSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"risk": map[string]any{
			"type": "string",
			"enum": []string{"LOW", "MEDIUM", "HIGH"},
		},
		"reasons": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required":             []string{"risk", "reasons"},
	"additionalProperties": false,
}

type EscalationConfig struct {
	CallID      string
	Prompt      string
	Params      llm.Params
	Interval    time.Duration
	MinTurns    int
	HistorySize int
	Observer    metrics.Observer
	Logger      *slog.Logger
}

// EscalationNode watches the transcript out of band and periodically asks
// the LLM for a risk verdict. It never interferes with the conversation:
// failures degrade to a LOW verdict and a logged anomaly.
type EscalationNode struct {
	adapter llm.LLMAdapter
	log     *transcript.Log
	bus     *bus.Bus
	state   *CallState
	cfg     EscalationConfig
	obs     metrics.Observer
	logger  *slog.Logger

	mu      sync.Mutex
	history []events.EscalationVerdict
}

func NewEscalationNode(adapter llm.LLMAdapter, log *transcript.Log, b *bus.Bus, state *CallState, cfg EscalationConfig) *EscalationNode {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.MinTurns <= 0 {
		cfg.MinTurns = 3
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = metrics.NoopObserver{}
	}
	if state == nil {
		state = NewCallState()
	}
	return &EscalationNode{
		adapter: adapter,
		log:     log,
		bus:     b,
		state:   state,
		cfg:     cfg,
		obs:     cfg.Observer,
		logger:  cfg.Logger.With(slog.String("component", "escalation"), slog.String("call_id", cfg.CallID)),
	}
}

// Run analyzes on a ticker and after every agent reply, until ctx is done.
func (n *EscalationNode) Run(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.Interval)
	defer ticker.Stop()

	var turns <-chan events.Event
	cancel := func() {}
	if n.bus != nil {
		turns, cancel = n.bus.Subscribe()
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.Tick(ctx)
		case ev, ok := <-turns:
			if !ok {
				turns = nil
				continue
			}
			if ev.Kind() == events.KindAgentResponse {
				n.Tick(ctx)
			}
		}
	}
}

// Tick runs a single analysis cycle when the transcript is ready for one.
func (n *EscalationNode) Tick(ctx context.Context) {
	if n.state.Escalated() {
		return
	}
	if n.log.Turns() < n.cfg.MinTurns {
		return
	}
	verdict := n.Analyze(ctx)
	n.remember(verdict)
	if verdict.Risk == events.RiskLow {
		return
	}
	n.logger.Info("escalation_alert", "risk", string(verdict.Risk), "reasons", strings.Join(verdict.Reasons, "; "))
	if n.bus != nil {
		n.bus.Publish(verdict)
	}
}

// Analyze asks the LLM for a verdict over the current transcript. Any
// failure, malformed JSON, or out-of-enum risk yields LOW with a logged
// anomaly; risk is never raised speculatively.
func (n *EscalationNode) Analyze(ctx context.Context) events.EscalationVerdict {
	n.record(metrics.EventVerdictRequested)
	rendered := transcript.Render(n.log.Snapshot())
	resp, err := n.adapter.Generate(ctx, llm.Context{
		Messages: []map[string]any{
			{"role": "system", "content": n.cfg.Prompt},
			{"role": "user", "content": "Analyze this customer service conversation:\n\n" + rendered},
		},
		Params: n.cfg.Params,
		ResponseFormat: &llm.ResponseFormat{
			Name:   "escalation_analysis",
			Strict: true,
			Schema: VerdictSchema,
		},
	})
	if err != nil {
		n.anomaly(errorsx.Wrap(err, errorsx.ReasonLLMGenerate))
		return events.NewEscalationVerdict(events.RiskLow, nil)
	}
	if resp.Usage.TotalTokens > 0 {
		n.obs.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventLLMUsage,
			Time: time.Now(),
			Tags: map[string]string{"call_id": n.cfg.CallID, "component": "escalation"},
			Fields: map[string]any{
				"prompt_tokens":     resp.Usage.PromptTokens,
				"completion_tokens": resp.Usage.CompletionTokens,
				"total_tokens":      resp.Usage.TotalTokens,
			},
		})
	}
	verdict, err := ParseVerdict(resp.Text)
	if err != nil {
		n.anomaly(err)
		return events.NewEscalationVerdict(events.RiskLow, nil)
	}
	n.record(metrics.EventVerdictDone)
	return verdict
}

// History returns the most recent verdicts, oldest first.
func (n *EscalationNode) History() []events.EscalationVerdict {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]events.EscalationVerdict, len(n.history))
	copy(out, n.history)
	return out
}

// ParseVerdict decodes the monitor's JSON payload, rejecting risk values
// outside the known set.
func ParseVerdict(raw string) (events.EscalationVerdict, error) {
	var payload struct {
		Risk    string   `json:"risk"`
		Reasons []string `json:"reasons"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return events.EscalationVerdict{}, errorsx.Wrap(err, errorsx.ReasonVerdictParse)
	}
	risk, ok := events.ParseRisk(payload.Risk)
	if !ok {
		return events.EscalationVerdict{}, errorsx.ReasonedError{Reason: errorsx.ReasonVerdictSchema}
	}
	return events.NewEscalationVerdict(risk, payload.Reasons), nil
}

func (n *EscalationNode) remember(v events.EscalationVerdict) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.history = append(n.history, v)
	if len(n.history) > n.cfg.HistorySize {
		n.history = n.history[len(n.history)-n.cfg.HistorySize:]
	}
}

func (n *EscalationNode) anomaly(err error) {
	n.logger.Warn("verdict_anomaly",
		"reason", string(errorsx.Reason(err)),
		"error", err.Error(),
	)
	n.record(metrics.EventVerdictAnomaly)
}

func (n *EscalationNode) record(name string) {
	n.obs.RecordEvent(metrics.MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: map[string]string{"call_id": n.cfg.CallID, "component": "escalation"},
	})
}
