package atena

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/atena/pkg/bus"
	"github.com/harunnryd/atena/pkg/events"
	"github.com/harunnryd/atena/pkg/handoff"
	"github.com/harunnryd/atena/pkg/llm"
	"github.com/harunnryd/atena/pkg/logging"
	"github.com/harunnryd/atena/pkg/metrics"
	"github.com/harunnryd/atena/pkg/nodes"
	"github.com/harunnryd/atena/pkg/observers"
	"github.com/harunnryd/atena/pkg/redact"
	"github.com/harunnryd/atena/pkg/resilience"
	"github.com/harunnryd/atena/pkg/runner"
	"github.com/harunnryd/atena/pkg/session"
	"github.com/harunnryd/atena/pkg/support"
	"github.com/harunnryd/atena/pkg/transcript"
	"github.com/harunnryd/atena/pkg/transports"
)

// Engine wires a transport, the per-call conversation and escalation nodes,
// and the observer stack into one runnable unit.
type Engine struct {
	cfg       Config
	registry  *session.Registry
	transport transports.Transport
	providers *ProviderRegistry
	backend   support.Backend
	dialer    *handoff.Dialer
	runner    *runner.LifecycleRunner
	asyncObs  *metrics.AsyncObserver
	latency   *observers.LatencyObserver
	artifacts *os.File
	ctx       context.Context
	cancel    context.CancelFunc
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	Transport transports.Transport
	// Backend overrides the in-memory support backend built from
	// knowledge_base config.
	Backend support.Backend
	Dialer  *handoff.Dialer
	// ExtraObservers are appended to the default observer stack.
	ExtraObservers []metrics.Observer
}

func NewEngine(opts EngineOptions) *Engine {
	cfg := opts.Config
	SetDefaultLogger(cfg.LogLevel, cfg.LogFormat)
	redact.SetEnabled(cfg.Privacy.RedactPII)

	slog.Info("atena_init",
		"environment", cfg.Environment,
		"llm_provider", cfg.Vendors.LLM.Provider,
		"transport", cfg.Transports.Provider,
	)

	latencyObs := observers.NewLatencyObserver(slog.Default())
	logObs := observers.NewLoggerObserver(slog.Default())
	obsList := []metrics.Observer{latencyObs, logObs}
	var artifacts *os.File
	var timelineObs *observers.TimelineObserver
	var costObs *observers.CostObserver
	if dir := strings.TrimSpace(cfg.Observability.ArtifactsDir); dir != "" {
		if cfg.Observability.RetentionDays > 0 {
			_, _ = observers.PurgeArtifacts(dir, time.Duration(cfg.Observability.RetentionDays)*24*time.Hour)
		}
		timelineObs = observers.NewTimelineObserver(dir)
		costObs = observers.NewCostObserver(dir)
		obsList = append(obsList, timelineObs, costObs)
		if f, err := openArtifactsFile(dir); err != nil {
			slog.Warn("artifacts_open_failed", "dir", dir, "error", err)
		} else {
			artifacts = f
			var jsonlObs metrics.Observer = metrics.NewJSONLObserver(f)
			if rate := cfg.Observability.SampleRate; rate > 0 && rate < 1 {
				jsonlObs = metrics.NewSamplingObserver(jsonlObs, rate)
			}
			obsList = append(obsList, jsonlObs)
		}
	}
	obsList = append(obsList, opts.ExtraObservers...)
	multiObs := observers.NewMultiObserver(obsList...)
	asyncObs := metrics.NewAsyncObserver(multiObs, 2048)

	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
	}

	backend := opts.Backend
	if backend == nil {
		backend = support.NewInMemoryBackend(cfg.Knowledge)
	}

	dialer := opts.Dialer
	if dialer == nil && strings.TrimSpace(cfg.Handoff.AccountSID) != "" {
		dialer = handoff.NewDialer(cfg.Handoff)
	}

	e := &Engine{
		cfg:       cfg,
		transport: opts.Transport,
		providers: providers,
		backend:   backend,
		dialer:    dialer,
		asyncObs:  asyncObs,
		latency:   latencyObs,
		artifacts: artifacts,
	}

	e.registry = session.NewRegistry(func(ctx context.Context, callID string) (session.Runner, error) {
		return e.buildCall(ctx, callID)
	})

	hooks := runner.Hooks{
		OnStart: func() {
			fields := []any{"message", "Atena Engine Ready"}
			if rr, ok := opts.Transport.(transports.ReadyReporter); ok {
				for k, v := range rr.ReadyFields() {
					fields = append(fields, k, v)
				}
			}
			slog.Info("engine_ready", fields...)
		},
		OnStop: func() {
			if asyncObs != nil {
				asyncObs.Close()
			}
			if timelineObs != nil {
				_ = timelineObs.Close()
			}
			if costObs != nil {
				_ = costObs.Close()
			}
			if e.artifacts != nil {
				_ = e.artifacts.Close()
			}
			slog.Info("shutdown", "goroutines", runtime.NumGoroutine(), "active_calls", e.registry.Count())
		},
	}

	drainer := runner.DrainerFunc(func() error {
		if e.transport != nil {
			_ = e.transport.Stop()
		}
		e.registry.SetDraining(true)
		e.registry.CloseAll()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		_ = e.registry.WaitForEmpty(ctx, 200*time.Millisecond)
		return nil
	})

	e.runner = runner.NewLifecycleRunner(drainer, hooks, 30*time.Second)
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e
}

// buildCall assembles the per-call conversation pipeline: one transcript,
// one event bus, a tool registry over the shared backend, the conversation
// node, and the out-of-band escalation monitor.
func (e *Engine) buildCall(ctx context.Context, callID string) (session.Runner, error) {
	cfg := e.cfg
	adapter, err := e.providers.BuildLLM(cfg.Vendors.LLM.Provider, cfg)
	if err != nil {
		return nil, err
	}
	breaker := resilience.NewCircuitBreaker(cfg.Agent.BreakerOpens, time.Duration(cfg.Agent.BreakerRestMS)*time.Millisecond)
	guarded := llm.NewCircuitBreakerAdapter(adapter, breaker)
	guarded.SetObserver(e.asyncObs)

	log := transcript.NewLog(cfg.Context.MaxHistory)
	b := bus.New(256)
	state := nodes.NewCallState()
	tools := support.NewToolRegistry(e.backend)

	conv := nodes.NewConversationNode(guarded, tools, log, b, state, nodes.ConversationConfig{
		CallID:       callID,
		SystemPrompt: cfg.Agent.Prompt,
		Params: llm.Params{
			Temperature: cfg.Agent.Temperature,
			TopP:        cfg.Agent.TopP,
			MaxTokens:   cfg.Agent.MaxTokens,
		},
		FallbackText:   cfg.Agent.FallbackText,
		TransferTarget: e.transferTarget(),
		Retry:          llm.RetryConfig{MaxAttempts: cfg.Agent.MaxRetries},
		Observer:       e.asyncObs,
	})

	esc := nodes.NewEscalationNode(guarded, log, b, state, nodes.EscalationConfig{
		CallID: callID,
		Prompt: cfg.Monitor.Prompt,
		Params: llm.Params{
			Temperature: cfg.Monitor.Temperature,
			TopP:        cfg.Monitor.TopP,
			MaxTokens:   cfg.Monitor.MaxTokens,
		},
		Interval:    time.Duration(cfg.Monitor.IntervalMS) * time.Millisecond,
		MinTurns:    cfg.Monitor.MinTurns,
		HistorySize: cfg.Monitor.HistorySize,
		Observer:    e.asyncObs,
	})

	return &callRunner{
		engine: e,
		callID: callID,
		ctx:    ctx,
		conv:   conv,
		esc:    esc,
		bus:    b,
		in:     make(chan events.Event, 64),
	}, nil
}

func (e *Engine) transferTarget() string {
	if strings.TrimSpace(e.cfg.Agent.TransferTarget) != "" {
		return e.cfg.Agent.TransferTarget
	}
	return e.cfg.Handoff.TargetNumber
}

func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.transport != nil {
		if err := e.transport.Start(ctx); err != nil {
			return err
		}
		go e.routeTransport(ctx)
	}
	go func() {
		_ = e.runner.Run(ctx)
	}()
	return nil
}

func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	return e.runner.Stop()
}

// routeTransport pumps inbound transport envelopes into per-call runners.
func (e *Engine) routeTransport(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-e.transport.Recv():
			if !ok {
				return
			}
			if env.CallID == "" || env.Event == nil {
				continue
			}
			switch env.Event.Kind() {
			case events.KindCallStarted:
				_, _, _ = e.registry.GetOrCreate(env.CallID)
			case events.KindCallEnded:
				e.registry.Remove(env.CallID)
			default:
				sess, _, err := e.registry.GetOrCreate(env.CallID)
				if err != nil {
					slog.Error("session_create_failed", "call_id", env.CallID, "error", err.Error())
					continue
				}
				if cr, ok := sess.Runner.(*callRunner); ok {
					cr.Handle(env.Event)
				}
			}
		}
	}
}

// callRunner owns the goroutines of one call: the utterance loop, the
// escalation monitor, and the bus-to-transport forwarder.
type callRunner struct {
	engine *Engine
	callID string
	ctx    context.Context
	conv   *nodes.ConversationNode
	esc    *nodes.EscalationNode
	bus    *bus.Bus
	in     chan events.Event

	stopOnce sync.Once
}

func (r *callRunner) Start() error {
	out, cancelSub := r.bus.Subscribe()
	go r.esc.Run(r.ctx)
	go r.processLoop()
	go r.forwardLoop(out, cancelSub)
	return nil
}

func (r *callRunner) Stop() error {
	r.stopOnce.Do(func() {
		r.bus.Close()
		if r.engine.latency != nil {
			r.engine.latency.Forget(r.callID)
		}
	})
	return nil
}

// Handle enqueues an inbound event without blocking the transport pump.
func (r *callRunner) Handle(ev events.Event) {
	select {
	case r.in <- ev:
	default:
		slog.Warn("inbound_event_dropped", "call_id", r.callID, "kind", string(ev.Kind()))
	}
}

func (r *callRunner) processLoop() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case ev := <-r.in:
			switch typed := ev.(type) {
			case events.UserTranscription:
				r.conv.HandleUtterance(r.ctx, typed.Content)
			case events.DTMFInput:
				slog.Debug("dtmf", "call_id", r.callID, "button", typed.Button)
			}
		}
	}
}

// forwardLoop pushes everything the nodes publish out through the transport.
// Terminal events tear the session down after they are forwarded.
func (r *callRunner) forwardLoop(out <-chan events.Event, cancelSub func()) {
	defer cancelSub()
	for {
		select {
		case <-r.ctx.Done():
			return
		case ev, ok := <-out:
			if !ok {
				return
			}
			if r.engine.transport != nil {
				if err := r.engine.transport.Send(r.callID, ev); err != nil {
					slog.Warn("transport_send_failed", "call_id", r.callID, "error", err.Error())
				}
			}
			switch typed := ev.(type) {
			case events.EndCall:
				go r.engine.registry.Remove(r.callID)
				return
			case events.TransferCall:
				r.engine.dialHuman(typed)
				go r.engine.registry.Remove(r.callID)
				return
			}
		}
	}
}

// dialHuman bridges a human agent via the REST dialer when one is
// configured; otherwise the transfer event alone instructs the platform.
func (e *Engine) dialHuman(ev events.TransferCall) {
	if e.dialer == nil || !e.dialer.Configured() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sid, err := e.dialer.Dial(ctx, ev.TargetNumber)
		if err != nil {
			slog.Error("handoff_dial_failed", "error", err.Error())
			return
		}
		slog.Info("handoff_dialed", "sid", sid, "reason", ev.Reason)
	}()
}

func SetDefaultLogger(level, format string) {
	logging.Setup(level, format)
}

func openArtifactsFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("metrics-%s.jsonl", time.Now().Format("20060102-150405"))
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func (e *Engine) ProviderRegistry() *ProviderRegistry { return e.providers }

func (e *Engine) Transport() transports.Transport { return e.transport }

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Registry() *session.Registry { return e.registry }

func (e *Engine) Backend() support.Backend { return e.backend }

func (e *Engine) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

func (e *Engine) Health() error {
	if e.transport == nil {
		return fmt.Errorf("missing transport")
	}
	return nil
}
