package nodes

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/atena/pkg/bus"
	"github.com/harunnryd/atena/pkg/errorsx"
	"github.com/harunnryd/atena/pkg/events"
	"github.com/harunnryd/atena/pkg/llm"
	"github.com/harunnryd/atena/pkg/metrics"
	"github.com/harunnryd/atena/pkg/redact"
	"github.com/harunnryd/atena/pkg/support"
	"github.com/harunnryd/atena/pkg/transcript"
)

// DefaultFallback is spoken whenever a turn cannot be completed. The session
// keeps going; only the failed turn degrades.
const DefaultFallback = "I apologize, I'm having a technical issue right now. Could you please repeat that?"

type ConversationConfig struct {
	CallID         string
	SystemPrompt   string
	Params         llm.Params
	FallbackText   string
	TransferTarget string
	Retry          llm.RetryConfig
	Observer       metrics.Observer
	Logger         *slog.Logger
}

// ConversationNode turns committed user utterances into agent replies. It
// owns the transcript, drives the LLM with the support tool schemas, and
// executes tool calls against the registry.
type ConversationNode struct {
	adapter  llm.LLMAdapter
	tools    llm.ToolRegistry
	log      *transcript.Log
	bus      *bus.Bus
	state    *CallState
	cfg      ConversationConfig
	obs      metrics.Observer
	logger   *slog.Logger
	fallback string
}

func NewConversationNode(adapter llm.LLMAdapter, tools llm.ToolRegistry, log *transcript.Log, b *bus.Bus, state *CallState, cfg ConversationConfig) *ConversationNode {
	if cfg.FallbackText == "" {
		cfg.FallbackText = DefaultFallback
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
	return &ConversationNode{
		adapter:  adapter,
		tools:    tools,
		log:      log,
		bus:      b,
		state:    state,
		cfg:      cfg,
		obs:      cfg.Observer,
		logger:   cfg.Logger.With(slog.String("component", "conversation"), slog.String("call_id", cfg.CallID)),
		fallback: cfg.FallbackText,
	}
}

// Transcript exposes the node's transcript for the escalation monitor.
func (n *ConversationNode) Transcript() *transcript.Log { return n.log }

// HandleUtterance runs one turn. It never returns an error; failures degrade
// to the fallback utterance and the transcript is rolled back so no partial
// turn is recorded.
func (n *ConversationNode) HandleUtterance(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	n.record(metrics.EventUtteranceReceived, nil)
	n.logger.Debug("utterance", "text", redact.Text(text))

	rollback := n.log.Snapshot()
	n.log.Append(transcript.RoleUser, text)

	resp, err := n.generate(ctx, n.log.Messages(n.cfg.SystemPrompt), n.tools.Tools())
	if err != nil {
		n.log.Restore(rollback)
		n.degrade(errorsx.Wrap(err, errorsx.ReasonLLMGenerate))
		return
	}

	if len(resp.ToolCalls) == 0 {
		n.reply(resp.Text)
		return
	}
	for _, call := range resp.ToolCalls {
		if done := n.executeTool(ctx, call); done {
			return
		}
	}
}

// executeTool runs one tool call. It returns true when the turn is finished
// and remaining tool calls must be ignored (call ended or transferred).
func (n *ConversationNode) executeTool(ctx context.Context, call llm.ToolCall) bool {
	n.publish(events.NewToolCall(call.ID, call.Name, call.Arguments))

	result, err := n.tools.HandleTool(call.Name, call.Arguments)
	if err != nil {
		reason := errorsx.ReasonToolFailed
		if errors.Is(err, support.ErrUnknownTool) {
			reason = errorsx.ReasonToolUnknown
		}
		n.publish(events.NewToolResult(call.Name, call.Arguments, "", err.Error()))
		n.degrade(errorsx.Wrap(err, reason))
		return false
	}
	n.publish(events.NewToolResult(call.Name, call.Arguments, result, ""))
	n.record(metrics.EventToolExecuted, map[string]string{"tool": call.Name})

	switch call.Name {
	case support.ToolEndCall:
		n.reply(result)
		n.publish(events.NewEndCall(result))
		return true
	case support.ToolEscalateToHuman:
		n.state.MarkEscalated()
		n.reply(result)
		reason, _ := call.Arguments["reason"].(string)
		n.publish(events.NewTransferCall(n.cfg.TransferTarget, reason))
		return true
	case support.ToolSearchKnowledgeBase:
		n.replyWithKnowledge(ctx, result)
		return false
	default:
		n.reply(result)
		return false
	}
}

// replyWithKnowledge runs a follow-up completion that weaves the knowledge
// base answer into a conversational reply. If that round fails the raw
// answer is spoken as-is rather than losing the turn.
func (n *ConversationNode) replyWithKnowledge(ctx context.Context, answer string) {
	rollback := n.log.Snapshot()
	n.log.Append(transcript.RoleSystem, "Knowledge base result: "+answer)

	resp, err := n.generate(ctx, n.log.Messages(n.cfg.SystemPrompt), nil)
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		n.log.Restore(rollback)
		if err != nil {
			n.logger.Warn("knowledge_followup_failed",
				"reason", string(errorsx.Reason(errorsx.Wrap(err, errorsx.ReasonLLMGenerate))),
				"error", err.Error(),
			)
		}
		n.reply(answer)
		return
	}
	n.reply(resp.Text)
}

func (n *ConversationNode) generate(ctx context.Context, messages []map[string]any, tools []llm.Tool) (llm.Response, error) {
	resp, err := llm.Retry(ctx, n.cfg.Retry, func(ctx context.Context) (llm.Response, error) {
		return n.adapter.Generate(ctx, llm.Context{
			Messages: messages,
			Tools:    tools,
			Params:   n.cfg.Params,
		})
	})
	if err == nil && resp.Usage.TotalTokens > 0 {
		n.obs.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventLLMUsage,
			Time: time.Now(),
			Tags: map[string]string{"call_id": n.cfg.CallID, "component": "conversation"},
			Fields: map[string]any{
				"prompt_tokens":     resp.Usage.PromptTokens,
				"completion_tokens": resp.Usage.CompletionTokens,
				"total_tokens":      resp.Usage.TotalTokens,
			},
		})
	}
	return resp, err
}

// reply publishes agent text and records it in the transcript.
func (n *ConversationNode) reply(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = n.fallback
	}
	n.log.Append(transcript.RoleAgent, text)
	n.publish(events.NewAgentResponse(text))
	n.record(metrics.EventReplySent, nil)
}

// degrade speaks the fixed fallback without recording it as a turn.
func (n *ConversationNode) degrade(err error) {
	n.logger.Error("turn_failed",
		"reason", string(errorsx.Reason(err)),
		"error", err.Error(),
	)
	n.record(metrics.EventFallbackUsed, map[string]string{"reason": string(errorsx.Reason(err))})
	n.publish(events.NewAgentResponse(n.fallback))
	n.record(metrics.EventReplySent, nil)
}

func (n *ConversationNode) publish(ev events.Event) {
	if n.bus != nil {
		n.bus.Publish(ev)
	}
}

func (n *ConversationNode) record(name string, tags map[string]string) {
	merged := map[string]string{"call_id": n.cfg.CallID, "component": "conversation"}
	for k, v := range tags {
		merged[k] = v
	}
	n.obs.RecordEvent(metrics.MetricsEvent{Name: name, Time: time.Now(), Tags: merged})
}
