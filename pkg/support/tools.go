package support

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harunnryd/atena/pkg/llm"
)

const (
	ToolSearchKnowledgeBase = "search_knowledge_base"
	ToolCreateTicket        = "create_ticket"
	ToolEscalateToHuman     = "escalate_to_human"
	ToolEndCall             = "end_call"
)

const DefaultGoodbye = "Thank you for calling TechCorp support. Have a great day!"

// ToolRegistry exposes the customer-service tools to the LLM and executes
// them against a Backend.
type ToolRegistry struct {
	backend  Backend
	tools    []llm.Tool
	handlers map[string]func(map[string]any) (string, error)
}

func NewToolRegistry(backend Backend) *ToolRegistry {
	reg := &ToolRegistry{backend: backend}
	reg.tools = []llm.Tool{
		{
			Name:        ToolSearchKnowledgeBase,
			Description: "Search the knowledge base for information about a support topic.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"topic": map[string]any{
						"type":        "string",
						"description": "The topic to search for, e.g. login, billing, refund.",
					},
				},
				"required": []string{"topic"},
			},
		},
		{
			Name:        ToolCreateTicket,
			Description: "Create a support ticket for an issue that needs follow-up.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"description": map[string]any{"type": "string"},
					"priority":    map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}},
				},
				"required": []string{"description", "priority"},
			},
		},
		{
			Name:        ToolEscalateToHuman,
			Description: "Escalate the conversation to a human agent.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"reason": map[string]any{"type": "string"},
				},
				"required": []string{"reason"},
			},
		},
		{
			Name:        ToolEndCall,
			Description: "End the call once the customer's request is resolved.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"goodbye_message": map[string]any{"type": "string"},
				},
			},
		},
	}
	reg.handlers = map[string]func(map[string]any) (string, error){
		ToolSearchKnowledgeBase: reg.searchKnowledgeBase,
		ToolCreateTicket:        reg.createTicket,
		ToolEscalateToHuman:     reg.escalateToHuman,
		ToolEndCall:             reg.endCall,
	}
	return reg
}

func (r *ToolRegistry) Tools() []llm.Tool {
	return r.tools
}

func (r *ToolRegistry) HandleTool(name string, args map[string]any) (string, error) {
	h := r.handlers[name]
	if h == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return h(args)
}

var _ llm.ToolRegistry = (*ToolRegistry)(nil)

func (r *ToolRegistry) searchKnowledgeBase(args map[string]any) (string, error) {
	topic, err := requiredString(args, "topic")
	if err != nil {
		return "", err
	}
	answer, _ := r.backend.Lookup(topic)
	return answer, nil
}

func (r *ToolRegistry) createTicket(args map[string]any) (string, error) {
	description, err := requiredString(args, "description")
	if err != nil {
		return "", err
	}
	priority, err := requiredString(args, "priority")
	if err != nil {
		return "", err
	}
	priority = strings.ToLower(priority)
	switch priority {
	case "low", "medium", "high":
	default:
		return "", fmt.Errorf("invalid priority: %s", priority)
	}
	t := r.backend.CreateTicket(description, priority)
	return fmt.Sprintf("I've created support ticket %s with %s priority. Our team will follow up on: %s", t.ID, t.Priority, t.Description), nil
}

func (r *ToolRegistry) escalateToHuman(args map[string]any) (string, error) {
	reason, err := requiredString(args, "reason")
	if err != nil {
		return "", err
	}
	if m, ok := r.backend.(interface{ MarkEscalated() }); ok {
		m.MarkEscalated()
	}
	return "I'm connecting you with a human agent now. Reason: " + reason, nil
}

func (r *ToolRegistry) endCall(args map[string]any) (string, error) {
	if msg, ok := args["goodbye_message"].(string); ok && strings.TrimSpace(msg) != "" {
		return strings.TrimSpace(msg), nil
	}
	return DefaultGoodbye, nil
}

func requiredString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("invalid %s", key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("missing %s", key)
	}
	return s, nil
}

// ErrUnknownTool reports a tool name outside the registry.
var ErrUnknownTool = errors.New("unknown tool")
