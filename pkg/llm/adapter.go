package llm

import "context"

type Tool struct {
	Name        string
	Description string
	Schema      any
}

// Params carries sampling settings forwarded to the provider.
type Params struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// ResponseFormat constrains the completion to a named strict JSON schema.
type ResponseFormat struct {
	Name   string
	Schema any
	Strict bool
}

type Context struct {
	Messages       []map[string]any
	Tools          []Tool
	Params         Params
	ResponseFormat *ResponseFormat
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
	ToolCalls    []ToolCall
}

type LLMAdapter interface {
	Generate(ctx context.Context, input Context) (Response, error)
	Name() string
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}
