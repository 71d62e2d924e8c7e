package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/atena/pkg/llm"
)

// Step is one scripted adapter turn.
type Step struct {
	Response llm.Response
	Err      error
}

// LLMAdapter replays scripted responses in order. After the script runs out
// the last step repeats, so a single-step adapter behaves like a constant one.
type LLMAdapter struct {
	mu    sync.Mutex
	steps []Step
	idx   int
	calls []llm.Context
}

func NewLLMAdapter(steps ...Step) *LLMAdapter {
	if len(steps) == 0 {
		steps = []Step{{Response: llm.Response{Text: "mock response"}}}
	}
	return &LLMAdapter{steps: steps}
}

// NewTextAdapter is a shorthand for an adapter that always answers with text.
func NewTextAdapter(text string) *LLMAdapter {
	return NewLLMAdapter(Step{Response: llm.Response{Text: text}})
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, input)
	step := a.steps[a.idx]
	if a.idx < len(a.steps)-1 {
		a.idx++
	}
	return step.Response, step.Err
}

// Calls returns the inputs seen so far.
func (a *LLMAdapter) Calls() []llm.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]llm.Context, len(a.calls))
	copy(out, a.calls)
	return out
}
