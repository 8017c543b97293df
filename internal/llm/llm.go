// Package llm defines the chat completion interface used by the answer
// generator, the LLM reranker, and the evaluation judge, with
// implementations for OpenAI and Anthropic.
package llm

import (
	"context"
	"fmt"
	"sync"
)

// Message is a single turn in a chat conversation.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Request describes a chat completion call.
type Request struct {
	// System is the system prompt, passed separately because some
	// providers keep it out of the message list.
	System string

	Messages []Message

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// Temperature controls sampling. Judges and rerankers run at 0.
	Temperature float32
}

// Client produces chat completions.
type Client interface {
	// Chat runs a completion and returns the assistant's text.
	Chat(ctx context.Context, req *Request) (string, error)

	// Name identifies the provider ("openai", "anthropic").
	Name() string

	// Model returns the model identifier requests are sent to.
	Model() string
}

// Factory builds a Client for a model identifier.
type Factory func(model string) (Client, error)

// Registry maps provider tags to client factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under tag, replacing any existing one.
func (r *Registry) Register(tag string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[tag] = f
}

// New builds a client for provider tag and model.
func (r *Registry) New(tag, model string) (Client, error) {
	r.mu.RLock()
	f, ok := r.factories[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown llm provider %q", tag)
	}
	return f(model)
}
