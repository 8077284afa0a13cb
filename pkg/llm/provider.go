package llm

import (
	"context"
)

// Message is a chat turn in provider-agnostic form.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Option configures a single call (temperature, token budget, model
// override).
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// Provider normalizes every backend family behind one contract. Both
// observed wire conventions (chat-style multi-message, single-text
// completion) implement it; callers never branch on the family.
type Provider interface {
	// Chat sends a chat history to the backend and returns the reply.
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt (the council fan-out path).
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}
