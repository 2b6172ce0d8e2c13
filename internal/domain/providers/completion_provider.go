package providers

import "context"

// CompletionRequest is a single-turn chat completion.
type CompletionRequest struct {
	SystemPrompt string
	UserMessage  string
	Temperature  float32
	MaxTokens    int
}

// CompletionProvider returns the raw text produced by a language model.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
