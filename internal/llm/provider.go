// Package llm talks to chat-completion backends. The assistant uses it to
// route utterances and to write answers from retrieved knowledge.
package llm

import "context"

// Provider is a chat-completion backend.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}
