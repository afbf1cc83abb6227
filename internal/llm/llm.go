// Package llm talks to the chat-style generative model.
package llm

import (
	"context"
	"errors"

	"github.com/Skufu/medassist/internal/history"
)

// ErrUpstream is wrapped by failures reported by the model provider.
var ErrUpstream = errors.New("model upstream error")

// ErrEmptyReply is returned when the provider answers without text.
var ErrEmptyReply = errors.New("model returned no text")

// Request is one exchange: the session's system instruction, the prior
// transcript and the new user message.
type Request struct {
	System  string
	History history.Transcript
	Message string
}

// Model generates a reply for a request.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}
