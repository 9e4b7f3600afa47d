// Package llm defines the reasoning provider contract the debate engine
// consumes, and an OpenAI-compatible HTTP implementation of it.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Turn is one prior exchange handed to the provider as chat history.
type Turn struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// Request carries everything a provider call needs. Prompt is the new user
// message; History precedes it.
type Request struct {
	Model       string
	System      string
	Prompt      string
	History     []Turn
	Temperature float64
	MaxTokens   int
}

// StreamChunk is one piece of a streamed generation.
type StreamChunk struct {
	Content string
	Done    bool
	Err     error
}

// ReasoningProvider is the capability contract for all generated content.
// Structured-output methods (ScoreRound, DecideAudienceRequest,
// ApproveAudienceRequest, CastVote) return raw provider text; validation and
// fallback on unparsable output belong to the caller.
type ReasoningProvider interface {
	Generate(ctx context.Context, req *Request) (string, error)
	GenerateStream(ctx context.Context, req *Request) (<-chan StreamChunk, error)
	ScoreRound(ctx context.Context, req *Request) (string, error)
	DecideAudienceRequest(ctx context.Context, req *Request) (string, error)
	ApproveAudienceRequest(ctx context.Context, req *Request) (string, error)
	CastVote(ctx context.Context, req *Request) (string, error)
}

// ProviderError wraps a failed provider call. The orchestrator treats any
// ProviderError from a generation step as fatal for the debate.
type ProviderError struct {
	Op    string // which capability failed
	Model string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed (model=%s): %v", e.Op, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err is (or wraps) a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
