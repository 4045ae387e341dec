package ai

import (
	"context"
	"encoding/json"
	"errors"
)

// Sentinel errors distinguishing the upstream failure domains. Transport
// failures (rate limit, server, auth) and parse failures must stay separable
// because a streaming call can fail for either reason at different points.
var (
	ErrRateLimited       = errors.New("model provider rate limit exceeded")
	ErrServerError       = errors.New("model provider server error")
	ErrAuthFailed        = errors.New("model provider authentication failed")
	ErrMalformedResponse = errors.New("model returned malformed JSON")
)

// ChunkFunc receives every incremental text fragment in arrival order together
// with the text accumulated so far.
type ChunkFunc func(delta, accumulated string)

// StructuredRequest describes one structured-output model call.
type StructuredRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       json.RawMessage
	Temperature  float32
	MaxTokens    int
}

// StructuredCaller issues structured-output calls against an LLM provider.
type StructuredCaller interface {
	CallStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error)
	CallStructuredStream(ctx context.Context, req StructuredRequest, onChunk ChunkFunc) (json.RawMessage, error)
}
