package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "evalprd",
		Subsystem: "model",
		Name:      "call_duration_seconds",
		Help:      "Duration of structured model calls",
	}, []string{"model", "mode"})

	callFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evalprd",
		Subsystem: "model",
		Name:      "call_failures_total",
		Help:      "Number of failed structured model calls",
	}, []string{"model", "mode"})
)

// OpenAIConfig defines configuration for the OpenAI structured-output client.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIClient implements StructuredCaller against the OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIClient builds a structured-output client from the provided configuration.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 16000
	}

	tracer := otel.Tracer("github.com/evalprd/evalprd-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIClient{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "openai_client").Logger(),
	}, nil
}

// CallStructured performs a single blocking structured-output request and
// returns the parsed JSON payload.
func (c *OpenAIClient) CallStructured(parent context.Context, req StructuredRequest) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(parent, "openai.call_structured", trace.WithAttributes(
		attribute.String("model", c.model(req)),
		attribute.String("schema", req.SchemaName),
	))
	defer span.End()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, c.completionRequest(req, false))
	callDuration.WithLabelValues(c.model(req), "blocking").Observe(time.Since(start).Seconds())
	if err != nil {
		callFailures.WithLabelValues(c.model(req), "blocking").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, mapTransportError(err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
		callFailures.WithLabelValues(c.model(req), "blocking").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	payload, err := parsePayload(content)
	if err != nil {
		callFailures.WithLabelValues(c.model(req), "blocking").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.logger.Info().
		Str("model", c.model(req)).
		Str("schema", req.SchemaName).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("latency", time.Since(start)).
		Msg("structured call completed")

	return payload, nil
}

// CallStructuredStream performs a streaming structured-output request. Every
// incremental text fragment is forwarded to onChunk in arrival order; after the
// provider signals completion the accumulated text is parsed as JSON once.
func (c *OpenAIClient) CallStructuredStream(parent context.Context, req StructuredRequest, onChunk ChunkFunc) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(parent, "openai.call_structured_stream", trace.WithAttributes(
		attribute.String("model", c.model(req)),
		attribute.String("schema", req.SchemaName),
	))
	defer span.End()

	start := time.Now()
	stream, err := c.client.CreateChatCompletionStream(ctx, c.completionRequest(req, true))
	if err != nil {
		callDuration.WithLabelValues(c.model(req), "stream").Observe(time.Since(start).Seconds())
		callFailures.WithLabelValues(c.model(req), "stream").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, mapTransportError(err)
	}
	defer stream.Close()

	var accumulated strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			callDuration.WithLabelValues(c.model(req), "stream").Observe(time.Since(start).Seconds())
			callFailures.WithLabelValues(c.model(req), "stream").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, mapTransportError(err)
		}

		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}

		accumulated.WriteString(delta)
		if onChunk != nil {
			onChunk(delta, accumulated.String())
		}
	}

	callDuration.WithLabelValues(c.model(req), "stream").Observe(time.Since(start).Seconds())

	text := strings.TrimSpace(accumulated.String())
	if text == "" {
		err := fmt.Errorf("%w: empty streaming response", ErrMalformedResponse)
		callFailures.WithLabelValues(c.model(req), "stream").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	payload, err := parsePayload(text)
	if err != nil {
		callFailures.WithLabelValues(c.model(req), "stream").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.logger.Info().
		Str("model", c.model(req)).
		Str("schema", req.SchemaName).
		Int("response_bytes", len(text)).
		Dur("latency", time.Since(start)).
		Msg("streaming structured call completed")

	return payload, nil
}

func (c *OpenAIClient) model(req StructuredRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.cfg.Model
}

func (c *OpenAIClient) completionRequest(req StructuredRequest, stream bool) openai.ChatCompletionRequest {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.cfg.Temperature
	}

	out := openai.ChatCompletionRequest{
		Model:       c.model(req),
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      stream,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
	}

	if len(req.Schema) > 0 {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
				Strict: true,
			},
		}
	} else {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return out
}

func parsePayload(content string) (json.RawMessage, error) {
	var probe interface{}
	if err := json.Unmarshal([]byte(content), &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return json.RawMessage(content), nil
}

func mapTransportError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrServerError, err)
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.HTTPStatusCode == 429:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case reqErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrServerError, err)
		case reqErr.HTTPStatusCode == 401 || reqErr.HTTPStatusCode == 403:
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
	}

	return err
}
