package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/evalprd/evalprd-api/internal/dto"
	"github.com/evalprd/evalprd-api/internal/evaluator"
	"github.com/evalprd/evalprd-api/internal/handler"
	"github.com/evalprd/evalprd-api/internal/relay"
	"github.com/evalprd/evalprd-api/pkg/ai"
	"github.com/evalprd/evalprd-api/pkg/schema"
)

const longPRDText = "This product requirements document describes a checkout revamp in enough detail to pass the minimum length gate applied before any model call happens."

const validBinaryScore = `{
	"rubric_version": "v1.0",
	"prd_title": "Checkout revamp",
	"pass_count": 0,
	"fail_count": 0,
	"criteria": [],
	"gating_failures": [],
	"readiness_gate": {"state": "GO", "must_pass_met": true, "total_pass": 0, "reason": "ok"},
	"compliance": {"gaps_count": 0, "gaps": []},
	"agreement": {"present": false, "percent_agreement": 0, "by_criterion": []}
}`

type stubCaller struct {
	chunks  []string
	payload string
	err     error
	calls   int
}

func (s *stubCaller) CallStructured(ctx context.Context, req ai.StructuredRequest) (json.RawMessage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.payload), nil
}

func (s *stubCaller) CallStructuredStream(ctx context.Context, req ai.StructuredRequest, onChunk ai.ChunkFunc) (json.RawMessage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	accumulated := ""
	for _, chunk := range s.chunks {
		accumulated += chunk
		onChunk(chunk, accumulated)
	}
	return json.RawMessage(s.payload), nil
}

func newEvaluateApp(t *testing.T, caller ai.StructuredCaller) *fiber.App {
	t.Helper()
	registry, err := evaluator.NewRegistry(schema.NewValidator())
	require.NoError(t, err)

	streamRelay := relay.New(relay.Config{
		HeartbeatInterval: 50 * time.Millisecond,
		Timeout:           2 * time.Second,
		Logger:            zerolog.Nop(),
	})

	app := fiber.New()
	h := handler.NewEvaluateHandler(registry, caller, streamRelay, validator.New(validator.WithRequiredStructEnabled()), zerolog.New(io.Discard))
	h.Register(app.Group("/api/evalprd"))
	return app
}

func postEvaluate(t *testing.T, app *fiber.App, path string, payload dto.EvaluateRequest) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func TestEvaluateHandler_ShortDocumentRejectedBeforeModelCall(t *testing.T) {
	caller := &stubCaller{payload: validBinaryScore}
	app := newEvaluateApp(t, caller)

	resp := postEvaluate(t, app, "/api/evalprd/binary_score", dto.EvaluateRequest{PRDText: "too short"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var response struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &response)
	require.False(t, response.Success)
	require.Contains(t, response.Message, "at least 100 characters")
	require.Zero(t, caller.calls, "short documents must never reach the model")
}

func TestEvaluateHandler_StreamsDeltasAndDone(t *testing.T) {
	caller := &stubCaller{
		chunks:  []string{`{"rubric`, `_version"`, `: "v1.0"`},
		payload: validBinaryScore,
	}
	app := newEvaluateApp(t, caller)

	resp := postEvaluate(t, app, "/api/evalprd/binary_score", dto.EvaluateRequest{PRDText: longPRDText})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	stream := string(body)

	require.True(t, strings.HasPrefix(stream, "event: start\n"), "stream must open with a start event")
	require.Equal(t, len(caller.chunks), strings.Count(stream, "event: delta\n"))
	require.Equal(t, 1, strings.Count(stream, "event: done\n"))
	require.NotContains(t, stream, "event: error\n")
	require.Contains(t, stream, `"rubric_version"`)
}

func TestEvaluateHandler_InvalidOutputBecomesErrorEvent(t *testing.T) {
	caller := &stubCaller{payload: `{"rubric_version": "v1.0"}`}
	app := newEvaluateApp(t, caller)

	resp := postEvaluate(t, app, "/api/evalprd/binary_score", dto.EvaluateRequest{PRDText: longPRDText})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	stream := string(body)

	require.Equal(t, 1, strings.Count(stream, "event: error\n"))
	require.NotContains(t, stream, "event: done\n")
	require.Contains(t, stream, "output validation failed")
}

func TestEvaluateHandler_UpstreamFailureBecomesErrorEvent(t *testing.T) {
	caller := &stubCaller{err: ai.ErrRateLimited}
	app := newEvaluateApp(t, caller)

	resp := postEvaluate(t, app, "/api/evalprd/fix_plan", dto.EvaluateRequest{PRDText: longPRDText})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	stream := string(body)

	require.Equal(t, 1, strings.Count(stream, "event: error\n"))
	require.NotContains(t, stream, "event: done\n")
}

func TestEvaluateHandler_AllThreeEvaluatorsRouted(t *testing.T) {
	for _, name := range []string{"binary_score", "fix_plan", "agent_tasks"} {
		caller := &stubCaller{payload: validBinaryScore}
		app := newEvaluateApp(t, caller)

		resp := postEvaluate(t, app, "/api/evalprd/"+name, dto.EvaluateRequest{PRDText: "x"})
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode, name)
	}
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
