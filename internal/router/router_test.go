package router_test

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

	"github.com/evalprd/evalprd-api/internal/config"
	"github.com/evalprd/evalprd-api/internal/evaluator"
	"github.com/evalprd/evalprd-api/internal/handler"
	"github.com/evalprd/evalprd-api/internal/middleware"
	"github.com/evalprd/evalprd-api/internal/relay"
	"github.com/evalprd/evalprd-api/internal/router"
	"github.com/evalprd/evalprd-api/pkg/ai"
	"github.com/evalprd/evalprd-api/pkg/schema"
)

const anonymousPRDText = "This product requirements document describes a billing portal in enough detail to clear the minimum length gate applied before any model call is made."

const anonymousBinaryScore = `{
	"rubric_version": "v1.0",
	"prd_title": "Billing portal",
	"pass_count": 0,
	"fail_count": 0,
	"criteria": [],
	"gating_failures": [],
	"readiness_gate": {"state": "GO", "must_pass_met": true, "total_pass": 0, "reason": "ok"},
	"compliance": {"gaps_count": 0, "gaps": []},
	"agreement": {"present": false, "percent_agreement": 0, "by_criterion": []}
}`

type streamCallerStub struct {
	payload string
	calls   int
}

func (s *streamCallerStub) CallStructured(ctx context.Context, req ai.StructuredRequest) (json.RawMessage, error) {
	s.calls++
	return json.RawMessage(s.payload), nil
}

func (s *streamCallerStub) CallStructuredStream(ctx context.Context, req ai.StructuredRequest, onChunk ai.ChunkFunc) (json.RawMessage, error) {
	s.calls++
	onChunk(s.payload, s.payload)
	return json.RawMessage(s.payload), nil
}

func newRouterApp(t *testing.T, caller ai.StructuredCaller) *fiber.App {
	t.Helper()

	registry, err := evaluator.NewRegistry(schema.NewValidator())
	require.NoError(t, err)

	streamRelay := relay.New(relay.Config{
		HeartbeatInterval: 50 * time.Millisecond,
		Timeout:           2 * time.Second,
		Logger:            zerolog.Nop(),
	})

	evaluateHandler := handler.NewEvaluateHandler(
		registry,
		caller,
		streamRelay,
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.New(io.Discard),
	)

	cfg := config.Config{AppName: "evalprd-api", AppEnv: "test"}
	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		EvaluateHandler: evaluateHandler,
		JWTMiddleware:   middleware.JWTProtected("router-test-secret"),
	})
	return app
}

func TestEvaluateRoutesAcceptAnonymousCallers(t *testing.T) {
	caller := &streamCallerStub{payload: anonymousBinaryScore}
	app := newRouterApp(t, caller)

	body, err := json.Marshal(map[string]string{"prd_text": anonymousPRDText})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/evalprd/binary_score", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	stream := string(raw)
	require.True(t, strings.HasPrefix(stream, "event: start"))
	require.Contains(t, stream, "event: done")
	require.NotContains(t, stream, "event: error")
	require.Equal(t, 1, caller.calls)
}

func TestHealthRouteIsUnauthenticated(t *testing.T) {
	app := newRouterApp(t, &streamCallerStub{payload: anonymousBinaryScore})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
