package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/evalprd/evalprd-api/internal/dto"
	"github.com/evalprd/evalprd-api/internal/handler"
	"github.com/evalprd/evalprd-api/internal/service"
)

type mockEvaluationService struct {
	saved     dto.EvaluationResponse
	summaries []dto.EvaluationSummary
	err       error
	lastOwner string
	lastID    uint
}

func (m *mockEvaluationService) Save(_ context.Context, ownerID string, req dto.SaveEvaluationRequest) (dto.EvaluationResponse, error) {
	m.lastOwner = ownerID
	if m.err != nil {
		return dto.EvaluationResponse{}, m.err
	}
	return m.saved, nil
}

func (m *mockEvaluationService) List(_ context.Context, ownerID string) ([]dto.EvaluationSummary, error) {
	m.lastOwner = ownerID
	return m.summaries, m.err
}

func (m *mockEvaluationService) Get(_ context.Context, ownerID string, id uint) (dto.EvaluationResponse, error) {
	m.lastOwner = ownerID
	m.lastID = id
	if m.err != nil {
		return dto.EvaluationResponse{}, m.err
	}
	return m.saved, nil
}

func (m *mockEvaluationService) Delete(_ context.Context, ownerID string, id uint) error {
	m.lastOwner = ownerID
	m.lastID = id
	return m.err
}

func newEvaluationApp(svc service.EvaluationService, authenticated bool) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/evaluations", func(c *fiber.Ctx) error {
		if authenticated {
			c.Locals("user_id", "auth0|user-1")
		}
		return c.Next()
	})
	handler.NewEvaluationHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.New(io.Discard)).Register(group)
	return app
}

func saveRequestBody(t *testing.T, isPaid bool) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(dto.SaveEvaluationRequest{
		PRDTitle:    "Checkout revamp",
		PRDText:     longPRDText,
		BinaryScore: json.RawMessage(`{"overall":"PASS"}`),
		IsPaid:      isPaid,
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestEvaluationHandler_SaveSuccess(t *testing.T) {
	svc := &mockEvaluationService{saved: dto.EvaluationResponse{ID: 7, PRDTitle: "Checkout revamp"}}
	app := newEvaluationApp(svc, true)

	req := httptest.NewRequest(http.MethodPost, "/api/evaluations", saveRequestBody(t, true))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "auth0|user-1", svc.lastOwner)

	var response struct {
		Success bool                   `json:"success"`
		Data    dto.EvaluationResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, uint(7), response.Data.ID)
}

func TestEvaluationHandler_SaveWithoutPayment(t *testing.T) {
	svc := &mockEvaluationService{err: service.ErrPaymentRequired}
	app := newEvaluationApp(svc, true)

	req := httptest.NewRequest(http.MethodPost, "/api/evaluations", saveRequestBody(t, false))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestEvaluationHandler_RequiresAuthentication(t *testing.T) {
	svc := &mockEvaluationService{}
	app := newEvaluationApp(svc, false)

	req := httptest.NewRequest(http.MethodGet, "/api/evaluations", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, svc.lastOwner)
}

func TestEvaluationHandler_OwnershipAndMissing(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "not found", err: service.ErrEvaluationNotFound, statusCode: fiber.StatusNotFound},
		{name: "foreign record", err: service.ErrOwnership, statusCode: fiber.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockEvaluationService{err: tc.err}
			app := newEvaluationApp(svc, true)

			req := httptest.NewRequest(http.MethodGet, "/api/evaluations/12", nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)
			require.Equal(t, uint(12), svc.lastID)

			req = httptest.NewRequest(http.MethodDelete, "/api/evaluations/12", nil)
			resp, err = app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)
		})
	}
}

func TestEvaluationHandler_InvalidID(t *testing.T) {
	svc := &mockEvaluationService{}
	app := newEvaluationApp(svc, true)

	req := httptest.NewRequest(http.MethodGet, "/api/evaluations/not-a-number", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
