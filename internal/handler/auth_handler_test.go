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

type mockAuthService struct {
	user        dto.UserResponse
	err         error
	lastSubject string
}

func (m *mockAuthService) Register(_ context.Context, subject string, req dto.RegisterRequest) (dto.UserResponse, error) {
	m.lastSubject = subject
	if m.err != nil {
		return dto.UserResponse{}, m.err
	}
	return m.user, nil
}

func (m *mockAuthService) Me(_ context.Context, subject string) (dto.UserResponse, error) {
	m.lastSubject = subject
	if m.err != nil {
		return dto.UserResponse{}, m.err
	}
	return m.user, nil
}

func newAuthApp(svc service.AuthService, authenticated bool) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/auth", func(c *fiber.Ctx) error {
		if authenticated {
			c.Locals("user_id", "auth0|subject")
		}
		return c.Next()
	})
	handler.NewAuthHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.New(io.Discard)).Register(group)
	return app
}

func TestAuthHandler_Register(t *testing.T) {
	svc := &mockAuthService{user: dto.UserResponse{ID: "auth0|subject", FirstName: "Ada", Email: "ada@example.com"}}
	app := newAuthApp(svc, true)

	body, err := json.Marshal(dto.RegisterRequest{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "auth0|subject", svc.lastSubject)
}

func TestAuthHandler_RegisterValidation(t *testing.T) {
	svc := &mockAuthService{}
	app := newAuthApp(svc, true)

	body, err := json.Marshal(dto.RegisterRequest{FirstName: "Ada", LastName: "Lovelace", Email: "not-an-email"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Empty(t, svc.lastSubject)
}

func TestAuthHandler_MeNotFound(t *testing.T) {
	svc := &mockAuthService{err: service.ErrUserNotFound}
	app := newAuthApp(svc, true)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAuthHandler_MeUnauthenticated(t *testing.T) {
	svc := &mockAuthService{}
	app := newAuthApp(svc, false)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
