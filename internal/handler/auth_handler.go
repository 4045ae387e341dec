package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalprd/evalprd-api/internal/dto"
	"github.com/evalprd/evalprd-api/internal/service"
	"github.com/evalprd/evalprd-api/internal/utils"
)

// AuthHandler exposes profile registration and lookup for token subjects.
type AuthHandler struct {
	service  service.AuthService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service service.AuthService, validate *validator.Validate, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		validate: validate,
		logger:   logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register wires auth routes.
func (h *AuthHandler) Register(router fiber.Router) {
	router.Post("/register", h.register)
	router.Get("/me", h.me)
}

func (h *AuthHandler) register(c *fiber.Ctx) error {
	subject := userIDFromContext(c)
	if subject == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(payload); err != nil {
		return utils.SendValidationError(c, err)
	}

	user, err := h.service.Register(c.UserContext(), subject, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", subject).Msg("failed to register user")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to register user")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user registered", user)
}

func (h *AuthHandler) me(c *fiber.Ctx) error {
	subject := userIDFromContext(c)
	if subject == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	user, err := h.service.Me(c.UserContext(), subject)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		h.logger.Error().Err(err).Str("user_id", subject).Msg("failed to load user")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load user")
	}

	return utils.SendSuccess(c, "user profile", user)
}
