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

// PaymentHandler exposes checkout creation and the gateway webhook.
type PaymentHandler struct {
	service  service.PaymentService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(service service.PaymentService, validate *validator.Validate, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:  service,
		validate: validate,
		logger:   logger.With().Str("component", "payment_handler").Logger(),
	}
}

// Register wires the authenticated checkout route.
func (h *PaymentHandler) Register(router fiber.Router) {
	router.Post("/create-checkout-session", h.createCheckout)
}

// RegisterWebhook wires the unauthenticated gateway callback.
func (h *PaymentHandler) RegisterWebhook(router fiber.Router) {
	router.Post("/webhook", h.webhook)
}

func (h *PaymentHandler) createCheckout(c *fiber.Ctx) error {
	ownerID := userIDFromContext(c)
	if ownerID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.CreateCheckoutRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(payload); err != nil {
		return utils.SendValidationError(c, err)
	}

	checkout, err := h.service.CreateCheckout(c.UserContext(), ownerID, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", ownerID).Msg("failed to create checkout session")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create checkout session")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "checkout session created", checkout)
}

func (h *PaymentHandler) webhook(c *fiber.Ctx) error {
	var notification dto.PaymentNotification
	if err := c.BodyParser(&notification); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.service.HandleNotification(c.UserContext(), notification); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			return utils.SendError(c, fiber.StatusBadRequest, "invalid signature")
		case errors.Is(err, service.ErrPaymentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "payment not found")
		default:
			h.logger.Error().Err(err).Str("order_id", notification.OrderID).Msg("webhook processing failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "webhook processing failed")
		}
	}

	return utils.SendSuccess(c, "notification processed", nil)
}
