package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalprd/evalprd-api/internal/dto"
	"github.com/evalprd/evalprd-api/internal/service"
	"github.com/evalprd/evalprd-api/internal/utils"
)

// EvaluationHandler exposes the saved-evaluation CRUD surface.
type EvaluationHandler struct {
	service  service.EvaluationService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewEvaluationHandler constructs the handler.
func NewEvaluationHandler(service service.EvaluationService, validate *validator.Validate, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service:  service,
		validate: validate,
		logger:   logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register wires the evaluation routes.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("", h.save)
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.remove)
}

func (h *EvaluationHandler) save(c *fiber.Ctx) error {
	ownerID := userIDFromContext(c)
	if ownerID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.SaveEvaluationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(payload); err != nil {
		return utils.SendValidationError(c, err)
	}

	evaluation, err := h.service.Save(c.UserContext(), ownerID, payload)
	if err != nil {
		if errors.Is(err, service.ErrPaymentRequired) {
			return utils.SendError(c, fiber.StatusForbidden, "payment required")
		}
		requestLogger(h.logger, c).Error().Err(err).Str("user_id", ownerID).Msg("failed to save evaluation")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to save evaluation")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "evaluation saved", evaluation)
}

func (h *EvaluationHandler) list(c *fiber.Ctx) error {
	ownerID := userIDFromContext(c)
	if ownerID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	evaluations, err := h.service.List(c.UserContext(), ownerID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", ownerID).Msg("failed to list evaluations")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list evaluations")
	}

	return utils.SendSuccess(c, "evaluations", evaluations)
}

func (h *EvaluationHandler) get(c *fiber.Ctx) error {
	ownerID := userIDFromContext(c)
	if ownerID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid evaluation id")
	}

	evaluation, err := h.service.Get(c.UserContext(), ownerID, id)
	if err != nil {
		return h.mapLookupError(c, ownerID, err)
	}

	return utils.SendSuccess(c, "evaluation", evaluation)
}

func (h *EvaluationHandler) remove(c *fiber.Ctx) error {
	ownerID := userIDFromContext(c)
	if ownerID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	id, err := parseIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid evaluation id")
	}

	if err := h.service.Delete(c.UserContext(), ownerID, id); err != nil {
		return h.mapLookupError(c, ownerID, err)
	}

	return utils.SendSuccess(c, "evaluation deleted", nil)
}

func (h *EvaluationHandler) mapLookupError(c *fiber.Ctx, ownerID string, err error) error {
	switch {
	case errors.Is(err, service.ErrEvaluationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
	case errors.Is(err, service.ErrOwnership):
		return utils.SendError(c, fiber.StatusForbidden, "access denied")
	default:
		requestLogger(h.logger, c).Error().Err(err).Str("user_id", ownerID).Msg("evaluation lookup failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "evaluation lookup failed")
	}
}

func parseIDParam(c *fiber.Ctx) (uint, error) {
	parsed, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}
