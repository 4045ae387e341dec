package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalprd/evalprd-api/internal/dto"
	"github.com/evalprd/evalprd-api/internal/evaluator"
	"github.com/evalprd/evalprd-api/internal/middleware"
	"github.com/evalprd/evalprd-api/internal/relay"
	"github.com/evalprd/evalprd-api/internal/utils"
	"github.com/evalprd/evalprd-api/pkg/ai"
)

// EvaluateHandler streams PRD evaluations over SSE. One generic run loop
// serves every registered evaluator; the route only selects the definition.
type EvaluateHandler struct {
	registry *evaluator.Registry
	caller   ai.StructuredCaller
	relay    *relay.Relay
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewEvaluateHandler constructs the handler.
func NewEvaluateHandler(registry *evaluator.Registry, caller ai.StructuredCaller, r *relay.Relay, validate *validator.Validate, logger zerolog.Logger) *EvaluateHandler {
	return &EvaluateHandler{
		registry: registry,
		caller:   caller,
		relay:    r,
		validate: validate,
		logger:   logger.With().Str("component", "evaluate_handler").Logger(),
	}
}

// Register binds one POST route per evaluator.
func (h *EvaluateHandler) Register(router fiber.Router) {
	for _, name := range h.registry.Names() {
		router.Post("/"+name, h.run(name))
	}
}

func (h *EvaluateHandler) run(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		definition, ok := h.registry.Definition(name)
		if !ok {
			return utils.SendError(c, fiber.StatusNotFound, "unknown evaluator")
		}

		var payload dto.EvaluateRequest
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
		if err := h.validate.Struct(payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, evaluateValidationMessage(err))
		}

		correlationID := middleware.GetCorrelationID(c)

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		ctx := c.UserContext()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = middleware.ContextWithCorrelation(ctx, correlationID)

		request := ai.StructuredRequest{
			SystemPrompt: definition.SystemPrompt(payload),
			UserPrompt:   definition.UserPrompt(payload),
			SchemaName:   definition.Name,
			Schema:       definition.Schema,
		}

		streamer := func(ctx context.Context, onChunk func(delta string)) (json.RawMessage, error) {
			return h.caller.CallStructuredStream(ctx, request, func(delta, _ string) {
				onChunk(delta)
			})
		}

		validateOutput := func(result json.RawMessage) error {
			return h.registry.ValidateOutput(definition.Name, result)
		}

		h.logger.Info().
			Str("correlation_id", correlationID).
			Str("evaluator", definition.Name).
			Int("prd_bytes", len(payload.PRDText)).
			Msg("evaluation stream starting")

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			h.relay.Run(ctx, w, correlationID, streamer, validateOutput)
		})

		return nil
	}
}

func evaluateValidationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "invalid payload"
	}
	for _, fieldErr := range validationErrors {
		if fieldErr.Field() == "PRDText" {
			switch fieldErr.Tag() {
			case "required":
				return "prd_text is required"
			case "min":
				return fmt.Sprintf("prd_text must be at least %s characters", fieldErr.Param())
			}
		}
	}
	return "invalid payload"
}
