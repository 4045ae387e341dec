package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/evalprd/evalprd-api/internal/config"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service,omitempty"`
	Environment string    `json:"environment,omitempty"`
}

// HealthCheck returns a handler that reports application health information.
// The payload is intentionally unwrapped so uptime probes can read status
// directly.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		})
	}
}
