package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/evalprd/evalprd-api/internal/config"
	"github.com/evalprd/evalprd-api/internal/handler"
	"github.com/evalprd/evalprd-api/internal/middleware"
	"github.com/evalprd/evalprd-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluateHandler   *handler.EvaluateHandler
	AuthHandler       *handler.AuthHandler
	EvaluationHandler *handler.EvaluationHandler
	PaymentHandler    *handler.PaymentHandler
	JWTMiddleware     fiber.Handler
	RateLimitClient   *redis.Client
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	// Evaluation streams are open to anonymous callers; the rate limiter
	// (keyed by IP when no user is present) is what guards the model bill.
	if deps.EvaluateHandler != nil {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		evalprd := api.Group("/evalprd",
			middleware.RateLimit(deps.RateLimitClient, "evalprd", cfg.RateLimitMax, window),
		)
		deps.EvaluateHandler.Register(evalprd)
	}

	if deps.AuthHandler != nil {
		auth := api.Group("/auth", jwtMiddleware)
		deps.AuthHandler.Register(auth)
	}

	if deps.EvaluationHandler != nil {
		evaluations := api.Group("/evaluations", jwtMiddleware)
		deps.EvaluationHandler.Register(evaluations)
	}

	if deps.PaymentHandler != nil {
		payments := api.Group("/payments")
		// The gateway callback carries its own signature; it must stay
		// reachable without a bearer token.
		deps.PaymentHandler.RegisterWebhook(payments)
		deps.PaymentHandler.Register(payments.Group("", jwtMiddleware))
	}
}
