package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/evalprd/evalprd-api/internal/config"
	"github.com/evalprd/evalprd-api/internal/database"
	"github.com/evalprd/evalprd-api/internal/evaluator"
	"github.com/evalprd/evalprd-api/internal/handler"
	"github.com/evalprd/evalprd-api/internal/middleware"
	"github.com/evalprd/evalprd-api/internal/relay"
	"github.com/evalprd/evalprd-api/internal/repository"
	"github.com/evalprd/evalprd-api/internal/router"
	"github.com/evalprd/evalprd-api/internal/service"
	"github.com/evalprd/evalprd-api/pkg/ai"
	"github.com/evalprd/evalprd-api/pkg/events"
	"github.com/evalprd/evalprd-api/pkg/schema"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, falling back to in-process rate limiting")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, domain events disabled")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}
	publisher := events.NewPublisher(natsConn, logger)

	caller, err := ai.NewOpenAIClient(ai.OpenAIConfig{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.Model,
	})
	if err != nil {
		log.Fatalf("failed to create model client: %v", err)
	}

	registry, err := evaluator.NewRegistry(schema.NewValidator())
	if err != nil {
		log.Fatalf("failed to build evaluator registry: %v", err)
	}

	streamRelay := relay.New(relay.Config{
		HeartbeatInterval: cfg.HeartbeatInterval,
		Timeout:           cfg.RequestTimeout,
		Logger:            logger,
	})

	midtransEnv := midtrans.Sandbox
	if cfg.MidtransIsProduction {
		midtransEnv = midtrans.Production
	}
	var snapClient snap.Client
	snapClient.New(cfg.MidtransServerKey, midtransEnv)

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	stagedRepo := repository.NewStagedEvaluationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	authService := service.NewAuthService(userRepo, logger)
	evaluationService := service.NewEvaluationService(evaluationRepo, publisher, logger)
	paymentService := service.NewPaymentService(paymentRepo, stagedRepo, evaluationRepo, &snapClient, publisher, cfg.MidtransServerKey, logger)

	evaluateHandler := handler.NewEvaluateHandler(registry, caller, streamRelay, validate, logger)
	authHandler := handler.NewAuthHandler(authService, validate, logger)
	evaluationHandler := handler.NewEvaluationHandler(evaluationService, validate, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowedOrigin: cfg.AllowedOrigin})
	router.Register(app, cfg, router.Dependencies{
		EvaluateHandler:   evaluateHandler,
		AuthHandler:       authHandler,
		EvaluationHandler: evaluationHandler,
		PaymentHandler:    paymentHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		RateLimitClient:   redisClient,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
