package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName              string
	AppEnv               string
	AppPort              string
	DatabaseURL          string
	RedisURL             string
	NATSURL              string
	JWTSecret            string
	OpenAIAPIKey         string
	Model                string
	RequestTimeout       time.Duration
	HeartbeatInterval    time.Duration
	RateLimitMax         int
	RateLimitWindow      time.Duration
	AllowedOrigin        string
	MidtransServerKey    string
	MidtransIsProduction bool
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EVALPRD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "EvalPRD API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("model", "gpt-4o")
	v.SetDefault("request.timeout", "180s")
	v.SetDefault("heartbeat.interval", "5s")
	v.SetDefault("rate_limit.max", 10)
	v.SetDefault("rate_limit.window", "1m")

	timeout, err := time.ParseDuration(v.GetString("request.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid request timeout: %w", err)
	}

	heartbeat, err := time.ParseDuration(v.GetString("heartbeat.interval"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid heartbeat interval: %w", err)
	}

	window, err := time.ParseDuration(v.GetString("rate_limit.window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		DatabaseURL:          v.GetString("database.url"),
		RedisURL:             v.GetString("redis.url"),
		NATSURL:              v.GetString("nats.url"),
		JWTSecret:            v.GetString("jwt.secret"),
		OpenAIAPIKey:         v.GetString("openai_api_key"),
		Model:                v.GetString("model"),
		RequestTimeout:       timeout,
		HeartbeatInterval:    heartbeat,
		RateLimitMax:         v.GetInt("rate_limit.max"),
		RateLimitWindow:      window,
		AllowedOrigin:        v.GetString("allowed.origin"),
		MidtransServerKey:    v.GetString("midtrans.server_key"),
		MidtransIsProduction: v.GetBool("midtrans.is_production"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("openai api key must be provided")
	}

	return cfg, nil
}
