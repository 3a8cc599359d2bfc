package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mlundquist/saga-engine/internal/services"
)

// Config is the process configuration, loaded from environment variables.
type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisAddr string
	DataDir   string

	// Brain and Voice may route to different providers and models. The
	// Reviewer reuses the Brain route when enabled.
	Brain           services.Route
	Voice           services.Route
	ReviewerEnabled bool
}

// Load reads configuration from the environment. Provider routes are
// validated here so a misconfigured credential fails at startup, not on
// the first turn.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		DataDir:     getEnv("DATA_DIR", "./data"),

		Brain: services.Route{
			Provider: getEnv("BRAIN_PROVIDER", "anthropic"),
			Model:    getEnv("BRAIN_MODEL", ""),
			APIKey:   providerKey(getEnv("BRAIN_PROVIDER", "anthropic")),
			BaseURL:  getEnv("OLLAMA_BASE_URL", ""),
		},
		Voice: services.Route{
			Provider: getEnv("VOICE_PROVIDER", getEnv("BRAIN_PROVIDER", "anthropic")),
			Model:    getEnv("VOICE_MODEL", getEnv("BRAIN_MODEL", "")),
			APIKey:   providerKey(getEnv("VOICE_PROVIDER", getEnv("BRAIN_PROVIDER", "anthropic"))),
			BaseURL:  getEnv("OLLAMA_BASE_URL", ""),
		},
		ReviewerEnabled: getEnv("REVIEWER_ENABLED", "true") == "true",
	}

	if cfg.Brain.Model == "" {
		return nil, fmt.Errorf("BRAIN_MODEL is required")
	}
	if cfg.Voice.Model == "" {
		return nil, fmt.Errorf("VOICE_MODEL is required")
	}

	return cfg, nil
}

func providerKey(provider string) string {
	switch strings.ToLower(provider) {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
