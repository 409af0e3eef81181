package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all unfold configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	LLM       LLMConfig
	Auth      AuthConfig
	Retention RetentionConfig
	Route     RouteConfig
	Log       LogConfig
}

type ServerConfig struct {
	Bind string `env:"UNFOLD_BIND"`
	Port int    `env:"UNFOLD_PORT"`
}

type DatabaseConfig struct {
	Path string `env:"UNFOLD_DB_PATH"`
}

type LLMConfig struct {
	Provider     string        `env:"UNFOLD_LLM_PROVIDER"` // "openai", "anthropic", "ollama"
	Model        string        `env:"UNFOLD_LLM_MODEL"`
	BaseURL      string        `env:"UNFOLD_LLM_BASE_URL"` // OpenAI-compatible endpoint, Groq by default
	APIKey       string        `env:"GROQ_API_KEY"`
	OllamaURL    string        `env:"UNFOLD_OLLAMA_URL"`
	AnthropicKey string        `env:"ANTHROPIC_API_KEY"`
	Timeout      time.Duration `env:"UNFOLD_LLM_TIMEOUT"`
}

type AuthConfig struct {
	JWTSecret string `env:"UNFOLD_JWT_SECRET"`
	Issuer    string `env:"UNFOLD_JWT_ISSUER"`
}

type RetentionConfig struct {
	SweepEnabled bool   `env:"UNFOLD_RETENTION_SWEEP"`
	SweepAt      string `env:"UNFOLD_RETENTION_SWEEP_AT"` // HH:MM, UTC
}

type RouteConfig struct {
	NominatimURL string        `env:"UNFOLD_NOMINATIM_URL"`
	OSRMURL      string        `env:"UNFOLD_OSRM_URL"` // up to /route/v1/driving
	UserAgent    string        `env:"UNFOLD_ROUTE_USER_AGENT"`
	Timeout      time.Duration `env:"UNFOLD_ROUTE_TIMEOUT"`
}

type LogConfig struct {
	Level  string `env:"UNFOLD_LOG_LEVEL"`
	Format string `env:"UNFOLD_LOG_FORMAT"` // "text" or "json"
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 8000,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "llama-3.1-8b-instant",
			BaseURL:  "https://api.groq.com/openai/v1",
			Timeout:  30 * time.Second,
		},
		Auth: AuthConfig{
			Issuer: "unfold",
		},
		Retention: RetentionConfig{
			SweepEnabled: true,
			SweepAt:      "03:00",
		},
		Route: RouteConfig{
			NominatimURL: "https://nominatim.openstreetmap.org/search",
			OSRMURL:      "https://router.project-osrm.org/route/v1/driving",
			UserAgent:    "UnfoldIndia/1.0 (travel-app)",
			Timeout:      15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load returns Default() overlaid with the process environment. A .env file
// in the working directory is read first when present; variables already
// set in the environment win over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv overlays environment variables on top of Default().
func FromEnv() (Config, error) {
	cfg := Default()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
