package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the chat service.
// Environment variables are parsed from the REVERIE_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Persistence Configuration
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"reverie.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Generation Configuration
	GenBackend string `envconfig:"GEN_BACKEND" default:"openai"`
	GenAPIKey  string `envconfig:"GEN_API_KEY" default:""`
	GenBaseURL string `envconfig:"GEN_BASE_URL" default:""`
	GenModel   string `envconfig:"GEN_MODEL" default:"gpt-4o-mini"`

	// Chatlog assembly
	TokenBudget int `envconfig:"TOKEN_BUDGET" default:"3000"`

	// Autonomous scheduler
	TickSpec         string  `envconfig:"TICK_SPEC" default:"@every 1m"`
	ThoughtThreshold float64 `envconfig:"THOUGHT_THRESHOLD" default:"0.0333"`
	EventThreshold   float64 `envconfig:"EVENT_THRESHOLD" default:"0.0333"`
	PostThreshold    float64 `envconfig:"POST_THRESHOLD" default:"0.0167"`

	// Image generation
	ImageBackendURL  string `envconfig:"IMAGE_BACKEND_URL" default:""`
	ImageAPIKey      string `envconfig:"IMAGE_API_KEY" default:""`
	ImagePollSeconds int    `envconfig:"IMAGE_POLL_SECONDS" default:"60"`
	ImageMaxPolls    int    `envconfig:"IMAGE_MAX_POLLS" default:"60"`
	BlobDir          string `envconfig:"BLOB_DIR" default:"blobs"`
}

// ResolveDefaults validates driver and backend choices.
func (c *Config) ResolveDefaults() error {
	allowedDB := map[string]bool{"sqlite": true, "postgres": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
	}
	allowedGen := map[string]bool{"openai": true, "mock": true}
	if !allowedGen[c.GenBackend] {
		return fmt.Errorf("unsupported GEN_BACKEND: %s", c.GenBackend)
	}
	if c.TokenBudget <= 0 {
		return fmt.Errorf("TOKEN_BUDGET must be positive, got %d", c.TokenBudget)
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Example: REVERIE_HTTP_PORT, REVERIE_DB_DRIVER.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("REVERIE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("db_driver", cfg.DBDriver).
		Str("gen_backend", cfg.GenBackend).
		Str("gen_model", cfg.GenModel).
		Int("token_budget", cfg.TokenBudget).
		Str("tick_spec", cfg.TickSpec).
		Bool("image_backend_present", cfg.ImageBackendURL != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		Environment:      EnvTesting,
		HTTPPort:         8080,
		DBDriver:         "sqlite",
		SQLitePath:       ":memory:",
		GenBackend:       "mock",
		GenModel:         "test-model",
		TokenBudget:      3000,
		TickSpec:         "@every 1m",
		ThoughtThreshold: 1.0 / 30,
		EventThreshold:   1.0 / 30,
		PostThreshold:    1.0 / 60,
		ImagePollSeconds: 60,
		ImageMaxPolls:    60,
		BlobDir:          "blobs",
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool { return c.Environment == EnvTesting }

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
