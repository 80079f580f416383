package infra

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"tracker"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"tracker"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"tracker"`

	// Server
	APIPort            int    `env:"API_PORT" envDefault:"3200"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Ledger currency (minor units in storage, major units on reports)
	Currency string `env:"CURRENCY" envDefault:"INR"`

	// Player alias table: path to a JSON object mapping handle to display name.
	// Empty means no aliases; handles pass through unchanged.
	PlayerAliasFile string `env:"PLAYER_ALIAS_FILE"`

	// Remote mirror (optional). Mirroring is disabled when the URL is empty.
	MirrorBaseURL string `env:"MIRROR_BASE_URL"`
	MirrorAPIKey  string `env:"MIRROR_API_KEY"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration that would fail at first use.
func (c *Config) Validate() error {
	if money.GetCurrency(c.Currency) == nil {
		return fmt.Errorf("CURRENCY %q is not a known ISO 4217 code", c.Currency)
	}
	if c.MirrorAPIKey != "" && c.MirrorBaseURL == "" {
		return fmt.Errorf("MIRROR_API_KEY is set but MIRROR_BASE_URL is empty")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
