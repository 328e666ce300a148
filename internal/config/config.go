// Package config loads runtime configuration from the environment,
// optionally seeded by a ".env" file, matching the service's documented
// environment surface.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is the process-wide configuration resolved at startup.
type Config struct {
	PGConn      string
	GeminiKey   string
	GeminiModel string
}

// Load reads .env (if present, silently ignored otherwise) and then
// resolves PGCONN/GEMINI_API_KEY/GEMINI_MODEL from the environment.
// flagPGConn, when non-empty, takes precedence over PGCONN.
func Load(flagPGConn string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("loading .env")
	}

	pgconn := flagPGConn
	if pgconn == "" {
		pgconn = os.Getenv("PGCONN")
	}
	if pgconn == "" {
		return nil, fmt.Errorf("no store connection string: set PGCONN or pass --pgconn")
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.0-flash"
	}

	return &Config{
		PGConn:      pgconn,
		GeminiKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel: model,
	}, nil
}

// AIEnabled reports whether the LLM summarisation step can run at all:
// an API key must be configured.
func (c *Config) AIEnabled() bool {
	return c.GeminiKey != ""
}
