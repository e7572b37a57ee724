// Package config holds the environment-supplied settings for the server.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is populated from the environment. Defaults suit local
// development; production deployments must set ACCESS_ADMIN_API_KEY.
type Config struct {
	HTTPAddr string `env:"ACCESS_HTTP_ADDR" envDefault:":8080"`
	DBPath   string `env:"ACCESS_DB_PATH" envDefault:"./data/access.db"`

	// Shared admin credential checked by the HTTP layer. Empty disables
	// the admin surface entirely.
	AdminAPIKey string `env:"ACCESS_ADMIN_API_KEY"`

	// Defaults applied when a create request omits the fields.
	DefaultExpiryDays int `env:"ACCESS_DEFAULT_EXPIRY_DAYS" envDefault:"30"`
	DefaultUses       int `env:"ACCESS_DEFAULT_USES" envDefault:"100"`

	// Code generation. Empty alphabet means the engine default.
	CodeAlphabet string `env:"ACCESS_CODE_ALPHABET"`
	CodeLength   int    `env:"ACCESS_CODE_LENGTH" envDefault:"8"`

	CORSOrigins []string `env:"ACCESS_CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:8080"`
}

// FromEnv parses configuration from the process environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
