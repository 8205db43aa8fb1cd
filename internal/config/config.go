// Package config loads all process configuration into a single struct.
//
// Every tunable — token durations, signing secret, cookie domain, provider
// credentials — lives here and is parsed once at startup. The struct is then
// injected into the components that need it. There is deliberately no global
// settings object: a component that wants a value receives it (or the whole
// Config) through its constructor.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the full runtime configuration, parsed from environment
// variables. Defaults suit local development; production deployments are
// expected to set at least JWT_SECRET and the Google credentials.
type Config struct {
	Env         string `env:"ENV" envDefault:"dev"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"auth-gateway"`
	Port        int    `env:"PORT" envDefault:"8080"`
	DBPath      string `env:"DB_PATH" envDefault:"data/gateway.db"`

	// CORS allow-list for browser clients on other origins.
	AllowOrigins []string `env:"ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// CookieDomain scopes the token cookies set on the same-site login path.
	CookieDomain string `env:"SET_COOKIE_DOMAIN" envDefault:"localhost"`

	// ClientCallbackURL is where programmatic clients (the state-present
	// branch) are redirected with the issued tokens as query parameters.
	ClientCallbackURL string `env:"CLIENT_CALLBACK_URL" envDefault:"http://localhost:8001/callback"`

	JWTSecret    string        `env:"JWT_SECRET"`
	JWTAlgorithm string        `env:"JWT_ALGORITHM" envDefault:"HS256"`
	JWTAudience  string        `env:"JWT_AUDIENCE" envDefault:"auth-gateway-clients"`
	JWTIssuer    string        `env:"JWT_ISSUER" envDefault:"auth-gateway"`
	AccessTTL    time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTTL   time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	ResetTTL     time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
}

// Load reads a .env file if one exists, then parses the environment.
// A missing .env file is not an error — production sets real env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}

	if cfg.GoogleRedirectURL == "" {
		cfg.GoogleRedirectURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port)
	}

	return cfg, nil
}
