package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the immutable process configuration, loaded once at
// startup and passed by value to constructors.
type Config struct {
	Env          string `env:"WARDEN_ENV" envDefault:"development"`
	ListenAddr   string `env:"WARDEN_LISTEN_ADDR" envDefault:":8080"`
	DatabaseURL  string `env:"WARDEN_DATABASE_URL"`
	RedisURL     string `env:"WARDEN_REDIS_URL"`
	SentryDSN    string `env:"WARDEN_SENTRY_DSN"`
	CookieDomain string `env:"WARDEN_COOKIE_DOMAIN"`
	BcryptCost   int    `env:"WARDEN_BCRYPT_COST" envDefault:"10"`

	Token    TokenConfig
	WebAuthn WebAuthnConfig
}

// TokenConfig controls JWT issuance and verification.
type TokenConfig struct {
	Issuer  string `env:"WARDEN_TOKEN_ISSUER" envDefault:"warden"`
	Subject string `env:"WARDEN_TOKEN_SUBJECT" envDefault:"warden"`

	// Base64-encoded PEM private keys, one per token kind. Empty keys
	// mean ephemeral generated pairs (development only).
	AuthorizationKey string `env:"WARDEN_AUTHORIZATION_KEY"`
	RefreshKey       string `env:"WARDEN_REFRESH_KEY"`

	// JWKS endpoint for public-key resolution. Empty means the public
	// halves of the signing keys are used directly.
	JWKSURL string `env:"WARDEN_JWKS_URL"`

	AuthorizationTTL time.Duration `env:"WARDEN_AUTHORIZATION_TTL" envDefault:"1h"`
	RefreshTTL       time.Duration `env:"WARDEN_REFRESH_TTL" envDefault:"31556952s"`
}

// WebAuthnConfig controls the relying party settings.
type WebAuthnConfig struct {
	RPID          string        `env:"WARDEN_RP_ID" envDefault:"localhost"`
	RPDisplayName string        `env:"WARDEN_RP_DISPLAY_NAME" envDefault:"Warden"`
	RPOrigins     []string      `env:"WARDEN_RP_ORIGINS" envSeparator:"," envDefault:"http://localhost:8080"`
	ChallengeTTL  time.Duration `env:"WARDEN_CHALLENGE_TTL" envDefault:"5m"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// IsDevelopment reports whether the process runs outside production.
// Cookies lose the Secure attribute and missing signing keys are
// generated on the fly in this mode.
func (c Config) IsDevelopment() bool {
	return c.Env != "production"
}
