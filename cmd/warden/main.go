package main

import (
	"encoding/base64"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"

	"github.com/warden-auth/warden/adapters/cache"
	"github.com/warden-auth/warden/adapters/events"
	"github.com/warden-auth/warden/adapters/hasher"
	"github.com/warden-auth/warden/adapters/store"
	"github.com/warden-auth/warden/adapters/tokenizer"
	"github.com/warden-auth/warden/adapters/verifier"
	"github.com/warden-auth/warden/config"
	"github.com/warden-auth/warden/ports"
	"github.com/warden-auth/warden/service"
	"github.com/warden-auth/warden/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Env}); err != nil {
			log.Fatalf("Failed to initialize Sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	keys, err := loadSigningKeys(cfg)
	if err != nil {
		log.Fatalf("Failed to load signing keys: %v", err)
	}
	tokenizerOpts := []tokenizer.Option{
		tokenizer.WithSubject(cfg.Token.Subject),
		tokenizer.WithTTL(cfg.Token.AuthorizationTTL, cfg.Token.RefreshTTL),
	}
	if cfg.Token.JWKSURL != "" {
		jwks, err := keyfunc.Get(cfg.Token.JWKSURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("Failed to load JWKS: %v", err)
		}
		tokenizerOpts = append(tokenizerOpts, tokenizer.WithJWKS(jwks))
	}
	jwtTokenizer := tokenizer.NewJWTTokenizer(keys, cfg.Token.Issuer, tokenizerOpts...)

	ceremonyVerifier, err := verifier.NewWebAuthnVerifier(verifier.Config{
		RPID:          cfg.WebAuthn.RPID,
		RPDisplayName: cfg.WebAuthn.RPDisplayName,
		RPOrigins:     cfg.WebAuthn.RPOrigins,
	})
	if err != nil {
		log.Fatalf("Failed to configure WebAuthn: %v", err)
	}

	accounts, err := openAccountStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open account store: %v", err)
	}

	challenges, eventPub := openRedisBacked(cfg, logger)
	defer eventPub.Close()

	passwordHasher := hasher.NewBcryptHasher(cfg.BcryptCost)

	passkeys := service.NewPasskeyService(
		accounts, challenges, ceremonyVerifier, jwtTokenizer, eventPub, logger,
		service.WithChallengeTTL(cfg.WebAuthn.ChallengeTTL),
	)
	auth := service.NewAuthService(accounts, jwtTokenizer, passwordHasher, passkeys, eventPub, logger)

	cookies := http.NewCookieWriter(cfg.CookieDomain, !cfg.IsDevelopment(), cfg.Token.AuthorizationTTL, cfg.Token.RefreshTTL)
	handlers := http.NewHandlers(auth, passkeys, cookies, logger)
	router := http.SetupRouter(handlers, logger)

	logger.Info("starting server", "addr", cfg.ListenAddr, "env", cfg.Env)
	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// loadSigningKeys decodes the configured base64 PEM keys, or generates
// ephemeral pairs in development.
func loadSigningKeys(cfg config.Config) (*tokenizer.SigningKeys, error) {
	if cfg.Token.AuthorizationKey == "" && cfg.Token.RefreshKey == "" && cfg.IsDevelopment() {
		return tokenizer.GenerateSigningKeys()
	}

	authorizationPEM, err := base64.StdEncoding.DecodeString(cfg.Token.AuthorizationKey)
	if err != nil {
		return nil, err
	}
	refreshPEM, err := base64.StdEncoding.DecodeString(cfg.Token.RefreshKey)
	if err != nil {
		return nil, err
	}
	return tokenizer.ParseSigningKeys(authorizationPEM, refreshPEM)
}

func openAccountStore(cfg config.Config) (ports.AccountStore, error) {
	if cfg.DatabaseURL == "" {
		return store.NewMemoryStore(), nil
	}
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return store.NewPostgresStore(db), nil
}

// openRedisBacked wires the challenge cache and event publisher to
// Redis, or memory/no-op fallbacks when no Redis URL is configured.
func openRedisBacked(cfg config.Config, logger *slog.Logger) (ports.ChallengeCache, ports.EventPublisher) {
	if cfg.RedisURL == "" {
		return cache.NewMemoryCache(), events.NopPublisher{}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	client := redis.NewClient(opts)

	publisher, err := events.NewRedisStreamPublisher(client, watermill.NewSlogLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create Redis publisher: %v", err)
	}
	return cache.NewRedisCache(client), publisher
}
