package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/warden-auth/warden/core"
	"github.com/warden-auth/warden/observability/metrics"
	"github.com/warden-auth/warden/ports"
)

// DefaultChallengeTTL bounds how long a begun ceremony stays valid.
const DefaultChallengeTTL = 5 * time.Minute

// PasskeyService runs WebAuthn registration and assertion ceremonies
type PasskeyService struct {
	store     ports.AccountStore
	cache     ports.ChallengeCache
	verifier  ports.CeremonyVerifier
	tokenizer ports.Tokenizer
	eventPub  ports.EventPublisher
	logger    *slog.Logger

	challengeTTL time.Duration
}

// PasskeyOption configures a PasskeyService.
type PasskeyOption func(*PasskeyService)

// WithChallengeTTL overrides the ceremony challenge lifetime.
func WithChallengeTTL(ttl time.Duration) PasskeyOption {
	return func(s *PasskeyService) { s.challengeTTL = ttl }
}

// NewPasskeyService creates a new ceremony controller
func NewPasskeyService(
	store ports.AccountStore,
	cache ports.ChallengeCache,
	verifier ports.CeremonyVerifier,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	logger *slog.Logger,
	opts ...PasskeyOption,
) *PasskeyService {
	s := &PasskeyService{
		store:        store,
		cache:        cache,
		verifier:     verifier,
		tokenizer:    tokenizer,
		eventPub:     eventPub,
		logger:       logger,
		challengeTTL: DefaultChallengeTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartRegistration begins a registration ceremony for the account
// behind identifier and returns the publicKey creation options.
func (s *PasskeyService) StartRegistration(ctx context.Context, identifier string) (json.RawMessage, error) {
	account, err := s.store.FindAccount(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return s.beginRegistration(ctx, account)
}

func (s *PasskeyService) beginRegistration(ctx context.Context, account *core.Account) (json.RawMessage, error) {
	challenge, err := s.verifier.BeginRegistration(account)
	metrics.Observe(metrics.Ceremonies, err, string(core.CeremonyRegistration), "begin")
	if err != nil {
		return nil, core.RequestNotCompleted("failed to start registration").WithCause(err)
	}

	key := core.ChallengeKey(core.CeremonyRegistration, account.UUID)
	if err := s.cache.Put(ctx, key, challenge.Session, s.challengeTTL); err != nil {
		return nil, core.RequestNotCompleted("failed to store challenge").WithCause(err)
	}
	return challenge.Options, nil
}

// ValidateRegistration finishes a registration ceremony: the attestation
// response is checked against the cached challenge and the resulting
// credential is attached to the account.
func (s *PasskeyService) ValidateRegistration(ctx context.Context, identifier string, response []byte) error {
	account, err := s.store.FindAccount(ctx, identifier)
	if err != nil {
		return err
	}

	key := core.ChallengeKey(core.CeremonyRegistration, account.UUID)
	session, err := s.cache.TakeIfPresent(ctx, key, s.challengeTTL)
	if err != nil {
		return core.RequestNotCompleted("failed to load challenge").WithCause(err)
	}
	if session == nil {
		metrics.Ceremonies.WithLabelValues(string(core.CeremonyRegistration), "finish", metrics.ResultError).Inc()
		return core.RequestNotCompleted("no pending registration ceremony")
	}

	credential, err := s.verifier.FinishRegistration(account, session, response)
	metrics.Observe(metrics.Ceremonies, err, string(core.CeremonyRegistration), "finish")
	if err != nil {
		s.logger.Warn("registration ceremony failed", "uuid", account.UUID, "error", err)
		return core.RequestNotCompleted("registration verification failed").WithCause(err)
	}
	s.evict(ctx, key)

	if err := s.store.AppendCredential(ctx, account.UUID, *credential); err != nil {
		return core.AccountCreationError().WithCause(err)
	}

	s.publish(ctx, ports.TopicPasskeyRegistered, map[string]string{
		"uuid":          account.UUID,
		"credential_id": credential.CredentialID,
	})
	s.logger.Info("passkey registered", "uuid", account.UUID, "credential_id", credential.CredentialID)
	return nil
}

// StartAssertion begins an assertion ceremony for the account behind
// identifier and returns the publicKey request options.
func (s *PasskeyService) StartAssertion(ctx context.Context, identifier string) (json.RawMessage, error) {
	account, err := s.store.FindAccount(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return s.beginAssertion(ctx, account)
}

func (s *PasskeyService) beginAssertion(ctx context.Context, account *core.Account) (json.RawMessage, error) {
	challenge, err := s.verifier.BeginAssertion(account)
	metrics.Observe(metrics.Ceremonies, err, string(core.CeremonyAssertion), "begin")
	if err != nil {
		return nil, core.RequestNotCompleted("failed to start assertion").WithCause(err)
	}

	key := core.ChallengeKey(core.CeremonyAssertion, account.UUID)
	if err := s.cache.Put(ctx, key, challenge.Session, s.challengeTTL); err != nil {
		return nil, core.RequestNotCompleted("failed to store challenge").WithCause(err)
	}
	return challenge.Options, nil
}

// ValidateAssertion finishes an assertion ceremony and issues a token
// pair on success. The observed signature counter is persisted before
// tokens are minted; a failed counter write fails the ceremony.
func (s *PasskeyService) ValidateAssertion(ctx context.Context, identifier string, response []byte) (*core.SecurityToken, error) {
	account, err := s.store.FindAccount(ctx, identifier)
	if err != nil {
		return nil, err
	}

	key := core.ChallengeKey(core.CeremonyAssertion, account.UUID)
	session, err := s.cache.TakeIfPresent(ctx, key, s.challengeTTL)
	if err != nil {
		return nil, core.RequestNotCompleted("failed to load challenge").WithCause(err)
	}
	if session == nil {
		metrics.Ceremonies.WithLabelValues(string(core.CeremonyAssertion), "finish", metrics.ResultError).Inc()
		return nil, core.RequestNotCompleted("no pending assertion ceremony")
	}

	result, err := s.verifier.FinishAssertion(account, session, response)
	if err != nil {
		metrics.Ceremonies.WithLabelValues(string(core.CeremonyAssertion), "finish", metrics.ResultError).Inc()
		return nil, core.RequestNotCompleted("assertion verification failed").WithCause(err)
	}
	if !result.Success {
		metrics.Ceremonies.WithLabelValues(string(core.CeremonyAssertion), "finish", metrics.ResultError).Inc()
		metrics.AuthenticationAttempts.WithLabelValues(string(core.StrategyPasskey), metrics.ResultError).Inc()
		s.logger.Warn("assertion ceremony failed", "uuid", account.UUID, "reason", result.Reason)
		return nil, core.RequestNotCompleted("assertion verification failed")
	}
	metrics.Ceremonies.WithLabelValues(string(core.CeremonyAssertion), "finish", metrics.ResultOK).Inc()
	s.evict(ctx, key)

	if err := s.store.UpdateCredentialSignCount(ctx, account.UUID, result.CredentialID, result.SignCount, result.BackupState); err != nil {
		return nil, core.RequestNotCompleted("failed to persist signature counter").WithCause(err)
	}

	token, err := s.tokenizer.Issue(account.UUID, uuid.NewString())
	metrics.Observe(metrics.TokenOperations, err, "issue")
	if err != nil {
		return nil, core.RequestNotCompleted("failed to issue tokens").WithCause(err)
	}

	metrics.AuthenticationAttempts.WithLabelValues(string(core.StrategyPasskey), metrics.ResultOK).Inc()
	s.publish(ctx, ports.TopicAuthenticated, map[string]string{
		"uuid":     account.UUID,
		"strategy": string(core.StrategyPasskey),
	})
	return token, nil
}

// evict drops a consumed challenge so an assertion or attestation
// response cannot be replayed against it.
func (s *PasskeyService) evict(ctx context.Context, key string) {
	if err := s.cache.Evict(ctx, key); err != nil {
		s.logger.Warn("challenge evict failed", "key", key, "error", err)
	}
}

func (s *PasskeyService) publish(ctx context.Context, topic string, payload any) {
	if err := s.eventPub.Publish(ctx, topic, payload); err != nil {
		s.logger.Warn("event publish failed", "topic", topic, "error", err)
	}
}
