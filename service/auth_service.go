package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/warden-auth/warden/core"
	"github.com/warden-auth/warden/observability/metrics"
	"github.com/warden-auth/warden/ports"
)

// AuthService orchestrates signup, strategy resolution and
// authentication
type AuthService struct {
	store     ports.AccountStore
	tokenizer ports.Tokenizer
	hasher    ports.PasswordHasher
	passkeys  *PasskeyService
	eventPub  ports.EventPublisher
	logger    *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	store ports.AccountStore,
	tokenizer ports.Tokenizer,
	hasher ports.PasswordHasher,
	passkeys *PasskeyService,
	eventPub ports.EventPublisher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:     store,
		tokenizer: tokenizer,
		hasher:    hasher,
		passkeys:  passkeys,
		eventPub:  eventPub,
		logger:    logger,
	}
}

// CreateAccountRequest carries the signup payload
type CreateAccountRequest struct {
	Username    string                      `json:"username"`
	Email       string                      `json:"email"`
	DisplayName string                      `json:"displayName"`
	Password    string                      `json:"password"`
	Strategy    core.AuthenticationStrategy `json:"authenticationStrategy"`
}

// SignUpResult is either a token pair (password signup) or the
// creation options of the registration ceremony (passkey signup)
type SignUpResult struct {
	Account             *core.Account
	Token               *core.SecurityToken
	RegistrationOptions json.RawMessage
}

// SignUp creates an account. Password signups return a token pair;
// passkey signups hand off to the registration ceremony and return its
// creation options.
func (s *AuthService) SignUp(ctx context.Context, req CreateAccountRequest) (*SignUpResult, error) {
	account := &core.Account{
		UUID:        uuid.NewString(),
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
	}

	if req.Strategy != core.StrategyPasskey {
		if req.Password == "" {
			return nil, core.NullPassword()
		}
		digest, err := s.hasher.Hash(req.Password)
		if err != nil {
			return nil, core.AccountCreationError().WithCause(err)
		}
		account.PasswordDigest = digest
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		if core.CodeOf(err) == core.CodeAccountExists {
			return nil, err
		}
		return nil, core.AccountCreationError().WithCause(err)
	}

	s.publish(ctx, ports.TopicAccountCreated, map[string]string{
		"uuid":     account.UUID,
		"username": account.Username,
		"strategy": string(account.Strategy()),
	})
	s.logger.Info("account created", "uuid", account.UUID, "strategy", req.Strategy)

	if req.Strategy == core.StrategyPasskey {
		options, err := s.passkeys.beginRegistration(ctx, account)
		if err != nil {
			return nil, err
		}
		return &SignUpResult{Account: account, RegistrationOptions: options}, nil
	}

	token, err := s.issue(ctx, account, core.StrategyPassword)
	if err != nil {
		return nil, err
	}
	return &SignUpResult{Account: account, Token: token}, nil
}

// ResolveStrategy returns the authentication strategy for the account
// behind identifier: PASSKEY when it has registered credentials,
// PASSWORD otherwise.
func (s *AuthService) ResolveStrategy(ctx context.Context, identifier string) (core.AuthenticationStrategy, error) {
	account, err := s.store.FindAccount(ctx, identifier)
	if err != nil {
		return "", err
	}
	return account.Strategy(), nil
}

// AuthenticateResult is either a token pair (password login) or the
// request options of an assertion ceremony (passkey login)
type AuthenticateResult struct {
	Token            *core.SecurityToken
	AssertionOptions json.RawMessage
}

// Authenticate verifies a password login, or hands a passkey account
// off to the assertion ceremony when no password is supplied.
func (s *AuthService) Authenticate(ctx context.Context, identifier, password string) (*AuthenticateResult, error) {
	account, err := s.store.FindAccount(ctx, identifier)
	if err != nil {
		metrics.AuthenticationAttempts.WithLabelValues("unknown", metrics.ResultError).Inc()
		return nil, err
	}

	if account.Strategy() == core.StrategyPasskey && password == "" {
		options, err := s.passkeys.beginAssertion(ctx, account)
		if err != nil {
			return nil, err
		}
		return &AuthenticateResult{AssertionOptions: options}, nil
	}

	if password == "" || account.PasswordDigest == "" {
		metrics.AuthenticationAttempts.WithLabelValues(string(core.StrategyPassword), metrics.ResultError).Inc()
		return nil, core.NullPassword()
	}
	if !s.hasher.Compare(account.PasswordDigest, password) {
		metrics.AuthenticationAttempts.WithLabelValues(string(core.StrategyPassword), metrics.ResultError).Inc()
		s.logger.Warn("password mismatch", "uuid", account.UUID)
		return nil, core.InvalidPassword()
	}

	token, err := s.issue(ctx, account, core.StrategyPassword)
	if err != nil {
		return nil, err
	}
	return &AuthenticateResult{Token: token}, nil
}

// Refresh rotates a token pair: the refresh half is verified and a
// fresh pair is minted under a new session id.
func (s *AuthService) Refresh(ctx context.Context, token core.SecurityToken) (*core.SecurityToken, error) {
	rotated, err := s.tokenizer.Rotate(token)
	metrics.Observe(metrics.TokenOperations, err, "rotate")
	if err != nil {
		return nil, err
	}
	return rotated, nil
}

// Details returns the account behind a valid authorization token. The
// password digest never leaves the service.
func (s *AuthService) Details(ctx context.Context, authorizationToken string) (*core.Account, error) {
	accountUUID, err := s.tokenizer.Verify(authorizationToken, core.AuthorizationToken)
	metrics.Observe(metrics.TokenOperations, err, "verify")
	if err != nil {
		return nil, err
	}

	account, err := s.store.FindAccount(ctx, accountUUID)
	if err != nil {
		return nil, err
	}
	account.PasswordDigest = ""
	return account, nil
}

func (s *AuthService) issue(ctx context.Context, account *core.Account, strategy core.AuthenticationStrategy) (*core.SecurityToken, error) {
	token, err := s.tokenizer.Issue(account.UUID, uuid.NewString())
	metrics.Observe(metrics.TokenOperations, err, "issue")
	if err != nil {
		return nil, core.RequestNotCompleted("failed to issue tokens").WithCause(err)
	}

	metrics.AuthenticationAttempts.WithLabelValues(string(strategy), metrics.ResultOK).Inc()
	s.publish(ctx, ports.TopicAuthenticated, map[string]string{
		"uuid":     account.UUID,
		"strategy": string(strategy),
	})
	return token, nil
}

// publish is best-effort: a broker failure is logged, never surfaced.
func (s *AuthService) publish(ctx context.Context, topic string, payload any) {
	if err := s.eventPub.Publish(ctx, topic, payload); err != nil {
		s.logger.Warn("event publish failed", "topic", topic, "error", err)
	}
}
