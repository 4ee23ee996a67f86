package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/warden-auth/warden/core"
	"github.com/warden-auth/warden/ports"
)

const AudienceAuthorization = "warden:authorization"
const AudienceRefresh = "warden:refresh"

// JWTTokenizer implements the Tokenizer interface using RS256 JWTs,
// one key pair per token kind.
type JWTTokenizer struct {
	keys     *SigningKeys
	issuer   string
	subject  string
	jwks     *keyfunc.JWKS
	now      func() time.Time
	authzTTL time.Duration
	refrTTL  time.Duration
}

// Option configures a JWTTokenizer.
type Option func(*JWTTokenizer)

// WithJWKS verifies tokens against a remote JWKS endpoint instead of
// the local public keys.
func WithJWKS(jwks *keyfunc.JWKS) Option {
	return func(j *JWTTokenizer) { j.jwks = jwks }
}

// WithSubject overrides the fixed sub claim shared by both token kinds.
func WithSubject(subject string) Option {
	return func(j *JWTTokenizer) { j.subject = subject }
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(j *JWTTokenizer) { j.now = now }
}

// WithTTL overrides the default lifetimes of the two token kinds.
func WithTTL(authorization, refresh time.Duration) Option {
	return func(j *JWTTokenizer) {
		j.authzTTL = authorization
		j.refrTTL = refresh
	}
}

// NewJWTTokenizer creates a tokenizer signing with keys and verifying
// against their public halves unless WithJWKS is given.
func NewJWTTokenizer(keys *SigningKeys, issuer string, opts ...Option) ports.Tokenizer {
	j := &JWTTokenizer{
		keys:     keys,
		issuer:   issuer,
		subject:  "warden",
		now:      time.Now,
		authzTTL: core.AuthorizationTokenTTL,
		refrTTL:  core.RefreshTokenTTL,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Issue mints an authorization/refresh pair bound to the account uuid
// and session id.
func (j *JWTTokenizer) Issue(accountUUID, sessionID string) (*core.SecurityToken, error) {
	authorization, err := j.sign(accountUUID, sessionID, core.AuthorizationToken)
	if err != nil {
		return nil, err
	}
	refresh, err := j.sign(accountUUID, sessionID, core.RefreshToken)
	if err != nil {
		return nil, err
	}
	return &core.SecurityToken{
		AuthorizationToken: authorization,
		RefreshToken:       refresh,
	}, nil
}

// Verify checks signature, lifetime and claims of a token of the given
// kind and returns the account uuid it was issued for.
func (j *JWTTokenizer) Verify(tokenStr string, kind core.TokenKind) (string, error) {
	claims, err := j.verifyClaims(tokenStr, kind)
	if err != nil {
		return "", err
	}
	return claims.UUID, nil
}

func (j *JWTTokenizer) verifyClaims(tokenStr string, kind core.TokenKind) (*SessionClaims, error) {
	if tokenStr == "" {
		return nil, core.InvalidOrNullToken()
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithAudience(audienceFor(kind)),
		jwt.WithTimeFunc(j.now),
	)

	token, err := parser.ParseWithClaims(tokenStr, &SessionClaims{}, j.keyfuncFor(kind))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.TokenExpired().WithCause(err)
		}
		return nil, core.InvalidOrNullToken().WithCause(err)
	}
	if !token.Valid {
		return nil, core.InvalidOrNullToken()
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.UUID == "" {
		return nil, core.InvalidOrNullToken()
	}
	return claims, nil
}

// Rotate validates the refresh half of the pair and mints a replacement
// pair carrying the same uuid and session id.
func (j *JWTTokenizer) Rotate(token core.SecurityToken) (*core.SecurityToken, error) {
	claims, err := j.verifyClaims(token.RefreshToken, core.RefreshToken)
	if err != nil {
		return nil, err
	}
	return j.Issue(claims.UUID, claims.Session)
}

func (j *JWTTokenizer) sign(accountUUID, sessionID string, kind core.TokenKind) (string, error) {
	pair, err := j.keys.pair(kind)
	if err != nil {
		return "", err
	}

	now := j.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   j.subject,
			Audience:  jwt.ClaimStrings{audienceFor(kind)},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttlFor(kind))),
			ID:        uuid.NewString(),
		},
		UUID:    accountUUID,
		Session: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = pair.kid

	signed, err := token.SignedString(pair.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, nil
}

// keyfuncFor resolves the verification key: the remote JWKS when
// configured, otherwise the public half of the local signing key after
// a kid check.
func (j *JWTTokenizer) keyfuncFor(kind core.TokenKind) jwt.Keyfunc {
	if j.jwks != nil {
		return j.jwks.Keyfunc
	}
	return func(token *jwt.Token) (interface{}, error) {
		pair, err := j.keys.pair(kind)
		if err != nil {
			return nil, err
		}
		if kid, _ := token.Header["kid"].(string); kid != pair.kid {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return &pair.key.PublicKey, nil
	}
}

func (j *JWTTokenizer) ttlFor(kind core.TokenKind) time.Duration {
	if kind == core.RefreshToken {
		return j.refrTTL
	}
	return j.authzTTL
}

func audienceFor(kind core.TokenKind) string {
	if kind == core.RefreshToken {
		return AudienceRefresh
	}
	return AudienceAuthorization
}
