package core

import "time"

// TokenKind selects the key pair and TTL used to sign or verify a token.
type TokenKind string

const (
	AuthorizationToken TokenKind = "authorization"
	RefreshToken       TokenKind = "refresh"

	// AuthorizationTokenTTL is the lifetime of the short-lived pair member.
	AuthorizationTokenTTL = time.Hour

	// RefreshTokenTTL is one Gregorian year (365.2425 days).
	RefreshTokenTTL = 31556952 * time.Second
)

// SecurityToken is the signed session-token pair. Both members always carry
// the same uuid and session id claims.
type SecurityToken struct {
	AuthorizationToken string `json:"authorizationToken"`
	RefreshToken       string `json:"refreshToken"`
}
