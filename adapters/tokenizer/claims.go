package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with the account and session
// identifiers carried by both token kinds
type SessionClaims struct {
	jwt.RegisteredClaims
	UUID    string `json:"uuid"`
	Session string `json:"session"`
}
