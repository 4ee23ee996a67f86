package ports

import (
	"github.com/warden-auth/warden/core"
)

// Tokenizer issues and verifies the authorization/refresh token pair.
type Tokenizer interface {
	// Issue mints a fresh pair bound to the account uuid and session id.
	Issue(uuid, sessionID string) (*core.SecurityToken, error)

	// Verify checks signature, expiry and claims of a token of the given
	// kind and returns the account uuid it carries.
	Verify(token string, kind core.TokenKind) (string, error)

	// Rotate validates the refresh token of the pair and mints a
	// replacement pair carrying the same uuid and session id.
	Rotate(token core.SecurityToken) (*core.SecurityToken, error)
}
