package ports

import (
	"context"

	"github.com/warden-auth/warden/core"
)

// AccountStore persists accounts and their passkey credentials.
type AccountStore interface {
	// FindAccount resolves identifier as email, username or uuid, in
	// that order. Returns core.AccountNotFound when nothing matches.
	FindAccount(ctx context.Context, identifier string) (*core.Account, error)

	// CreateAccount inserts a new account. Returns core.AccountExists
	// when the username or email is already taken.
	CreateAccount(ctx context.Context, account *core.Account) error

	// AppendCredential attaches a verified passkey credential to the
	// account identified by uuid.
	AppendCredential(ctx context.Context, uuid string, credential core.FidoCredential) error

	// UpdateCredentialSignCount records the signature counter and backup
	// state observed during a successful assertion.
	UpdateCredentialSignCount(ctx context.Context, uuid string, credentialID string, signCount uint32, backupState bool) error
}
