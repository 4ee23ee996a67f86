package ports

import (
	"encoding/json"

	"github.com/warden-auth/warden/core"
)

// RegistrationChallenge is the begin-half output of a registration
// ceremony: the publicKey options sent to the client and the opaque
// session state to stash until the finish half.
type RegistrationChallenge struct {
	Options json.RawMessage
	Session []byte
}

// AssertionChallenge is the begin-half output of an assertion ceremony.
type AssertionChallenge struct {
	Options json.RawMessage
	Session []byte
}

// AssertionResult reports the outcome of a finished assertion.
type AssertionResult struct {
	Success      bool
	Reason       string
	CredentialID string
	SignCount    uint32
	BackupState  bool
}

// CeremonyVerifier runs the cryptographic halves of WebAuthn ceremonies.
type CeremonyVerifier interface {
	BeginRegistration(account *core.Account) (*RegistrationChallenge, error)

	// FinishRegistration validates the attestation response against the
	// stashed session and returns the credential to persist.
	FinishRegistration(account *core.Account, session []byte, response []byte) (*core.FidoCredential, error)

	BeginAssertion(account *core.Account) (*AssertionChallenge, error)

	// FinishAssertion validates the assertion response. A failed
	// verification is reported through the result, not the error.
	FinishAssertion(account *core.Account, session []byte, response []byte) (*AssertionResult, error)
}
