package verifier

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/warden-auth/warden/core"
	"github.com/warden-auth/warden/ports"
)

// Config controls the WebAuthn relying party settings.
type Config struct {
	RPID          string
	RPDisplayName string
	RPOrigins     []string
}

// WebAuthnVerifier implements the CeremonyVerifier interface on top of
// go-webauthn.
type WebAuthnVerifier struct {
	wa *webauthn.WebAuthn
}

const ceremonyTimeout = 30 * time.Second

// NewWebAuthnVerifier creates a verifier for the given relying party.
// User verification is required for both ceremonies.
func NewWebAuthnVerifier(cfg Config) (*WebAuthnVerifier, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.RPOrigins,
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			ResidentKey:      protocol.ResidentKeyRequirementRequired,
			UserVerification: protocol.VerificationRequired,
		},
		Timeouts: webauthn.TimeoutsConfig{
			Login:        webauthn.TimeoutConfig{Enforce: true, Timeout: ceremonyTimeout, TimeoutUVD: ceremonyTimeout},
			Registration: webauthn.TimeoutConfig{Enforce: true, Timeout: ceremonyTimeout, TimeoutUVD: ceremonyTimeout},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure webauthn: %w", err)
	}
	return &WebAuthnVerifier{wa: wa}, nil
}

// BeginRegistration builds the publicKey creation options for account
// and the session state to stash until the finish half.
func (v *WebAuthnVerifier) BeginRegistration(account *core.Account) (*ports.RegistrationChallenge, error) {
	user := &passkeyUser{account: account}

	opts := []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	}
	if creds := user.WebAuthnCredentials(); len(creds) > 0 {
		opts = append(opts, webauthn.WithExclusions(webauthn.Credentials(creds).CredentialDescriptors()))
	}

	creation, session, err := v.wa.BeginRegistration(user, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to begin registration: %w", err)
	}

	options, err := json.Marshal(creation)
	if err != nil {
		return nil, fmt.Errorf("failed to encode creation options: %w", err)
	}
	sessionData, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	return &ports.RegistrationChallenge{Options: options, Session: sessionData}, nil
}

// FinishRegistration validates the attestation response against the
// stashed session and returns the credential to persist.
func (v *WebAuthnVerifier) FinishRegistration(account *core.Account, session []byte, response []byte) (*core.FidoCredential, error) {
	var sessionData webauthn.SessionData
	if err := json.Unmarshal(session, &sessionData); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	parsed, err := protocol.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse attestation response: %w", err)
	}

	credential, err := v.wa.CreateCredential(&passkeyUser{account: account}, sessionData, parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to verify attestation: %w", err)
	}

	return &core.FidoCredential{
		CredentialID:   encodeCredentialID(credential.ID),
		PublicKeyCOSE:  credential.PublicKey,
		KeyType:        "public-key",
		SignCount:      credential.Authenticator.SignCount,
		BackupEligible: credential.Flags.BackupEligible,
		BackupState:    credential.Flags.BackupState,
	}, nil
}

// BeginAssertion builds the publicKey request options for account.
// Accounts without stored credentials get a discoverable (resident key)
// login so a platform authenticator can still offer its passkeys.
func (v *WebAuthnVerifier) BeginAssertion(account *core.Account) (*ports.AssertionChallenge, error) {
	var (
		assertion *protocol.CredentialAssertion
		session   *webauthn.SessionData
		err       error
	)
	if len(account.Credentials) == 0 {
		assertion, session, err = v.wa.BeginDiscoverableLogin(webauthn.WithUserVerification(protocol.VerificationRequired))
	} else {
		assertion, session, err = v.wa.BeginLogin(&passkeyUser{account: account}, webauthn.WithUserVerification(protocol.VerificationRequired))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to begin assertion: %w", err)
	}

	options, err := json.Marshal(assertion)
	if err != nil {
		return nil, fmt.Errorf("failed to encode assertion options: %w", err)
	}
	sessionData, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	return &ports.AssertionChallenge{Options: options, Session: sessionData}, nil
}

// FinishAssertion validates the assertion response. Signature or
// counter failures are reported through the result, not the error.
func (v *WebAuthnVerifier) FinishAssertion(account *core.Account, session []byte, response []byte) (*ports.AssertionResult, error) {
	var sessionData webauthn.SessionData
	if err := json.Unmarshal(session, &sessionData); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	parsed, err := protocol.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse assertion response: %w", err)
	}

	var credential *webauthn.Credential
	if len(sessionData.UserID) == 0 {
		handler := func(rawID, userHandle []byte) (webauthn.User, error) {
			return &passkeyUser{account: account}, nil
		}
		_, credential, err = v.wa.ValidatePasskeyLogin(handler, sessionData, parsed)
	} else {
		credential, err = v.wa.ValidateLogin(&passkeyUser{account: account}, sessionData, parsed)
	}
	if err != nil {
		return &ports.AssertionResult{Success: false, Reason: err.Error()}, nil
	}
	if credential.Authenticator.CloneWarning {
		return &ports.AssertionResult{Success: false, Reason: "signature counter regression"}, nil
	}

	return &ports.AssertionResult{
		Success:      true,
		CredentialID: encodeCredentialID(credential.ID),
		SignCount:    credential.Authenticator.SignCount,
		BackupState:  credential.Flags.BackupState,
	}, nil
}

// passkeyUser adapts a core.Account to the webauthn.User interface.
type passkeyUser struct {
	account *core.Account
}

func (u *passkeyUser) WebAuthnID() []byte {
	return []byte(u.account.UUID)
}

func (u *passkeyUser) WebAuthnName() string {
	return u.account.Username
}

func (u *passkeyUser) WebAuthnDisplayName() string {
	if u.account.DisplayName != "" {
		return u.account.DisplayName
	}
	return u.account.Username
}

func (u *passkeyUser) WebAuthnCredentials() []webauthn.Credential {
	credentials := make([]webauthn.Credential, 0, len(u.account.Credentials))
	for _, stored := range u.account.Credentials {
		id, err := base64.RawURLEncoding.DecodeString(stored.CredentialID)
		if err != nil {
			continue
		}
		credentials = append(credentials, webauthn.Credential{
			ID:        id,
			PublicKey: stored.PublicKeyCOSE,
			Flags: webauthn.CredentialFlags{
				BackupEligible: stored.BackupEligible,
				BackupState:    stored.BackupState,
			},
			Authenticator: webauthn.Authenticator{
				SignCount: stored.SignCount,
			},
		})
	}
	return credentials
}

func encodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}
