package core

// AuthenticationStrategy is the credential strategy that applies to an
// account. It is derived from the account's credential set and never stored.
type AuthenticationStrategy string

const (
	StrategyPassword AuthenticationStrategy = "PASSWORD"
	StrategyPasskey  AuthenticationStrategy = "PASSKEY"
)

// FidoCredential is a registered public-key credential. The identity fields
// (CredentialID, PublicKeyCOSE, KeyType) are immutable once created; only the
// signature counter and backup state may be updated, store-side.
type FidoCredential struct {
	CredentialID   string `json:"credentialId"` // base64url credential id
	PublicKeyCOSE  []byte `json:"publicKeyCose"`
	KeyType        string `json:"keyType"`
	SignCount      uint32 `json:"signCount"`
	BackupEligible bool   `json:"backupEligible"`
	BackupState    bool   `json:"backupState"`
}

// Account is the identity record owned by the external store. The service
// reads accounts and appends to the credential set; it never mutates
// credentials in place.
type Account struct {
	UUID           string           `json:"uuid"`
	Username       string           `json:"username"`
	Email          string           `json:"email"`
	DisplayName    string           `json:"displayName"`
	PasswordDigest string           `json:"-"`
	Credentials    []FidoCredential `json:"fidoCredentials"`
}

// Strategy returns PASSKEY iff the account has at least one registered
// credential, PASSWORD otherwise.
func (a *Account) Strategy() AuthenticationStrategy {
	if len(a.Credentials) > 0 {
		return StrategyPasskey
	}
	return StrategyPassword
}
