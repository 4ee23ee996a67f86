package core

// CeremonyKind distinguishes the two WebAuthn round-trips.
type CeremonyKind string

const (
	CeremonyRegistration CeremonyKind = "registration"
	CeremonyAssertion    CeremonyKind = "assertion"
)

// ChallengeKey composes the challenge-cache key for an in-flight ceremony.
// At most one live challenge exists per identifier per ceremony kind; a new
// Put under the same key replaces any prior unconsumed challenge.
func ChallengeKey(kind CeremonyKind, identifier string) string {
	return string(kind) + ":" + identifier
}
