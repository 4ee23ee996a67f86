package ports

import "context"

// Topics published by the service.
const (
	TopicAccountCreated    = "warden.account_created"
	TopicPasskeyRegistered = "warden.passkey_registered"
	TopicAuthenticated     = "warden.authenticated"
)

// EventPublisher emits domain events to the message broker. Publishing
// is best-effort: callers log failures and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload any) error
	Close() error
}
