package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"github.com/warden-auth/warden/ports"
)

// AccountCreatedEvent is published after a successful signup
type AccountCreatedEvent struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Strategy string `json:"strategy"`
}

// PasskeyRegisteredEvent is published after a registration ceremony
// completes
type PasskeyRegisteredEvent struct {
	UUID         string `json:"uuid"`
	CredentialID string `json:"credential_id"`
}

// AuthenticatedEvent is published after a token pair is issued
type AuthenticatedEvent struct {
	UUID     string `json:"uuid"`
	Strategy string `json:"strategy"`
}

// WatermillPublisher implements the EventPublisher interface using
// Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher wraps an existing Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// NewRedisStreamPublisher creates a publisher backed by Redis streams
func NewRedisStreamPublisher(client *redis.Client, logger watermill.LoggerAdapter) (ports.EventPublisher, error) {
	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: client,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}
	return NewWatermillPublisher(publisher), nil
}

// Publish marshals payload and emits it on topic
func (p *WatermillPublisher) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close shuts the underlying publisher down
func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// NopPublisher discards all events, used when no broker is configured
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, topic string, payload any) error { return nil }
func (NopPublisher) Close() error                                                 { return nil }
