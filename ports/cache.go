package ports

import (
	"context"
	"time"
)

// ChallengeCache holds in-flight ceremony state between the begin and
// finish halves of a WebAuthn ceremony.
type ChallengeCache interface {
	// Put stores value under key with the given TTL, replacing any
	// previous entry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// TakeIfPresent returns the value stored under key and renews its
	// TTL, or (nil, nil) when the key is absent or expired.
	TakeIfPresent(ctx context.Context, key string, ttl time.Duration) ([]byte, error)

	// Evict removes key. Evicting an absent key is not an error.
	Evict(ctx context.Context, key string) error
}
