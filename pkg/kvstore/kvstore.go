// Package kvstore defines the ephemeral key-value contract shared by all
// process instances. State tokens and credentials live here with a bounded
// TTL; the store's expiry is the only cleanup mechanism.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent, whether it expired or was
// never written. Callers cannot distinguish the two cases.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the expiring key-value contract consumed by the OAuth core.
type Store interface {
	// Put writes value under key with the given TTL, overwriting any prior entry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value for key, or ErrNotFound if absent.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
