package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kvstore"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Credentials is the provider's token-exchange response, stored unmodified.
// The shape varies per provider; at minimum it carries an access token.
type Credentials map[string]any

// AccessToken returns the access_token field, if present
func (c Credentials) AccessToken() (string, bool) {
	token, ok := c["access_token"].(string)
	return token, ok && token != ""
}

// CredentialStore persists provider credentials transiently. Reads are
// destructive: the first successful retrieval deletes the stored copy, so at
// most one valid credential set exists per triple at any time.
type CredentialStore struct {
	store  kvstore.Store
	ttl    time.Duration
	logger ectologger.Logger
}

// NewCredentialStore creates a credential store over the given store
func NewCredentialStore(store kvstore.Store, ttl time.Duration, logger ectologger.Logger) *CredentialStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &CredentialStore{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// Put stores credentials for the triple, overwriting any prior entry
func (s *CredentialStore) Put(ctx context.Context, integration, userID, orgID string, creds Credentials) error {
	ctx, span := tracing.StartSpan(ctx, "CredentialStore.Put")
	defer span.End()

	encoded, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	if err := s.store.Put(ctx, CredentialsKey(integration, orgID, userID), string(encoded), s.ttl); err != nil {
		return &StorageError{Op: "credentials put", Err: err}
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"integration": integration,
		"user_id":     userID,
		"org_id":      orgID,
	}).Debugf("Stored credentials with TTL %s", s.ttl)

	return nil
}

// GetAndConsume retrieves the credentials for the triple and deletes the
// stored copy. Deletion happens unconditionally once the blob parses; a
// second call fails with ErrCredentialsNotFound.
func (s *CredentialStore) GetAndConsume(ctx context.Context, integration, userID, orgID string) (Credentials, error) {
	ctx, span := tracing.StartSpan(ctx, "CredentialStore.GetAndConsume")
	defer span.End()

	key := CredentialsKey(integration, orgID, userID)

	stored, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			metrics.RecordCredentialRead(integration, "miss")
			return nil, ErrCredentialsNotFound
		}
		metrics.RecordCredentialRead(integration, "storage_error")
		return nil, &StorageError{Op: "credentials get", Err: err}
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(stored), &creds); err != nil || len(creds) == 0 {
		metrics.RecordCredentialRead(integration, "invalid")
		return nil, ErrInvalidCredentialFormat
	}

	if err := s.store.Delete(ctx, key); err != nil {
		// The single-use guarantee depends on this delete; without it the
		// credentials would stay readable until the TTL fires.
		metrics.RecordCredentialRead(integration, "storage_error")
		return nil, &StorageError{Op: "credentials consume", Err: err}
	}

	metrics.RecordCredentialRead(integration, "consumed")
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"integration": integration,
		"user_id":     userID,
		"org_id":      orgID,
	}).Debugf("Consumed stored credentials")

	return creds, nil
}

// CredentialsKey builds the store key for a triple's credentials
func CredentialsKey(integration, orgID, userID string) string {
	return fmt.Sprintf("%s_credentials:%s:%s", integration, orgID, userID)
}
