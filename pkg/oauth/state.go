package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kvstore"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// DefaultStateTTL bounds the lifetime of state tokens and credentials
	DefaultStateTTL = 600 * time.Second

	// nonceBytes is the entropy of the anti-forgery nonce (256 bits)
	nonceBytes = 32
)

// StateData is the record round-tripped through the provider as the opaque
// `state` query parameter. The nonce field keeps the original wire name.
type StateData struct {
	Nonce  string `json:"state"`
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
}

// StateManager creates and validates anti-forgery state tokens for the
// OAuth handshake. One state is outstanding per (integration, org, user)
// triple; a new authorize call overwrites any prior one.
type StateManager struct {
	store  kvstore.Store
	ttl    time.Duration
	logger ectologger.Logger
}

// NewStateManager creates a state manager over the given store
func NewStateManager(store kvstore.Store, ttl time.Duration, logger ectologger.Logger) *StateManager {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateManager{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// Create generates a state token bound to the triple, stores it with the
// configured TTL and returns the serialized record. The full record, not
// just the nonce, is what travels through the provider redirect.
func (m *StateManager) Create(ctx context.Context, integration, userID, orgID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "StateManager.Create")
	defer span.End()

	nonce, err := generateNonce()
	if err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	record := StateData{
		Nonce:  nonce,
		UserID: userID,
		OrgID:  orgID,
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode state record: %w", err)
	}

	if err := m.store.Put(ctx, StateKey(integration, orgID, userID), string(encoded), m.ttl); err != nil {
		metrics.RecordOAuthFlow(integration, "state.create", "storage_error")
		return "", &StorageError{Op: "state create", Err: err}
	}

	metrics.RecordOAuthFlow(integration, "state.create", "ok")
	m.logger.WithContext(ctx).WithFields(map[string]any{
		"integration": integration,
		"user_id":     userID,
		"org_id":      orgID,
	}).Debugf("Issued state token with TTL %s", m.ttl)

	return string(encoded), nil
}

// Validate checks a callback's state against the stored record. The user and
// org ids are recovered from the supplied value itself; the store lookup is
// an independent corroboration of the nonce. The stored record is not
// deleted, so validate stays idempotent within the TTL window.
func (m *StateManager) Validate(ctx context.Context, integration, encodedState string) (StateData, error) {
	ctx, span := tracing.StartSpan(ctx, "StateManager.Validate")
	defer span.End()

	var supplied StateData
	if err := json.Unmarshal([]byte(encodedState), &supplied); err != nil {
		metrics.RecordOAuthFlow(integration, "state.validate", "malformed")
		return StateData{}, ErrMalformedState
	}
	if supplied.Nonce == "" || supplied.UserID == "" || supplied.OrgID == "" {
		metrics.RecordOAuthFlow(integration, "state.validate", "malformed")
		return StateData{}, ErrMalformedState
	}

	stored, err := m.store.Get(ctx, StateKey(integration, supplied.OrgID, supplied.UserID))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			metrics.RecordOAuthFlow(integration, "state.validate", "not_found")
			return StateData{}, ErrStateNotFound
		}
		metrics.RecordOAuthFlow(integration, "state.validate", "storage_error")
		return StateData{}, &StorageError{Op: "state validate", Err: err}
	}

	var saved StateData
	if err := json.Unmarshal([]byte(stored), &saved); err != nil || saved.Nonce != supplied.Nonce {
		metrics.RecordOAuthFlow(integration, "state.validate", "mismatch")
		m.logger.WithContext(ctx).WithFields(map[string]any{
			"integration": integration,
			"user_id":     supplied.UserID,
			"org_id":      supplied.OrgID,
		}).Warn("State token nonce does not match stored record")
		return StateData{}, ErrStateMismatch
	}

	metrics.RecordOAuthFlow(integration, "state.validate", "ok")
	return supplied, nil
}

// StateKey builds the store key for a triple's state token
func StateKey(integration, orgID, userID string) string {
	return fmt.Sprintf("%s_state:%s:%s", integration, orgID, userID)
}

func generateNonce() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
