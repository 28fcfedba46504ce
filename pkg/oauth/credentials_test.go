package oauth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/kvstore"
	"github.com/Ramsey-B/fern/pkg/oauth"
)

func newCredentialStore(store kvstore.Store) *oauth.CredentialStore {
	return oauth.NewCredentialStore(store, oauth.DefaultStateTTL, getTestLogger())
}

func TestCredentialStore_PutAndConsume(t *testing.T) {
	store := kvstore.NewMemoryStore()
	creds := newCredentialStore(store)
	ctx := context.Background()

	original := oauth.Credentials{
		"access_token":  "tok-123",
		"refresh_token": "ref-456",
		"expires_in":    float64(1800),
		"token_type":    "bearer",
	}

	require.NoError(t, creds.Put(ctx, "hubspot", "u1", "o1", original))

	got, err := creds.GetAndConsume(ctx, "hubspot", "u1", "o1")
	require.NoError(t, err)
	assert.Equal(t, original, got)

	token, ok := got.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "tok-123", token)
}

func TestCredentialStore_SecondReadFails(t *testing.T) {
	store := kvstore.NewMemoryStore()
	creds := newCredentialStore(store)
	ctx := context.Background()

	require.NoError(t, creds.Put(ctx, "notion", "u1", "o1", oauth.Credentials{"access_token": "tok"}))

	_, err := creds.GetAndConsume(ctx, "notion", "u1", "o1")
	require.NoError(t, err)

	_, err = creds.GetAndConsume(ctx, "notion", "u1", "o1")
	assert.ErrorIs(t, err, oauth.ErrCredentialsNotFound)
}

func TestCredentialStore_NeverStored(t *testing.T) {
	creds := newCredentialStore(kvstore.NewMemoryStore())

	_, err := creds.GetAndConsume(context.Background(), "hubspot", "u1", "o1")
	assert.ErrorIs(t, err, oauth.ErrCredentialsNotFound)
}

func TestCredentialStore_ScopedByIdentity(t *testing.T) {
	store := kvstore.NewMemoryStore()
	creds := newCredentialStore(store)
	ctx := context.Background()

	require.NoError(t, creds.Put(ctx, "hubspot", "u1", "o1", oauth.Credentials{"access_token": "a"}))
	require.NoError(t, creds.Put(ctx, "hubspot", "u2", "o1", oauth.Credentials{"access_token": "b"}))
	require.NoError(t, creds.Put(ctx, "notion", "u1", "o1", oauth.Credentials{"access_token": "c"}))

	got, err := creds.GetAndConsume(ctx, "hubspot", "u2", "o1")
	require.NoError(t, err)
	token, _ := got.AccessToken()
	assert.Equal(t, "b", token)

	// Consuming one identity's record leaves the others intact
	got, err = creds.GetAndConsume(ctx, "hubspot", "u1", "o1")
	require.NoError(t, err)
	token, _ = got.AccessToken()
	assert.Equal(t, "a", token)

	got, err = creds.GetAndConsume(ctx, "notion", "u1", "o1")
	require.NoError(t, err)
	token, _ = got.AccessToken()
	assert.Equal(t, "c", token)
}

func TestCredentialStore_InvalidStoredBlob(t *testing.T) {
	store := kvstore.NewMemoryStore()
	creds := newCredentialStore(store)
	ctx := context.Background()

	cases := map[string]string{
		"not json":      "garbage",
		"empty object":  "{}",
		"wrong type":    `["access_token"]`,
		"empty payload": "",
	}

	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			key := oauth.CredentialsKey("airtable", "o1", "u1")
			require.NoError(t, store.Put(ctx, key, blob, oauth.DefaultStateTTL))

			_, err := creds.GetAndConsume(ctx, "airtable", "u1", "o1")
			assert.ErrorIs(t, err, oauth.ErrInvalidCredentialFormat)
		})
	}
}

func TestCredentialStore_InvalidBlobNotConsumed(t *testing.T) {
	store := kvstore.NewMemoryStore()
	creds := newCredentialStore(store)
	ctx := context.Background()

	key := oauth.CredentialsKey("hubspot", "o1", "u1")
	require.NoError(t, store.Put(ctx, key, "garbage", oauth.DefaultStateTTL))

	// Deletion only fires on a successful parse, so the bad record stays
	// until the TTL expires it.
	_, err := creds.GetAndConsume(ctx, "hubspot", "u1", "o1")
	assert.ErrorIs(t, err, oauth.ErrInvalidCredentialFormat)

	_, err = creds.GetAndConsume(ctx, "hubspot", "u1", "o1")
	assert.ErrorIs(t, err, oauth.ErrInvalidCredentialFormat)
}
