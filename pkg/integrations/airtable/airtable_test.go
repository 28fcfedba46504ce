package airtable_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/integrations"
	"github.com/Ramsey-B/fern/pkg/integrations/airtable"
	"github.com/Ramsey-B/fern/pkg/oauth"
)

const testVerifier = "test-code-verifier-0123456789abcdef0123456789abcdef"

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func newAdapter(t *testing.T, apiBase string) *airtable.Adapter {
	t.Helper()
	logger := getTestLogger()
	client := httpclient.NewClient(httpclient.DefaultConfig(), logger)
	cfg := integrations.OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:8000/integrations/airtable/oauth2callback",
		Scopes:       "data.records:read schema.bases:read",
	}
	return airtable.New(cfg, testVerifier, client, logger, airtable.WithAPIBase(apiBase))
}

func TestAuthorizeURL_CarriesPKCEChallenge(t *testing.T) {
	adapter := newAdapter(t, "http://unused")

	parsed, err := url.Parse(adapter.AuthorizeURL("encoded-state"))
	require.NoError(t, err)

	query := parsed.Query()
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.Equal(t, "encoded-state", query.Get("state"))

	sum := sha256.Sum256([]byte(testVerifier))
	expected := base64.RawURLEncoding.EncodeToString(sum[:])
	assert.Equal(t, expected, query.Get("code_challenge"))
}

func TestTokenParams_SuppliesVerifier(t *testing.T) {
	adapter := newAdapter(t, "http://unused")

	params := adapter.TokenParams()
	require.NotNil(t, params)
	assert.Equal(t, testVerifier, params["code_verifier"])
}

func TestItems_BasesAndTables(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/v0/meta/bases":
			fmt.Fprint(w, `{"bases":[
				{"id":"appAAA","name":"CRM","permissionLevel":"create"},
				{"id":"appBBB","name":"Inventory","permissionLevel":"read"}
			]}`)
		case "/v0/meta/bases/appAAA/tables":
			fmt.Fprint(w, `{"tables":[{"id":"tbl1","name":"Contacts","primaryFieldId":"fldName"},{"id":"tbl2","name":"Deals"}]}`)
		case "/v0/meta/bases/appBBB/tables":
			fmt.Fprint(w, `{"tables":[{"id":"tbl3","name":"Stock"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	items, failed, err := adapter.Items(context.Background(), oauth.Credentials{"access_token": "tok-123"})
	require.NoError(t, err)
	assert.Equal(t, 0, failed)
	require.Len(t, items, 5)

	assert.Equal(t, "base", items[0].Type)
	assert.Equal(t, "CRM", items[0].Name)
	assert.True(t, items[0].Directory)
	require.NotNil(t, items[0].URL)
	assert.Equal(t, "https://airtable.com/appAAA", *items[0].URL)
	assert.Equal(t, map[string]any{"permission_level": "create"}, items[0].Extra)

	byID := make(map[string]integrations.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	table := byID["tbl1"]
	assert.Equal(t, "table", table.Type)
	assert.Equal(t, "Contacts", table.Name)
	require.NotNil(t, table.ParentID)
	assert.Equal(t, "appAAA", *table.ParentID)
	assert.False(t, table.Directory)
	assert.Equal(t, map[string]any{"primary_field_id": "fldName"}, table.Extra)
	assert.Nil(t, byID["tbl2"].Extra)

	require.NotNil(t, byID["tbl3"].ParentID)
	assert.Equal(t, "appBBB", *byID["tbl3"].ParentID)
}

func TestItems_TableListingFailureKeepsBase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v0/meta/bases":
			fmt.Fprint(w, `{"bases":[{"id":"appAAA","name":"CRM"}]}`)
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	items, failed, err := adapter.Items(context.Background(), oauth.Credentials{"access_token": "tok"})
	require.NoError(t, err)
	assert.Equal(t, 0, failed)
	require.Len(t, items, 1)
	assert.Equal(t, "base", items[0].Type)
}

func TestItems_BaseListingFailureIsWholesale(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	_, _, err := adapter.Items(context.Background(), oauth.Credentials{"access_token": "expired"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestItems_MissingAccessToken(t *testing.T) {
	adapter := newAdapter(t, "http://unused")

	_, _, err := adapter.Items(context.Background(), oauth.Credentials{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_token")
}
