package oauth_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/oauth"
)

type staticResolver map[string]oauth.Endpoint

func (r staticResolver) TokenEndpoint(integration string) (oauth.Endpoint, bool) {
	endpoint, ok := r[integration]
	return endpoint, ok
}

func newExchangeClient(resolver oauth.EndpointResolver) *oauth.ExchangeClient {
	logger := getTestLogger()
	return oauth.NewExchangeClient(httpclient.NewClient(httpclient.Config{}, logger), resolver, logger)
}

func TestExchangeClient_Success(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]any
	)
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-123","refresh_token":"ref-456","expires_in":1800}`))
	}))
	defer provider.Close()

	client := newExchangeClient(staticResolver{
		"hubspot": {
			TokenURL:     provider.URL,
			RedirectURI:  "https://fern.example.com/integrations/hubspot/oauth2callback",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
		},
	})

	creds, err := client.Exchange(context.Background(), "hubspot", "auth-code", nil)
	require.NoError(t, err)

	token, ok := creds.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "tok-123", token)
	assert.Equal(t, "ref-456", creds["refresh_token"])

	// client-id:client-secret in standard base64
	assert.Equal(t, "Basic Y2xpZW50LWlkOmNsaWVudC1zZWNyZXQ=", gotAuth)
	assert.Equal(t, "authorization_code", gotBody["grant_type"])
	assert.Equal(t, "auth-code", gotBody["code"])
	assert.Equal(t, "https://fern.example.com/integrations/hubspot/oauth2callback", gotBody["redirect_uri"])
}

func TestExchangeClient_ExtraParams(t *testing.T) {
	var gotBody map[string]any
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok"}`))
	}))
	defer provider.Close()

	client := newExchangeClient(staticResolver{
		"airtable": {TokenURL: provider.URL, RedirectURI: "https://fern.example.com/cb", ClientID: "id", ClientSecret: "secret"},
	})

	_, err := client.Exchange(context.Background(), "airtable", "auth-code", map[string]string{
		"code_verifier": "verifier-value",
	})
	require.NoError(t, err)

	assert.Equal(t, "verifier-value", gotBody["code_verifier"])
	assert.Equal(t, "authorization_code", gotBody["grant_type"])
}

func TestExchangeClient_ProviderRejection(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer provider.Close()

	client := newExchangeClient(staticResolver{
		"notion": {TokenURL: provider.URL, ClientID: "id", ClientSecret: "wrong"},
	})

	_, err := client.Exchange(context.Background(), "notion", "auth-code", nil)
	require.Error(t, err)

	var exchangeErr *oauth.TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, "notion", exchangeErr.Integration)
	assert.Equal(t, http.StatusUnauthorized, exchangeErr.StatusCode)
	assert.Contains(t, exchangeErr.Body, "invalid_client")
}

func TestExchangeClient_UnsupportedIntegration(t *testing.T) {
	client := newExchangeClient(staticResolver{})

	_, err := client.Exchange(context.Background(), "linear", "auth-code", nil)
	assert.ErrorIs(t, err, oauth.ErrUnsupportedIntegration)
}

func TestExchangeClient_MalformedTokenResponse(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("not-json"))
	}))
	defer provider.Close()

	client := newExchangeClient(staticResolver{
		"hubspot": {TokenURL: provider.URL, ClientID: "id", ClientSecret: "secret"},
	})

	_, err := client.Exchange(context.Background(), "hubspot", "auth-code", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode token response")
}
