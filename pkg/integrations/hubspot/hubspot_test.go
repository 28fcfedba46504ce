package hubspot_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/integrations"
	"github.com/Ramsey-B/fern/pkg/integrations/hubspot"
	"github.com/Ramsey-B/fern/pkg/oauth"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func testConfig() integrations.OAuthConfig {
	return integrations.OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:8000/integrations/hubspot/oauth2callback",
		Scopes:       "crm.objects.contacts.read crm.objects.companies.read crm.objects.deals.read",
	}
}

func newAdapter(t *testing.T, apiBase string) *hubspot.Adapter {
	t.Helper()
	logger := getTestLogger()
	client := httpclient.NewClient(httpclient.DefaultConfig(), logger)
	return hubspot.New(testConfig(), client, logger, hubspot.WithAPIBase(apiBase))
}

func TestAuthorizeURL(t *testing.T) {
	adapter := newAdapter(t, "http://unused")

	raw := adapter.AuthorizeURL(`{"state":"nonce","user_id":"u1","org_id":"o1"}`)
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "app.hubspot.com", parsed.Host)
	assert.Equal(t, "/oauth/authorize", parsed.Path)

	query := parsed.Query()
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "http://localhost:8000/integrations/hubspot/oauth2callback", query.Get("redirect_uri"))
	assert.Contains(t, query.Get("scope"), "crm.objects.contacts.read")
	assert.Equal(t, `{"state":"nonce","user_id":"u1","org_id":"o1"}`, query.Get("state"))
}

func TestTokenEndpointDefaults(t *testing.T) {
	adapter := newAdapter(t, "http://unused")

	assert.Equal(t, "hubspot", adapter.Name())
	assert.Equal(t, "https://api.hubspot.com/oauth/v1/token", adapter.TokenURL())
	assert.Nil(t, adapter.TokenParams())
}

func TestItems_AllCollections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/objects/contacts"):
			fmt.Fprint(w, `{"results":[
				{"id":"1","properties":{"firstname":"Ada","lastname":"Lovelace","email":"ada@example.com","createdate":"2024-01-02T03:04:05Z","lastmodifieddate":"2024-02-02T03:04:05Z","hubspot_owner_id":"777"}},
				{"id":"2","properties":{"firstname":"","lastname":""}}
			]}`)
		case strings.HasSuffix(r.URL.Path, "/objects/companies"):
			fmt.Fprint(w, `{"results":[{"id":"10","properties":{"name":"Initech","domain":"initech.example.com"}}]}`)
		case strings.HasSuffix(r.URL.Path, "/objects/deals"):
			fmt.Fprint(w, `{"results":[{"id":"20","properties":{"dealname":"Annual contract","amount":"1200","dealstage":"closedwon"}}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	items, failed, err := adapter.Items(context.Background(), oauth.Credentials{"access_token": "tok-123"})
	require.NoError(t, err)
	assert.Equal(t, 0, failed)
	require.Len(t, items, 4)

	byID := make(map[string]integrations.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	contact := byID["1"]
	assert.Equal(t, "contact", contact.Type)
	assert.Equal(t, "Ada Lovelace", contact.Name)
	require.NotNil(t, contact.CreationTime)
	require.NotNil(t, contact.URL)
	assert.Equal(t, "https://app.hubspot.com/contacts/777/contact/1", *contact.URL)
	assert.Equal(t, map[string]any{"email": "ada@example.com"}, contact.Extra)

	assert.Equal(t, "Unnamed Contact", byID["2"].Name)
	assert.Nil(t, byID["2"].URL)
	assert.Nil(t, byID["2"].Extra)

	assert.Equal(t, "company", byID["10"].Type)
	assert.Equal(t, "Initech", byID["10"].Name)
	assert.Equal(t, map[string]any{"domain": "initech.example.com"}, byID["10"].Extra)

	assert.Equal(t, "deal", byID["20"].Type)
	assert.Equal(t, "Annual contract", byID["20"].Name)
	assert.Equal(t, map[string]any{"amount": "1200", "dealstage": "closedwon"}, byID["20"].Extra)
}

func TestItems_CountsMappingFailures(t *testing.T) {
	// 10 contacts, 2 of them without an id
	var rows []string
	for i := 1; i <= 8; i++ {
		rows = append(rows, fmt.Sprintf(`{"id":"%d","properties":{"firstname":"User","lastname":"%d"}}`, i, i))
	}
	rows = append(rows, `{"properties":{"firstname":"No","lastname":"Id"}}`)
	rows = append(rows, `{"properties":{"firstname":"Also","lastname":"Missing"}}`)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/objects/contacts") {
			fmt.Fprintf(w, `{"results":[%s]}`, strings.Join(rows, ","))
			return
		}
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	items, failed, err := adapter.Items(context.Background(), oauth.Credentials{"access_token": "tok"})
	require.NoError(t, err)
	assert.Len(t, items, 8)
	assert.Equal(t, 2, failed)
}

func TestItems_FailedCollectionSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/objects/companies") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/objects/contacts"):
			fmt.Fprint(w, `{"results":[{"id":"1","properties":{"firstname":"Ada","lastname":"Lovelace"}}]}`)
		case strings.HasSuffix(r.URL.Path, "/objects/deals"):
			fmt.Fprint(w, `{"results":[{"id":"20","properties":{"dealname":"Renewal"}}]}`)
		}
	}))
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	items, failed, err := adapter.Items(context.Background(), oauth.Credentials{"access_token": "tok"})
	require.NoError(t, err)
	assert.Equal(t, 0, failed)
	require.Len(t, items, 2)
	assert.Equal(t, "contact", items[0].Type)
	assert.Equal(t, "deal", items[1].Type)
}

func TestItems_MissingAccessToken(t *testing.T) {
	adapter := newAdapter(t, "http://unused")

	_, _, err := adapter.Items(context.Background(), oauth.Credentials{"refresh_token": "only"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_token")
}
