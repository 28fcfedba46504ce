// Package airtable fetches bases and their tables through the Airtable meta
// API. Airtable requires PKCE on the authorization-code flow, so the adapter
// carries a configured verifier and derives the S256 challenge from it.
package airtable

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/expressions"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/integrations"
	"github.com/Ramsey-B/fern/pkg/oauth"
)

const (
	// Name is the platform identifier
	Name = "airtable"

	defaultAuthorizeURL = "https://airtable.com/oauth2/v1/authorize"
	defaultTokenURL     = "https://airtable.com/oauth2/v1/token"
	defaultAPIBase      = "https://api.airtable.com"
)

// Adapter implements integrations.Adapter for Airtable
type Adapter struct {
	cfg          integrations.OAuthConfig
	codeVerifier string
	http         *httpclient.Client
	logger       ectologger.Logger
	evaluator    *expressions.Evaluator

	authorizeURL string
	tokenURL     string
	apiBase      string
}

// Option overrides adapter defaults
type Option func(*Adapter)

// WithAPIBase points the adapter at a different API origin, used in tests
func WithAPIBase(base string) Option {
	return func(a *Adapter) { a.apiBase = base }
}

// WithEndpoints overrides the OAuth authorize and token URLs
func WithEndpoints(authorizeURL, tokenURL string) Option {
	return func(a *Adapter) {
		a.authorizeURL = authorizeURL
		a.tokenURL = tokenURL
	}
}

// New creates an Airtable adapter. The code verifier is static deployment
// configuration, shared by the authorize challenge and the token exchange.
func New(cfg integrations.OAuthConfig, codeVerifier string, http *httpclient.Client, logger ectologger.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		cfg:          cfg,
		codeVerifier: codeVerifier,
		http:         http,
		logger:       logger.WithField("integration", Name),
		evaluator:    expressions.NewEvaluator(),
		authorizeURL: defaultAuthorizeURL,
		tokenURL:     defaultTokenURL,
		apiBase:      defaultAPIBase,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the platform identifier
func (a *Adapter) Name() string {
	return Name
}

// OAuth returns the adapter's client configuration
func (a *Adapter) OAuth() integrations.OAuthConfig {
	return a.cfg
}

// TokenURL returns the Airtable token exchange endpoint
func (a *Adapter) TokenURL() string {
	return a.tokenURL
}

// TokenParams supplies the PKCE verifier matching the authorize challenge
func (a *Adapter) TokenParams() map[string]string {
	return map[string]string{"code_verifier": a.codeVerifier}
}

// AuthorizeURL builds the Airtable consent URL with the S256 code challenge
func (a *Adapter) AuthorizeURL(state string) string {
	query := url.Values{}
	query.Set("client_id", a.cfg.ClientID)
	query.Set("redirect_uri", a.cfg.RedirectURI)
	query.Set("response_type", "code")
	query.Set("scope", a.cfg.Scopes)
	query.Set("state", state)
	query.Set("code_challenge", codeChallenge(a.codeVerifier))
	query.Set("code_challenge_method", "S256")
	return a.authorizeURL + "?" + query.Encode()
}

// codeChallenge derives the S256 PKCE challenge from the verifier
func codeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Items lists the accessible bases, then fetches each base's tables
// concurrently. A base whose table listing fails still appears as a base
// item; only the table collection for that base is skipped.
func (a *Adapter) Items(ctx context.Context, creds oauth.Credentials) ([]integrations.Item, int, error) {
	token, ok := creds.AccessToken()
	if !ok {
		return nil, 0, fmt.Errorf("%w: missing access_token", oauth.ErrInvalidCredentialFormat)
	}

	bases, baseItems, failed, err := a.fetchBases(ctx, token)
	if err != nil {
		return nil, 0, err
	}

	collections := make([]integrations.CollectionFetch, 0, len(bases))
	for _, base := range bases {
		base := base
		collections = append(collections, integrations.CollectionFetch{
			Name: "tables",
			Fetch: func(ctx context.Context) ([]integrations.Item, int, error) {
				return a.fetchTables(ctx, token, base)
			},
		})
	}

	tableItems, tableFailed := integrations.FetchAll(ctx, a.logger, Name, collections)

	items := append(baseItems, tableItems...)
	return items, failed + tableFailed, nil
}

// base is the slice of a meta-API base record the adapter keeps
type base struct {
	ID   string
	Name string
}

// fetchBases lists the bases the token grants access to. Listing failure is
// wholesale; without it there is nothing to fetch.
func (a *Adapter) fetchBases(ctx context.Context, token string) ([]base, []integrations.Item, int, error) {
	resp, err := a.http.Get(ctx, a.apiBase+"/v0/meta/bases", integrations.BearerHeaders(token))
	if err != nil {
		return nil, nil, 0, err
	}
	if !httpclient.IsSuccessStatus(resp.StatusCode) {
		return nil, nil, 0, fmt.Errorf("airtable base listing returned status %d", resp.StatusCode)
	}

	if err := httpclient.ParseResponse(resp); err != nil {
		return nil, nil, 0, fmt.Errorf("failed to parse airtable base listing: %w", err)
	}

	records, err := a.evaluator.Evaluate("bases", resp.BodyJSON)
	if err != nil {
		return nil, nil, 0, err
	}

	rows, ok := records.([]any)
	if !ok {
		return nil, nil, 0, fmt.Errorf("airtable base listing missing bases array")
	}

	var (
		bases  []base
		items  []integrations.Item
		failed int
	)
	for _, row := range rows {
		record, ok := row.(map[string]any)
		if !ok {
			failed++
			continue
		}

		id, err := a.evaluator.EvaluateString("id", record)
		if err != nil || id == "" {
			failed++
			a.logger.WithContext(ctx).WithField("collection", "bases").Warn("Skipping base record without id")
			continue
		}
		name, _ := a.evaluator.EvaluateString("name", record)
		if name == "" {
			name = "Unnamed Base"
		}

		bases = append(bases, base{ID: id, Name: name})
		link := fmt.Sprintf("https://airtable.com/%s", id)
		item := integrations.Item{
			ID:        id,
			Type:      "base",
			Name:      name,
			URL:       &link,
			Directory: true,
		}
		if level, err := a.evaluator.EvaluateString("permissionLevel", record); err == nil && level != "" {
			item.Extra = map[string]any{"permission_level": level}
		}
		items = append(items, item)
	}

	return bases, items, failed, nil
}

// fetchTables lists one base's tables via the meta API
func (a *Adapter) fetchTables(ctx context.Context, token string, parent base) ([]integrations.Item, int, error) {
	endpoint := fmt.Sprintf("%s/v0/meta/bases/%s/tables", a.apiBase, parent.ID)

	resp, err := a.http.Get(ctx, endpoint, integrations.BearerHeaders(token))
	if err != nil {
		return nil, 0, err
	}
	if !httpclient.IsSuccessStatus(resp.StatusCode) {
		return nil, 0, fmt.Errorf("airtable table listing for base %s returned status %d", parent.ID, resp.StatusCode)
	}

	if err := httpclient.ParseResponse(resp); err != nil {
		return nil, 0, fmt.Errorf("failed to parse airtable table listing: %w", err)
	}

	records, err := a.evaluator.Evaluate("tables", resp.BodyJSON)
	if err != nil {
		return nil, 0, err
	}

	rows, ok := records.([]any)
	if !ok {
		return nil, 0, fmt.Errorf("airtable table listing missing tables array")
	}

	var (
		items  []integrations.Item
		failed int
	)
	for _, row := range rows {
		record, ok := row.(map[string]any)
		if !ok {
			failed++
			continue
		}

		id, err := a.evaluator.EvaluateString("id", record)
		if err != nil || id == "" {
			failed++
			a.logger.WithContext(ctx).WithField("collection", "tables").Warn("Skipping table record without id")
			continue
		}
		name, _ := a.evaluator.EvaluateString("name", record)
		if name == "" {
			name = "Unnamed Table"
		}

		parentID := parent.ID
		link := fmt.Sprintf("https://airtable.com/%s/%s", parent.ID, id)
		item := integrations.Item{
			ID:       id,
			Type:     "table",
			Name:     name,
			ParentID: &parentID,
			URL:      &link,
		}
		if fieldID, err := a.evaluator.EvaluateString("primaryFieldId", record); err == nil && fieldID != "" {
			item.Extra = map[string]any{"primary_field_id": fieldID}
		}
		items = append(items, item)
	}

	return items, failed, nil
}
