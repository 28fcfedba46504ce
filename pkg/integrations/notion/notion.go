// Package notion fetches pages and databases through the Notion search API.
package notion

import (
	"context"
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
	Name = "notion"

	defaultAuthorizeURL = "https://api.notion.com/v1/oauth/authorize"
	defaultTokenURL     = "https://api.notion.com/v1/oauth/token"
	defaultAPIBase      = "https://api.notion.com"

	// apiVersion is required on every data-plane request
	apiVersion = "2022-06-28"
)

// Adapter implements integrations.Adapter for Notion
type Adapter struct {
	cfg       integrations.OAuthConfig
	http      *httpclient.Client
	logger    ectologger.Logger
	evaluator *expressions.Evaluator

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

// New creates a Notion adapter
func New(cfg integrations.OAuthConfig, http *httpclient.Client, logger ectologger.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		cfg:          cfg,
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

// TokenURL returns the Notion token exchange endpoint
func (a *Adapter) TokenURL() string {
	return a.tokenURL
}

// TokenParams returns nil; Notion needs no extra token parameters
func (a *Adapter) TokenParams() map[string]string {
	return nil
}

// AuthorizeURL builds the Notion consent URL carrying the encoded state
func (a *Adapter) AuthorizeURL(state string) string {
	query := url.Values{}
	query.Set("client_id", a.cfg.ClientID)
	query.Set("redirect_uri", a.cfg.RedirectURI)
	query.Set("response_type", "code")
	query.Set("owner", "user")
	query.Set("state", state)
	return a.authorizeURL + "?" + query.Encode()
}

// Items searches the workspace for pages and databases concurrently. A
// failed object class is skipped; per-object mapping failures are counted
// and skipped.
func (a *Adapter) Items(ctx context.Context, creds oauth.Credentials) ([]integrations.Item, int, error) {
	token, ok := creds.AccessToken()
	if !ok {
		return nil, 0, fmt.Errorf("%w: missing access_token", oauth.ErrInvalidCredentialFormat)
	}

	collections := []integrations.CollectionFetch{
		{Name: "pages", Fetch: func(ctx context.Context) ([]integrations.Item, int, error) {
			return a.search(ctx, token, "page")
		}},
		{Name: "databases", Fetch: func(ctx context.Context) ([]integrations.Item, int, error) {
			return a.search(ctx, token, "database")
		}},
	}

	items, failed := integrations.FetchAll(ctx, a.logger, Name, collections)
	return items, failed, nil
}

// search runs a filtered /v1/search query for one object class
func (a *Adapter) search(ctx context.Context, token, objectType string) ([]integrations.Item, int, error) {
	body := map[string]any{
		"filter": map[string]any{
			"property": "object",
			"value":    objectType,
		},
	}

	headers := integrations.BearerHeaders(token)
	headers["Notion-Version"] = apiVersion

	resp, err := a.http.PostJSON(ctx, a.apiBase+"/v1/search", body, headers)
	if err != nil {
		return nil, 0, err
	}
	if !httpclient.IsSuccessStatus(resp.StatusCode) {
		return nil, 0, fmt.Errorf("notion %s search returned status %d", objectType, resp.StatusCode)
	}

	if err := httpclient.ParseResponse(resp); err != nil {
		return nil, 0, fmt.Errorf("failed to parse notion %s response: %w", objectType, err)
	}

	records, err := a.evaluator.Evaluate("results", resp.BodyJSON)
	if err != nil {
		return nil, 0, err
	}

	rows, ok := records.([]any)
	if !ok {
		return nil, 0, fmt.Errorf("notion %s response missing results array", objectType)
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
		item, err := a.mapObject(record, objectType)
		if err != nil {
			failed++
			a.logger.WithContext(ctx).WithError(err).WithField("collection", objectType).Warn("Skipping unmappable record")
			continue
		}
		items = append(items, item)
	}

	return items, failed, nil
}

func (a *Adapter) mapObject(record map[string]any, objectType string) (integrations.Item, error) {
	id, err := a.evaluator.EvaluateString("id", record)
	if err != nil || id == "" {
		return integrations.Item{}, fmt.Errorf("record missing id")
	}

	created, _ := a.evaluator.EvaluateString("created_time", record)
	edited, _ := a.evaluator.EvaluateString("last_edited_time", record)
	pageURL, _ := a.evaluator.EvaluateString("url", record)

	return integrations.Item{
		ID:               id,
		Type:             objectType,
		Name:             a.title(record, objectType),
		CreationTime:     integrations.ParseTime(created),
		LastModifiedTime: integrations.ParseTime(edited),
		ParentID:         a.parentID(record),
		URL:              integrations.StringPtr(pageURL),
		Directory:        objectType == "database",
		Extra:            a.extraFields(record),
	}, nil
}

// extraFields keeps the archive flag, which has no normalized Item field
func (a *Adapter) extraFields(record map[string]any) map[string]any {
	archived, err := a.evaluator.Evaluate("archived", record)
	if err != nil || archived == nil {
		return nil
	}
	return map[string]any{"archived": archived}
}

// title extracts the display name; pages carry it under a title property,
// databases at the top level
func (a *Adapter) title(record map[string]any, objectType string) string {
	expression := "properties.title.title[0].plain_text"
	if objectType == "database" {
		expression = "title[0].plain_text"
	}

	if name, err := a.evaluator.EvaluateString(expression, record); err == nil && name != "" {
		return name
	}
	return "Untitled"
}

// parentID resolves the containing page, database or workspace
func (a *Adapter) parentID(record map[string]any) *string {
	for _, expression := range []string{"parent.page_id", "parent.database_id", "parent.workspace && 'workspace'"} {
		if parent, err := a.evaluator.EvaluateString(expression, record); err == nil && parent != "" {
			return &parent
		}
	}
	return nil
}
