// Package hubspot fetches CRM objects (contacts, companies, deals) through
// the HubSpot v3 API.
package hubspot

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/expressions"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/integrations"
	"github.com/Ramsey-B/fern/pkg/oauth"
)

const (
	// Name is the platform identifier
	Name = "hubspot"

	defaultAuthorizeURL = "https://app.hubspot.com/oauth/authorize"
	defaultTokenURL     = "https://api.hubspot.com/oauth/v1/token"
	defaultAPIBase      = "https://api.hubspot.com/crm/v3"

	// pageLimit is the per-collection object cap
	pageLimit = 100
)

// Adapter implements integrations.Adapter for HubSpot
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

// New creates a HubSpot adapter
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

// TokenURL returns the HubSpot token exchange endpoint
func (a *Adapter) TokenURL() string {
	return a.tokenURL
}

// TokenParams returns nil; HubSpot needs no extra token parameters
func (a *Adapter) TokenParams() map[string]string {
	return nil
}

// AuthorizeURL builds the HubSpot consent URL carrying the encoded state
func (a *Adapter) AuthorizeURL(state string) string {
	query := url.Values{}
	query.Set("client_id", a.cfg.ClientID)
	query.Set("redirect_uri", a.cfg.RedirectURI)
	query.Set("scope", a.cfg.Scopes)
	query.Set("state", state)
	return a.authorizeURL + "?" + query.Encode()
}

// Items fetches contacts, companies and deals concurrently and maps them to
// normalized items. A failed collection is skipped; per-object mapping
// failures are counted and skipped.
func (a *Adapter) Items(ctx context.Context, creds oauth.Credentials) ([]integrations.Item, int, error) {
	token, ok := creds.AccessToken()
	if !ok {
		return nil, 0, fmt.Errorf("%w: missing access_token", oauth.ErrInvalidCredentialFormat)
	}

	collections := []integrations.CollectionFetch{
		{Name: "contacts", Fetch: func(ctx context.Context) ([]integrations.Item, int, error) {
			return a.fetchObjects(ctx, token, "contacts", a.mapContact)
		}},
		{Name: "companies", Fetch: func(ctx context.Context) ([]integrations.Item, int, error) {
			return a.fetchObjects(ctx, token, "companies", a.mapCompany)
		}},
		{Name: "deals", Fetch: func(ctx context.Context) ([]integrations.Item, int, error) {
			return a.fetchObjects(ctx, token, "deals", a.mapDeal)
		}},
	}

	items, failed := integrations.FetchAll(ctx, a.logger, Name, collections)
	return items, failed, nil
}

// fetchObjects pulls one CRM object collection and maps each record
func (a *Adapter) fetchObjects(ctx context.Context, token, objectType string, mapper func(map[string]any) (integrations.Item, error)) ([]integrations.Item, int, error) {
	endpoint := fmt.Sprintf("%s/objects/%s?limit=%d", a.apiBase, objectType, pageLimit)

	resp, err := a.http.Get(ctx, endpoint, integrations.BearerHeaders(token))
	if err != nil {
		return nil, 0, err
	}
	if !httpclient.IsSuccessStatus(resp.StatusCode) {
		return nil, 0, fmt.Errorf("hubspot %s fetch returned status %d", objectType, resp.StatusCode)
	}

	if err := httpclient.ParseResponse(resp); err != nil {
		return nil, 0, fmt.Errorf("failed to parse hubspot %s response: %w", objectType, err)
	}

	records, err := a.evaluator.Evaluate("results", resp.BodyJSON)
	if err != nil {
		return nil, 0, err
	}

	rows, ok := records.([]any)
	if !ok {
		return nil, 0, fmt.Errorf("hubspot %s response missing results array", objectType)
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
		item, err := mapper(record)
		if err != nil {
			failed++
			a.logger.WithContext(ctx).WithError(err).WithField("collection", objectType).Warn("Skipping unmappable record")
			continue
		}
		items = append(items, item)
	}

	return items, failed, nil
}

func (a *Adapter) mapContact(record map[string]any) (integrations.Item, error) {
	id, err := a.recordID(record)
	if err != nil {
		return integrations.Item{}, err
	}

	first, _ := a.evaluator.EvaluateString("properties.firstname", record)
	last, _ := a.evaluator.EvaluateString("properties.lastname", record)
	name := first
	if last != "" {
		if name != "" {
			name += " "
		}
		name += last
	}
	if name == "" {
		name = "Unnamed Contact"
	}

	return integrations.Item{
		ID:               id,
		Type:             "contact",
		Name:             name,
		CreationTime:     a.recordTime(record, "properties.createdate"),
		LastModifiedTime: a.recordTime(record, "properties.lastmodifieddate"),
		URL:              a.objectURL(record, "contact", id),
		Extra:            a.extraFields(record, map[string]string{"email": "properties.email"}),
	}, nil
}

func (a *Adapter) mapCompany(record map[string]any) (integrations.Item, error) {
	id, err := a.recordID(record)
	if err != nil {
		return integrations.Item{}, err
	}

	name, _ := a.evaluator.EvaluateString("properties.name", record)
	if name == "" {
		name = "Unnamed Company"
	}

	return integrations.Item{
		ID:               id,
		Type:             "company",
		Name:             name,
		CreationTime:     a.recordTime(record, "properties.createdate"),
		LastModifiedTime: a.recordTime(record, "properties.lastmodifieddate"),
		URL:              a.objectURL(record, "company", id),
		Extra:            a.extraFields(record, map[string]string{"domain": "properties.domain"}),
	}, nil
}

func (a *Adapter) mapDeal(record map[string]any) (integrations.Item, error) {
	id, err := a.recordID(record)
	if err != nil {
		return integrations.Item{}, err
	}

	name, _ := a.evaluator.EvaluateString("properties.dealname", record)
	if name == "" {
		name = "Unnamed Deal"
	}

	return integrations.Item{
		ID:               id,
		Type:             "deal",
		Name:             name,
		CreationTime:     a.recordTime(record, "properties.createdate"),
		LastModifiedTime: a.recordTime(record, "properties.lastmodifieddate"),
		URL:              a.objectURL(record, "deal", id),
		Extra: a.extraFields(record, map[string]string{
			"amount":    "properties.amount",
			"dealstage": "properties.dealstage",
		}),
	}, nil
}

// extraFields collects platform attributes that have no normalized Item
// field. Missing attributes are left out rather than set to nil.
func (a *Adapter) extraFields(record map[string]any, fields map[string]string) map[string]any {
	var extra map[string]any
	for key, expression := range fields {
		value, err := a.evaluator.Evaluate(expression, record)
		if err != nil || value == nil {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[key] = value
	}
	return extra
}

func (a *Adapter) recordID(record map[string]any) (string, error) {
	id, err := a.evaluator.EvaluateString("id", record)
	if err != nil || id == "" {
		return "", fmt.Errorf("record missing id")
	}
	return id, nil
}

func (a *Adapter) recordTime(record map[string]any, expression string) *time.Time {
	value, err := a.evaluator.EvaluateString(expression, record)
	if err != nil {
		return nil
	}
	return integrations.ParseTime(value)
}

// objectURL links to the object in the HubSpot UI when the owner portal id
// is present on the record
func (a *Adapter) objectURL(record map[string]any, objectType, id string) *string {
	owner, err := a.evaluator.EvaluateString("properties.hubspot_owner_id", record)
	if err != nil || owner == "" {
		return nil
	}
	link := fmt.Sprintf("https://app.hubspot.com/contacts/%s/%s/%s", owner, objectType, id)
	return &link
}
