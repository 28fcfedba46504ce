package integrations

import (
	"context"
	"sync"

	"github.com/Ramsey-B/fern/pkg/oauth"
)

// OAuthConfig holds the static OAuth client settings for one platform
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       string
}

// Adapter is the per-platform capability surface. One instance per platform
// is constructed at startup and registered in a Registry; the orchestration
// layer only ever talks to this interface.
type Adapter interface {
	// Name returns the platform identifier used in routes and store keys
	Name() string

	// AuthorizeURL builds the provider consent URL carrying the encoded state
	AuthorizeURL(state string) string

	// TokenURL returns the provider's token exchange endpoint
	TokenURL() string

	// OAuth returns the adapter's client configuration
	OAuth() OAuthConfig

	// TokenParams returns extra parameters to merge into the token exchange
	// body, or nil when the platform needs none
	TokenParams() map[string]string

	// Items fetches the platform's collections and maps them to normalized
	// items. The int return is the number of objects that failed to map and
	// were skipped; only a wholesale failure returns a non-nil error.
	Items(ctx context.Context, creds oauth.Credentials) ([]Item, int, error)
}

// Registry holds the configured adapters keyed by platform name
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its own name. Registering the same name
// twice replaces the earlier adapter.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Name()] = adapter
}

// Get returns the adapter for the named platform
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[name]
	return adapter, ok
}

// Names returns the registered platform names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

// TokenEndpoint implements oauth.EndpointResolver from the registered
// adapter's configuration
func (r *Registry) TokenEndpoint(integration string) (oauth.Endpoint, bool) {
	adapter, ok := r.Get(integration)
	if !ok {
		return oauth.Endpoint{}, false
	}
	cfg := adapter.OAuth()
	return oauth.Endpoint{
		TokenURL:     adapter.TokenURL(),
		RedirectURI:  cfg.RedirectURI,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}, true
}
