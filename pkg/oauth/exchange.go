package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Endpoint is the static token-exchange configuration for one integration
type Endpoint struct {
	TokenURL     string
	RedirectURI  string
	ClientID     string
	ClientSecret string
}

// EndpointResolver resolves an integration name to its token endpoint.
// The integration registry implements this.
type EndpointResolver interface {
	TokenEndpoint(integration string) (Endpoint, bool)
}

// ExchangeClient converts an authorization code into provider credentials
// against heterogeneous provider token endpoints.
type ExchangeClient struct {
	http     *httpclient.Client
	resolver EndpointResolver
	logger   ectologger.Logger
}

// NewExchangeClient creates a token exchange client
func NewExchangeClient(http *httpclient.Client, resolver EndpointResolver, logger ectologger.Logger) *ExchangeClient {
	return &ExchangeClient{
		http:     http,
		resolver: resolver,
		logger:   logger,
	}
}

// Exchange posts the authorization code to the integration's token endpoint
// and returns the parsed response body unmodified. No normalization happens
// at this layer and failed exchanges are not retried.
func (c *ExchangeClient) Exchange(ctx context.Context, integration, code string, extra map[string]string) (Credentials, error) {
	ctx, span := tracing.StartSpan(ctx, "ExchangeClient.Exchange")
	defer span.End()

	endpoint, ok := c.resolver.TokenEndpoint(integration)
	if !ok {
		return nil, ErrUnsupportedIntegration
	}

	body := map[string]any{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": endpoint.RedirectURI,
	}
	for key, value := range extra {
		body[key] = value
	}

	headers := map[string]string{
		"Authorization": basicAuthHeader(endpoint.ClientID, endpoint.ClientSecret),
	}

	start := time.Now()
	resp, err := c.http.PostJSON(ctx, endpoint.TokenURL, body, headers)
	if err != nil {
		metrics.RecordTokenExchange(integration, "network_error", time.Since(start).Seconds())
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}

	metrics.RecordTokenExchange(integration, strconv.Itoa(resp.StatusCode), resp.Duration.Seconds())

	if !httpclient.IsSuccessStatus(resp.StatusCode) {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"integration": integration,
			"status_code": resp.StatusCode,
		}).Warn("Token exchange rejected by provider")
		return nil, &TokenExchangeError{
			Integration: integration,
			StatusCode:  resp.StatusCode,
			Body:        string(resp.Body),
		}
	}

	var creds Credentials
	if err := json.Unmarshal(resp.Body, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return creds, nil
}

func basicAuthHeader(clientID, clientSecret string) string {
	raw := fmt.Sprintf("%s:%s", clientID, clientSecret)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}
