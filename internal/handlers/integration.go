package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/appctx"
	"github.com/Ramsey-B/fern/pkg/integrations"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/oauth"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// closeWindowHTML is returned to the OAuth popup after a successful callback
const closeWindowHTML = `<html>
    <script>
        window.close();
    </script>
</html>`

// IntegrationHandler drives the OAuth flow and item loading for every
// registered platform
type IntegrationHandler struct {
	registry *integrations.Registry
	states   *oauth.StateManager
	creds    *oauth.CredentialStore
	exchange *oauth.ExchangeClient
	observer oauth.Observer
	logger   ectologger.Logger
}

// NewIntegrationHandler creates a new integration handler
func NewIntegrationHandler(
	registry *integrations.Registry,
	states *oauth.StateManager,
	creds *oauth.CredentialStore,
	exchange *oauth.ExchangeClient,
	observer oauth.Observer,
	logger ectologger.Logger,
) *IntegrationHandler {
	if observer == nil {
		observer = oauth.NopObserver{}
	}
	return &IntegrationHandler{
		registry: registry,
		states:   states,
		creds:    creds,
		exchange: exchange,
		observer: observer,
		logger:   logger,
	}
}

// RegisterRoutes registers the per-integration OAuth routes. One route set
// serves every registered platform via the :integration parameter.
func (h *IntegrationHandler) RegisterRoutes(e *echo.Echo, m ...echo.MiddlewareFunc) {
	group := e.Group("/integrations/:integration", m...)
	group.POST("/authorize", h.Authorize)
	group.GET("/oauth2callback", h.Callback)
	group.POST("/credentials", h.Credentials)
	group.POST("/load", h.Load)
}

// adapter resolves the :integration path parameter against the registry
func (h *IntegrationHandler) adapter(c echo.Context) (integrations.Adapter, error) {
	name := c.Param("integration")
	adapter, ok := h.registry.Get(name)
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "unsupported integration: %s", name)
	}

	ctx := appctx.SetIntegration(c.Request().Context(), name)
	c.SetRequest(c.Request().WithContext(ctx))

	return adapter, nil
}

// Authorize handles POST /integrations/:integration/authorize
func (h *IntegrationHandler) Authorize(c echo.Context) error {
	adapter, err := h.adapter(c)
	if err != nil {
		return err
	}

	ctx, span := tracing.StartSpan(c.Request().Context(), "IntegrationHandler.Authorize")
	defer span.End()

	userID, err := RequireForm(c, "user_id")
	if err != nil {
		return err
	}
	orgID, err := RequireForm(c, "org_id")
	if err != nil {
		return err
	}

	state, err := h.states.Create(ctx, adapter.Name(), userID, orgID)
	if err != nil {
		metrics.RecordOAuthFlow(adapter.Name(), "authorize", "error")
		return h.mapError(err)
	}

	authorizeURL := adapter.AuthorizeURL(state)

	metrics.RecordOAuthFlow(adapter.Name(), "authorize", "success")
	h.observer.OnEvent(ctx, oauth.Event{
		Type:        oauth.EventAuthorizeStarted,
		Integration: adapter.Name(),
		UserID:      userID,
		OrgID:       orgID,
		Details:     map[string]any{"redirect_uri": adapter.OAuth().RedirectURI},
		Timestamp:   time.Now().UTC(),
	})

	return SuccessResponse(c, authorizeURL)
}

// Callback handles GET /integrations/:integration/oauth2callback
func (h *IntegrationHandler) Callback(c echo.Context) error {
	adapter, err := h.adapter(c)
	if err != nil {
		return err
	}

	ctx, span := tracing.StartSpan(c.Request().Context(), "IntegrationHandler.Callback")
	defer span.End()

	if providerError := c.QueryParam("error"); providerError != "" {
		metrics.RecordOAuthFlow(adapter.Name(), "callback", "provider_error")
		h.observer.OnError(ctx, oauth.Event{
			Type:        oauth.EventCallbackFailed,
			Integration: adapter.Name(),
			Timestamp:   time.Now().UTC(),
		}, errors.New(providerError))
		return httperror.NewHTTPError(http.StatusBadRequest, providerError)
	}

	code := c.QueryParam("code")
	encodedState := c.QueryParam("state")
	if code == "" || encodedState == "" {
		metrics.RecordOAuthFlow(adapter.Name(), "callback", "error")
		return BadRequest("missing code or state")
	}

	stateData, err := h.states.Validate(ctx, adapter.Name(), encodedState)
	if err != nil {
		metrics.RecordOAuthFlow(adapter.Name(), "callback", "error")
		h.observer.OnError(ctx, oauth.Event{
			Type:        oauth.EventCallbackFailed,
			Integration: adapter.Name(),
			Timestamp:   time.Now().UTC(),
		}, err)
		return h.mapError(err)
	}

	creds, err := h.exchange.Exchange(ctx, adapter.Name(), code, adapter.TokenParams())
	if err != nil {
		metrics.RecordOAuthFlow(adapter.Name(), "callback", "error")
		h.observer.OnError(ctx, oauth.Event{
			Type:        oauth.EventCallbackFailed,
			Integration: adapter.Name(),
			UserID:      stateData.UserID,
			OrgID:       stateData.OrgID,
			Timestamp:   time.Now().UTC(),
		}, err)
		return h.mapError(err)
	}

	if err := h.creds.Put(ctx, adapter.Name(), stateData.UserID, stateData.OrgID, creds); err != nil {
		metrics.RecordOAuthFlow(adapter.Name(), "callback", "error")
		return h.mapError(err)
	}

	_, hasToken := creds.AccessToken()
	metrics.RecordOAuthFlow(adapter.Name(), "callback", "success")
	h.observer.OnEvent(ctx, oauth.Event{
		Type:        oauth.EventCallbackSucceeded,
		Integration: adapter.Name(),
		UserID:      stateData.UserID,
		OrgID:       stateData.OrgID,
		Details:     map[string]any{"has_access_token": hasToken},
		Timestamp:   time.Now().UTC(),
	})

	return c.HTML(http.StatusOK, closeWindowHTML)
}

// Credentials handles POST /integrations/:integration/credentials
func (h *IntegrationHandler) Credentials(c echo.Context) error {
	adapter, err := h.adapter(c)
	if err != nil {
		return err
	}

	ctx, span := tracing.StartSpan(c.Request().Context(), "IntegrationHandler.Credentials")
	defer span.End()

	userID, err := RequireForm(c, "user_id")
	if err != nil {
		return err
	}
	orgID, err := RequireForm(c, "org_id")
	if err != nil {
		return err
	}

	creds, err := h.creds.GetAndConsume(ctx, adapter.Name(), userID, orgID)
	if err != nil {
		metrics.RecordOAuthFlow(adapter.Name(), "credentials", "error")
		return h.mapError(err)
	}

	metrics.RecordOAuthFlow(adapter.Name(), "credentials", "success")
	h.observer.OnEvent(ctx, oauth.Event{
		Type:        oauth.EventCredentialsConsumed,
		Integration: adapter.Name(),
		UserID:      userID,
		OrgID:       orgID,
		Timestamp:   time.Now().UTC(),
	})

	return SuccessResponse(c, creds)
}

// Load handles POST /integrations/:integration/load
func (h *IntegrationHandler) Load(c echo.Context) error {
	adapter, err := h.adapter(c)
	if err != nil {
		return err
	}

	ctx, span := tracing.StartSpan(c.Request().Context(), "IntegrationHandler.Load")
	defer span.End()

	raw, err := RequireForm(c, "credentials")
	if err != nil {
		return err
	}

	var creds oauth.Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil || len(creds) == 0 {
		return BadRequest("invalid credentials payload")
	}

	start := time.Now()
	items, failed, err := adapter.Items(ctx, creds)
	if err != nil {
		metrics.RecordOAuthFlow(adapter.Name(), "load", "error")
		return h.mapError(err)
	}
	if items == nil {
		items = []integrations.Item{}
	}

	metrics.RecordOAuthFlow(adapter.Name(), "load", "success")
	h.observer.OnEvent(ctx, oauth.Event{
		Type:        oauth.EventItemsLoaded,
		Integration: adapter.Name(),
		Details: map[string]any{
			"total_items":  len(items),
			"failed_items": failed,
			"duration_ms":  time.Since(start).Milliseconds(),
		},
		Timestamp: time.Now().UTC(),
	})

	if failed > 0 {
		h.logger.WithContext(ctx).WithFields(map[string]any{
			"integration":  adapter.Name(),
			"failed_items": failed,
		}).Warn("Some items failed to map and were skipped")
	}

	return SuccessResponse(c, items)
}

// mapError converts domain errors to HTTP errors. Sentinels are client
// errors; storage failures and provider fetch failures are gateway errors;
// a rejected token exchange mirrors the upstream status class.
func (h *IntegrationHandler) mapError(err error) error {
	switch {
	case errors.Is(err, oauth.ErrMalformedState),
		errors.Is(err, oauth.ErrStateNotFound),
		errors.Is(err, oauth.ErrStateMismatch),
		errors.Is(err, oauth.ErrUnsupportedIntegration),
		errors.Is(err, oauth.ErrCredentialsNotFound),
		errors.Is(err, oauth.ErrInvalidCredentialFormat):
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var exchangeErr *oauth.TokenExchangeError
	if errors.As(err, &exchangeErr) {
		status := http.StatusBadRequest
		if exchangeErr.StatusCode >= 500 {
			status = http.StatusBadGateway
		}
		return httperror.NewHTTPErrorf(status, "token exchange failed with status %d", exchangeErr.StatusCode).
			AddMetaValue("upstream_status", exchangeErr.StatusCode).
			AddMetaValue("upstream_body", exchangeErr.Body)
	}

	var storageErr *oauth.StorageError
	if errors.As(err, &storageErr) {
		return httperror.NewHTTPError(http.StatusBadGateway, "ephemeral store unavailable")
	}

	return BadGateway(err.Error())
}
