package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/pkg/middleware"
)

func newLogsEcho() *echo.Echo {
	logger := getTestLogger()
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	handlers.NewLogsHandler(logger).RegisterRoutes(e)
	return e
}

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestLogs_Store(t *testing.T) {
	e := newLogsEcho()

	for _, level := range []string{"ERROR", "WARN", "DEBUG", "INFO", "unknown"} {
		rec := postJSON(e, "/logs", `{
			"timestamp": "2026-08-29T12:00:00Z",
			"level": "`+level+`",
			"component": "OAuthPopup",
			"action": "window_opened",
			"details": {"integration": "hubspot"}
		}`)
		assert.Equal(t, http.StatusOK, rec.Code, "level %s", level)
		assert.Contains(t, rec.Body.String(), "success")
	}
}

func TestLogs_MissingFields(t *testing.T) {
	e := newLogsEcho()

	rec := postJSON(e, "/logs", `{"level":"INFO"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogs_MalformedBody(t *testing.T) {
	e := newLogsEcho()

	rec := postJSON(e, "/logs", `not-json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
