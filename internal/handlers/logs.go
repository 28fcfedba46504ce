package handlers

import (
	"net/http"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
)

// LogsHandler relays frontend log entries through the service logger
type LogsHandler struct {
	logger ectologger.Logger
}

// NewLogsHandler creates a new frontend log relay handler
func NewLogsHandler(logger ectologger.Logger) *LogsHandler {
	return &LogsHandler{logger: logger}
}

// LogEntry is a structured log record submitted by the frontend
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// RegisterRoutes registers the log relay route
func (h *LogsHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/logs", h.Store)
}

// Store handles POST /logs
func (h *LogsHandler) Store(c echo.Context) error {
	var entry LogEntry
	if err := c.Bind(&entry); err != nil {
		return BadRequest("invalid log entry")
	}
	if entry.Component == "" || entry.Action == "" {
		return BadRequest("missing component or action")
	}

	log := h.logger.WithContext(c.Request().Context()).WithFields(map[string]any{
		"source":             "frontend",
		"component":          entry.Component,
		"action":             entry.Action,
		"frontend_timestamp": entry.Timestamp,
		"details":            entry.Details,
		"metadata":           entry.Metadata,
	})

	message := "[Frontend] " + entry.Component + " - " + entry.Action

	switch strings.ToUpper(entry.Level) {
	case "ERROR":
		log.Error(message)
	case "WARN":
		log.Warn(message)
	case "DEBUG":
		log.Debug(message)
	default:
		log.Info(message)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Log stored successfully",
	})
}
