package httpclient

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseResponse parses the response body based on content type
func ParseResponse(resp *Response) error {
	if len(resp.Body) == 0 {
		return nil
	}

	contentType := strings.ToLower(resp.ContentType)

	switch {
	case strings.Contains(contentType, "application/json"):
		return parseJSON(resp)
	case strings.Contains(contentType, "text/json"):
		return parseJSON(resp)
	case strings.Contains(contentType, "text/"):
		resp.BodyJSON = string(resp.Body)
		return nil
	default:
		// Providers occasionally omit the content type on JSON payloads;
		// fall back to a best-effort parse before giving up.
		if err := parseJSON(resp); err != nil {
			resp.BodyJSON = string(resp.Body)
		}
		return nil
	}
}

func parseJSON(resp *Response) error {
	var result any
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	resp.BodyJSON = result
	return nil
}

// IsSuccessStatus returns true if the status code indicates success
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
