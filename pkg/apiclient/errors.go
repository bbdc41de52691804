package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a failed response. Servers answer with RFC 7807 problem
// details; other bodies end up in Detail verbatim.
type APIError struct {
	StatusCode int    `json:"status"`
	Title      string `json:"title"`
	Detail     string `json:"detail,omitempty"`
}

func newAPIError(status int, body []byte) *APIError {
	var e APIError
	if json.Unmarshal(body, &e) != nil || e.Title == "" {
		e = APIError{
			Title:  http.StatusText(status),
			Detail: strings.TrimSpace(string(body)),
		}
	}
	e.StatusCode = status
	return &e
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Title)
}

// IsAuthError reports a 401 or 403.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsTimeout reports that the directory did not answer in time (504).
func (e *APIError) IsTimeout() bool {
	return e.StatusCode == http.StatusGatewayTimeout
}

// IsUnavailable reports a disabled feature or an unready server (503).
func (e *APIError) IsUnavailable() bool {
	return e.StatusCode == http.StatusServiceUnavailable
}
