package huay

import (
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// APIError is a rejection reported by the backend, carrying its
// human-readable message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("huay: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("huay: HTTP %d: %s", e.StatusCode, e.Message)
}

// Reason returns the message to show the member.
func (e *APIError) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.StatusCode)
}

// Unwrap maps well-known statuses onto domain sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return nil
	}
}

// messagePaths are tried in order to find a readable message in an error
// payload of unknown shape.
var messagePaths = []string{"message", "error.message", "error", "msg", "data.message"}

// checkStatus turns non-2xx responses, and 2xx envelopes with
// "success": false, into *APIError.
func checkStatus(statusCode int, body []byte) error {
	ok := statusCode >= 200 && statusCode < 300
	if ok {
		if s := gjson.GetBytes(body, "success"); !s.Exists() || s.Bool() {
			return nil
		}
	}
	return &APIError{StatusCode: statusCode, Message: extractMessage(body)}
}

func extractMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return truncate(string(body), 200)
	}
	for _, p := range messagePaths {
		if r := gjson.GetBytes(body, p); r.Exists() && r.Type == gjson.String && r.String() != "" {
			return r.String()
		}
	}
	return ""
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
