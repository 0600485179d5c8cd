package imagegen

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed operation.
type Kind string

const (
	KindUnauthenticated  Kind = "unauthenticated"
	KindInvalidInput     Kind = "invalid_input"
	KindBadRequest       Kind = "bad_request"
	KindUnauthorized     Kind = "unauthorized"
	KindPaymentRequired  Kind = "payment_required"
	KindUnsupportedMedia Kind = "unsupported_media"
	KindRateLimited      Kind = "rate_limited"
	KindServerError      Kind = "server_error"
	KindUnavailable      Kind = "unavailable"
	KindUnreachable      Kind = "unreachable"
	KindUnknown          Kind = "unknown"
)

// Local reports whether the kind is raised before any network call.
func (k Kind) Local() bool {
	return k == KindUnauthenticated || k == KindInvalidInput
}

// Error is the single error type surfaced by the client and the orchestrator.
// Status is zero for local and transport failures.
type Error struct {
	Status  int
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// MentionsField reports whether the error message references field, which is
// how the API flags a rejected model id.
func (e *Error) MentionsField(field string) bool {
	return strings.Contains(strings.ToLower(e.Message), strings.ToLower(field))
}

func ErrUnauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "API key is required"}
}

func InvalidInput(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

func unreachable(err error) *Error {
	return &Error{Kind: KindUnreachable, Message: "Unable to reach the image API (no response)", Err: err}
}

// parseErrorMessage reads "message", then "error", from a JSON error body.
// Each field is decoded on its own so an unexpected shape in one does not
// hide the other. An "error" object contributes its own "message".
func parseErrorMessage(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	if msg := stringField(fields["message"]); msg != "" {
		return msg
	}
	raw := fields["error"]
	if msg := stringField(raw); msg != "" {
		return msg
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return strings.TrimSpace(nested.Message)
	}
	return ""
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// classify maps a non-2xx response onto the error taxonomy.
func classify(status int, body []byte) *Error {
	serverMsg := parseErrorMessage(body)
	fallback := fmt.Sprintf("Request failed with status %d", status)
	e := &Error{Status: status}
	switch status {
	case http.StatusBadRequest:
		e.Kind = KindBadRequest
		e.Message = serverMsg
	case http.StatusUnauthorized:
		e.Kind, e.Message = KindUnauthorized, "Invalid API key"
	case http.StatusPaymentRequired:
		e.Kind, e.Message = KindPaymentRequired, "Account billing issue"
	case http.StatusUnsupportedMediaType:
		e.Kind, e.Message = KindUnsupportedMedia, "Invalid content type"
	case http.StatusTooManyRequests:
		e.Kind, e.Message = KindRateLimited, "Rate limit exceeded"
	case http.StatusInternalServerError:
		e.Kind, e.Message = KindServerError, "Server error, please try again later"
	case http.StatusServiceUnavailable:
		e.Kind, e.Message = KindUnavailable, "Service temporarily unavailable"
	default:
		e.Kind = KindUnknown
		e.Message = serverMsg
		if e.Message != "" {
			e.Message = fmt.Sprintf("%s (status %d)", e.Message, status)
		}
	}
	if e.Message == "" {
		e.Message = fallback
	}
	return e
}
