package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
)

// Display messages.
const (
	FallbackMessage       = "Something went wrong. Please try again."
	TimeoutMessage        = "Request timed out. Please try again."
	NetworkMessage        = "Network error. Please check your connection."
	SessionExpiredMessage = "Your session has expired. Please log in again."
)

var (
	ErrSessionExpired = errors.New("session expired")
	ErrNoRefreshToken = errors.New("no refresh token")
)

// TransportError is a request that never produced an HTTP response.
type TransportError struct {
	Method  string
	URL     string
	Timeout bool
	Err     error
}

func newTransportError(method, url string, err error) *TransportError {
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
	return &TransportError{Method: method, URL: url, Timeout: timeout, Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Message is a human readable description of the failure.
func (e *TransportError) Message() string {
	if e.Timeout {
		return TimeoutMessage
	}
	return NetworkMessage
}

// APIError is an HTTP error response from the API.
type APIError struct {
	StatusCode  int
	Message     string
	FieldErrors map[string]string // first message per field, for validation failures
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether the API rejected the credentials.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// SessionExpiredError is returned when a 401 could not be recovered by refreshing the session.
type SessionExpiredError struct {
	Err error
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("%v: %v", ErrSessionExpired, e.Err)
}

func (e *SessionExpiredError) Unwrap() error {
	return e.Err
}

func (e *SessionExpiredError) Is(target error) bool {
	return target == ErrSessionExpired
}

// Message flattens err to a string suitable for showing to the user.
func Message(err error) string {
	var (
		apiErr       *APIError
		transportErr *TransportError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionExpired):
		return SessionExpiredMessage
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.As(err, &transportErr):
		return transportErr.Message()
	default:
		return FallbackMessage
	}
}

type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

// newAPIError prefers the first validation message, then the body message, then a fallback.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: FallbackMessage}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return apiErr
	}

	fields, first := parseFieldErrors(eb.Errors)
	if len(fields) > 0 {
		apiErr.FieldErrors = fields
	}

	switch {
	case first != "":
		apiErr.Message = first
	case strings.TrimSpace(eb.Message) != "":
		apiErr.Message = eb.Message
	case strings.TrimSpace(eb.Error) != "":
		apiErr.Message = eb.Error
	}
	return apiErr
}

type fieldErrorItem struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
	Path    string `json:"path"`
	Param   string `json:"param"`
	Field   string `json:"field"`
}

// parseFieldErrors understands {"field": "msg"}, {"field": ["msg", ...]} and
// [{"msg"|"message", "path"|"param"|"field"}]. For maps, "first" is the alphabetically first field.
func parseFieldErrors(raw json.RawMessage) (map[string]string, string) {
	if isNull(raw) {
		return nil, ""
	}

	var byField map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byField); err == nil {
		fields := make(map[string]string, len(byField))
		names := make([]string, 0, len(byField))
		for name, v := range byField {
			if msg := firstMessage(v); msg != "" {
				fields[name] = msg
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return nil, ""
		}
		sort.Strings(names)
		return fields, fields[names[0]]
	}

	var items []fieldErrorItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, ""
	}
	fields := make(map[string]string, len(items))
	first := ""
	for i, item := range items {
		msg := item.Msg
		if msg == "" {
			msg = item.Message
		}
		if msg == "" {
			continue
		}
		name := firstNonEmpty(item.Path, item.Param, item.Field, fmt.Sprintf("%d", i))
		if _, seen := fields[name]; !seen {
			fields[name] = msg
		}
		if first == "" {
			first = msg
		}
	}
	return fields, first
}

func firstMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, s := range list {
			if s != "" {
				return s
			}
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
