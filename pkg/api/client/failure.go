package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FailureKind distinguishes an unreachable API from one that answered with an error.
type FailureKind string

const (
	KindConnection FailureKind = "connection_error"
	KindHTTP       FailureKind = "http_error"
)

// Failure is the error returned by every Client call.
type Failure struct {
	Kind FailureKind
	// StatusCode is zero for connection errors and for requests refused locally.
	StatusCode int
	Message    string
	Err        error
}

func (f *Failure) Error() string {
	switch {
	case f.Kind == KindConnection:
		return "api unreachable: " + f.Message
	case f.StatusCode == 0:
		return "api request failed: " + f.Message
	case f.Message == "":
		return fmt.Sprintf("api request failed with status %d", f.StatusCode)
	default:
		return fmt.Sprintf("api request failed (%d): %s", f.StatusCode, f.Message)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Detail returns the "detail" field of a JSON error body when the API sent one, and
// the raw message otherwise.
func (f *Failure) Detail() string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal([]byte(f.Message), &payload); err != nil || payload.Detail == nil {
		return f.Message
	}
	switch d := payload.Detail.(type) {
	case string:
		return d
	case []any:
		msgs := make([]string, 0, len(d))
		for _, item := range d {
			if m, ok := item.(map[string]any); ok {
				if msg, ok := m["msg"].(string); ok {
					msgs = append(msgs, msg)
					continue
				}
			}
			b, _ := json.Marshal(item)
			msgs = append(msgs, string(b))
		}
		return strings.Join(msgs, "; ")
	default:
		b, _ := json.Marshal(d)
		return string(b)
	}
}

// ErrNotAuthenticated marks requests refused before sending because no token was
// available.
var ErrNotAuthenticated = errors.New("not authenticated")

func errNotAuthenticated() *Failure {
	return &Failure{
		Kind:       KindHTTP,
		StatusCode: http.StatusUnauthorized,
		Message:    ErrNotAuthenticated.Error(),
		Err:        ErrNotAuthenticated,
	}
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsConnectionError reports whether err means the API could not be reached.
func IsConnectionError(err error) bool {
	f, ok := AsFailure(err)
	return ok && f.Kind == KindConnection
}

// IsUnauthorized reports whether the API (or the client) refused the credentials.
func IsUnauthorized(err error) bool {
	f, ok := AsFailure(err)
	return ok && f.Kind == KindHTTP && (f.StatusCode == http.StatusUnauthorized || f.StatusCode == http.StatusForbidden)
}
