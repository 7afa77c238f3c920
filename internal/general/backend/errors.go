package backend

import (
	"errors"
	"fmt"
	"net/http"

	"pickup-market/internal/domain/contact"
)

// ErrNetworkFailure matches every failed backend call: transport errors and non-2xx replies.
var ErrNetworkFailure = errors.New("backend request failed")

// APIError describes one failed backend call.
type APIError struct {
	Op         string // e.g. "contacts.confirm"
	StatusCode int    // 0 when the request never got a response
	Message    string // server-provided message, when any
	Err        error  // transport or decode error, when any
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	default:
		return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
}

// Unwrap lets errors.Is see ErrNetworkFailure, the transport cause and, for 409 replies,
// contact.ErrConflictingState.
func (e *APIError) Unwrap() []error {
	out := []error{ErrNetworkFailure}
	if e.StatusCode == http.StatusConflict {
		out = append(out, contact.ErrConflictingState)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Retryable reports whether repeating the same call may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
