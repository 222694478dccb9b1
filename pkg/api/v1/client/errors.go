package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vantagevision/vantage/internal/types"
)

// ErrorKind classifies API failures so callers can react without inspecting
// raw status codes.
type ErrorKind string

// Error kinds
const (
	// ErrKindValidation is a user-correctable rejection of the submitted
	// selection (400/404 on start). Never retried automatically.
	ErrKindValidation ErrorKind = "validation"
	// ErrKindPolicy is an expected rejection of a lifecycle request for a job
	// in the wrong state (400 on cancel/delete/retry). Not an anomaly.
	ErrKindPolicy ErrorKind = "policy"
	// ErrKindRateLimited is a 429, optionally carrying a server wait hint.
	ErrKindRateLimited ErrorKind = "rate_limited"
	// ErrKindStale means a previously valid reference no longer exists
	// server-side (404 on status or delete). Authoritative: the local
	// reference must be reset.
	ErrKindStale ErrorKind = "stale"
	// ErrKindNotReady means a completed job's artifact is not materialized
	// yet (400/404 on results). Soft, user-retryable.
	ErrKindNotReady ErrorKind = "not_ready"
	// ErrKindTransient covers timeouts, network failures, non-JSON bodies and
	// unexpected 5xx responses.
	ErrKindTransient ErrorKind = "transient"
)

// APIError is the normalized error for every non-2xx response and transport
// failure. All heterogeneous server error shapes are folded into this at the
// client boundary.
type APIError struct {
	Kind       ErrorKind
	StatusCode int           // zero for transport-level failures
	Message    string        // server-provided message when available
	RetryAfter time.Duration // rate-limit wait hint, zero when absent
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("api error (%s): %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("api error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// kindOf extracts the ErrorKind from an error chain, or "" if the error is
// not an APIError.
func kindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsValidation reports whether err is a user-correctable validation rejection
func IsValidation(err error) bool { return kindOf(err) == ErrKindValidation }

// IsPolicy reports whether err is an expected wrong-state rejection
func IsPolicy(err error) bool { return kindOf(err) == ErrKindPolicy }

// IsRateLimited reports whether err is a 429 rate limit
func IsRateLimited(err error) bool { return kindOf(err) == ErrKindRateLimited }

// IsStale reports whether err means the referenced entity no longer exists
func IsStale(err error) bool { return kindOf(err) == ErrKindStale }

// IsNotReady reports whether err means the artifact is not materialized yet
func IsNotReady(err error) bool { return kindOf(err) == ErrKindNotReady }

// IsTransient reports whether err is a network or unexpected server failure
func IsTransient(err error) bool { return kindOf(err) == ErrKindTransient }

// RetryAfterHint returns the server-provided wait hint from a rate-limit
// error, or zero.
func RetryAfterHint(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// transportError wraps a transport-level failure as a transient APIError
func transportError(err error) *APIError {
	return &APIError{Kind: ErrKindTransient, Message: err.Error()}
}

// newAPIError builds an APIError from a non-2xx response. The default kind
// mapping is 429 -> rate-limited and everything else -> transient; callers
// remap 400/404 per endpoint because their meaning depends on the operation
// (invalid selection on start, wrong-state policy on cancel, stale reference
// on status).
func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Kind:       ErrKindTransient,
		StatusCode: statusCode,
		Message:    string(body),
	}

	var errResp types.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		apiErr.Message = errResp.Error
		if errResp.RetryAfterSeconds > 0 {
			apiErr.RetryAfter = time.Duration(errResp.RetryAfterSeconds) * time.Second
		}
	}

	if statusCode == 429 {
		apiErr.Kind = ErrKindRateLimited
	}
	return apiErr
}

// remap rewrites the kind of an APIError for the given status codes. Other
// errors pass through untouched.
func remap(err error, kind ErrorKind, statusCodes ...int) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	for _, code := range statusCodes {
		if apiErr.StatusCode == code {
			apiErr.Kind = kind
			return apiErr
		}
	}
	return err
}
