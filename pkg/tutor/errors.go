package tutor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrNotConfigured is returned when no backend URL is configured.
	ErrNotConfigured = errors.New("tutor backend not configured")

	// ErrUpstream wraps every failure reported by or on the way to the
	// backend. Callers test for it with errors.Is.
	ErrUpstream = errors.New("tutor backend error")

	// ErrEmptyResponse is returned when the backend answers without any
	// candidate text. It wraps ErrUpstream.
	ErrEmptyResponse = fmt.Errorf("%w: empty response", ErrUpstream)
)

// BackendError describes a non-2xx answer from the backend.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tutor backend returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("tutor backend returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is(err, ErrUpstream) match backend errors.
func (e *BackendError) Unwrap() error { return ErrUpstream }

// mapHTTPError converts a non-2xx response into a BackendError, pulling the
// message out of the Google error envelope when one is present.
func mapHTTPError(resp *http.Response) *BackendError {
	return &BackendError{
		StatusCode: resp.StatusCode,
		Message:    extractErrorMessage(resp.Body),
	}
}

// mapNetworkError wraps a transport failure (refused connection, timeout,
// DNS failure).
func mapNetworkError(err error) error {
	return fmt.Errorf("%w: connection error: %s", ErrUpstream, err.Error())
}

func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp errorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	return ""
}

// statusLabel returns the metrics label for a finished backend call.
func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var be *BackendError
	if errors.As(err, &be) {
		switch {
		case be.StatusCode == http.StatusTooManyRequests:
			return "rate_limited"
		case be.StatusCode >= 500:
			return "5xx"
		default:
			return "4xx"
		}
	}
	if errors.Is(err, ErrEmptyResponse) {
		return "empty"
	}
	return "error"
}
