// Package errors provides shared error helpers for linkbio's HTTP clients.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MinErrorStatusCode is the lowest status treated as an error.
const MinErrorStatusCode = 400

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// HTTPError is a non-2xx response from a remote API.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP error (%d %s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, e.Status)
}

// ParseHTTPError returns nil for successful responses and an *HTTPError
// otherwise. PostgREST bodies ({"message","details","hint","code"}) and plain
// {"error"} bodies are both understood.
func ParseHTTPError(resp *http.Response) error {
	if resp.StatusCode < MinErrorStatusCode {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    fmt.Sprintf("read error body: %v", err),
		}
	}

	httpErr := &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
		Message:    string(body),
	}

	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Details string `json:"details"`
		Code    string `json:"code"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return httpErr
	}

	switch {
	case parsed.Message != "" && parsed.Code != "":
		httpErr.Message = fmt.Sprintf("%s (code %s)", parsed.Message, parsed.Code)
	case parsed.Message != "":
		httpErr.Message = parsed.Message
	case parsed.Error != "":
		httpErr.Message = parsed.Error
	}
	return httpErr
}

// WrapWithContext prefixes err with context, or returns nil.
func WrapWithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// GetHTTPStatusCode extracts the status code from an *HTTPError anywhere in
// err's chain.
func GetHTTPStatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}
