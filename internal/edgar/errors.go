package edgar

import (
	"errors"
	"fmt"
)

// ConfigError indicates an invalid client configuration, most commonly a
// User-Agent without the contact email the SEC requires. Fatal, never
// retried, surfaced at construction time.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// NotFoundError indicates the requested CIK or resource does not exist
// upstream. Fatal for the request, never retried.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.URL)
}

// RateLimitError indicates upstream throttling (403 or 429). Retryable, and
// also signals the adaptive limiter to slow down.
type RateLimitError struct {
	StatusCode int
	URL        string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (status %d): %s", e.StatusCode, e.URL)
}

// ServerError indicates a transient upstream fault: 5xx responses, request
// timeouts, and transport failures. Retryable.
type ServerError struct {
	StatusCode int
	URL        string
	Err        error
}

func (e *ServerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("server error: %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("server error (status %d): %s", e.StatusCode, e.URL)
}

func (e *ServerError) Unwrap() error { return e.Err }

// RetryExhaustedError wraps the last retryable error after the attempt cap
// is reached.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// isKind reports whether err has a T anywhere in its chain.
func isKind[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// retryable reports whether an error class is worth another attempt.
// Rate-limit rejections and server faults are transient; everything else
// (not found, configuration, parse errors) is permanent.
func retryable(err error) bool {
	var rl *RateLimitError
	var se *ServerError
	return errors.As(err, &rl) || errors.As(err, &se)
}
