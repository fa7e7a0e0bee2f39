// Package gateway is the only path from QuickRizz to the external
// text-generation service.
//
// Every call is single-flight across the process: one exclusive slot is held
// for the whole call sequence (throttle wait, attempts and backoff sleeps).
// Before each attempt the gateway waits until the minimum interval since the
// start of the previous attempt has elapsed. Transient failures (HTTP 429,
// HTTP 5xx, transport errors and per-attempt timeouts) are retried with
// exponential backoff; a Retry-After hint from the service takes priority.
//
// Failure contract:
//   - transient failures that exhaust the retry budget resolve to ("", nil)
//     and are logged, so callers degrade to heuristics and recall;
//   - non-retryable failures (authentication, malformed request, an
//     undecodable success envelope) return immediately with an error.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedResponse is returned when the service answers 2xx with a body
// that cannot be decoded as a chat completion envelope.
var ErrMalformedResponse = errors.New("gateway: malformed response from generator")

// Role is the role of a chat message sent to the generator.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message in a generation request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single generation call.
type Request struct {
	// Messages is the prompt, system message first.
	Messages []Message
	// Temperature is the sampling temperature.
	Temperature float64
	// MaxTokens caps the completion length.
	MaxTokens int
	// Timeout bounds each attempt. Defaults to DefaultTimeout when zero.
	Timeout time.Duration
}

// StatusError is a non-2xx answer from the generation service.
type StatusError struct {
	// Code is the HTTP status code.
	Code int
	// Body is the redacted, truncated response body.
	Body string
	// After is the parsed Retry-After hint, zero when absent.
	After time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway: HTTP %d: %s", e.Code, e.Body)
}

// RetryAfter implements retry.Hinted.
func (e *StatusError) RetryAfter() time.Duration { return e.After }

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// TransportError wraps a failure below HTTP (dial, reset, timeout, body
// read). Transport errors are always retried.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "gateway: transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	var te *TransportError
	return errors.As(err, &te)
}

// parseRetryAfter reads a Retry-After header given in whole seconds. HTTP
// dates and non-positive values are ignored.
func parseRetryAfter(h http.Header) time.Duration {
	ra := strings.TrimSpace(h.Get("Retry-After"))
	if ra == "" {
		return 0
	}
	secs, err := strconv.Atoi(ra)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
