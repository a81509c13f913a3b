package ai

import (
	"errors"
	"fmt"
	"strings"
)

// APIError is the provider error envelope plus HTTP status. Classification
// happens here, at the gateway boundary; callers only ever see the resulting
// FailureClass and never re-inspect raw provider errors.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gemini api error: %s (%d %s)", e.Message, e.StatusCode, e.Status)
	}
	return fmt.Sprintf("gemini api error: %s (%d)", e.Message, e.StatusCode)
}

var (
	// ErrAttemptTimeout marks a single candidate attempt abandoned by its timer.
	ErrAttemptTimeout = errors.New("model attempt timed out")
	// ErrAllCandidatesExhausted reports that every candidate failed retryably.
	ErrAllCandidatesExhausted = errors.New("all model candidates exhausted")
	// ErrToolsWithGrounding rejects a request asking for both web grounding
	// and function tools; the provider forbids the combination in one call.
	ErrToolsWithGrounding = errors.New("grounding and function tools are mutually exclusive")
	// ErrEmptyCompletion reports a 200 response with no usable candidate.
	ErrEmptyCompletion = errors.New("empty completion")
)

// FailureClass buckets a provider failure for the fallback chain.
type FailureClass int

const (
	FailureTerminal FailureClass = iota
	FailureTimeout
	FailureOverloaded
	FailureContentTooLarge
)

func (c FailureClass) String() string {
	switch c {
	case FailureTimeout:
		return "timeout"
	case FailureOverloaded:
		return "overloaded"
	case FailureContentTooLarge:
		return "content-too-large"
	default:
		return "terminal"
	}
}

// Retryable reports whether the next candidate should be attempted.
func (c FailureClass) Retryable() bool {
	return c == FailureTimeout || c == FailureOverloaded || c == FailureContentTooLarge
}

// Classify maps a provider-call error onto a FailureClass using the fixed
// marker set: timer expiry, capacity markers (429/503, UNAVAILABLE,
// overloaded, RESOURCE_EXHAUSTED), and oversized-content markers. Anything
// else is terminal.
func Classify(err error) FailureClass {
	if err == nil {
		return FailureTerminal
	}
	if errors.Is(err, ErrAttemptTimeout) {
		return FailureTimeout
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 503:
			return FailureOverloaded
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return FailureTimeout
	case strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "rate limit"):
		return FailureOverloaded
	case strings.Contains(msg, "content too long"),
		strings.Contains(msg, "exceeds the maximum number of tokens"),
		strings.Contains(msg, "request payload size"):
		return FailureContentTooLarge
	default:
		return FailureTerminal
	}
}
