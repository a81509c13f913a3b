package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Candidate is one model endpoint with its own attempt budget. Candidates
// expected to chew through heavy media (long-form video attachments) get
// longer timeouts.
type Candidate struct {
	Model   string        `json:"model"`
	Timeout time.Duration `json:"timeout"`
}

// GenerateFunc performs one provider call against the named model.
type GenerateFunc[T any] func(ctx context.Context, model string) (T, error)

type attemptResult[T any] struct {
	completion T
	err        error
}

// RunWithFallback tries candidates strictly in order and returns the first
// success. Each attempt races the provider call against the candidate's
// timer; a fired timer abandons the attempt (the in-flight request is not
// cancelled at the transport, merely no longer awaited) and counts as a
// retryable failure. Retryable failures advance to the next candidate;
// any terminal failure aborts immediately. Once a candidate succeeds no
// later candidate is ever consulted.
func RunWithFallback[T any](ctx context.Context, candidates []Candidate, call GenerateFunc[T]) (T, error) {
	var zero T
	if len(candidates) == 0 {
		return zero, fmt.Errorf("no model candidates configured")
	}

	var lastErr error
	for _, candidate := range candidates {
		result, err := runAttempt(ctx, candidate, call)
		if err == nil {
			slog.Info("model candidate served request", "model", candidate.Model)
			return result, nil
		}

		class := Classify(err)
		if !class.Retryable() {
			return zero, fmt.Errorf("model %s: %w", candidate.Model, err)
		}
		slog.Warn("model candidate failed, advancing",
			"model", candidate.Model,
			"class", class.String(),
			"err", err)
		lastErr = err
	}
	return zero, fmt.Errorf("%w: %w", ErrAllCandidatesExhausted, lastErr)
}

func runAttempt[T any](ctx context.Context, candidate Candidate, call GenerateFunc[T]) (T, error) {
	var zero T
	// Buffered so the abandoned goroutine can finish and be collected even
	// after the timer has won the race.
	results := make(chan attemptResult[T], 1)
	go func() {
		completion, err := call(ctx, candidate.Model)
		results <- attemptResult[T]{completion: completion, err: err}
	}()

	timeout := candidate.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		return res.completion, res.err
	case <-timer.C:
		return zero, fmt.Errorf("%w after %s: %s", ErrAttemptTimeout, timeout, candidate.Model)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
