package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunWithFallbackTriesCandidatesInOrder(t *testing.T) {
	candidates := []Candidate{
		{Model: "model-a", Timeout: time.Second},
		{Model: "model-b", Timeout: time.Second},
		{Model: "model-c", Timeout: time.Second},
	}
	var attempts []string
	call := func(_ context.Context, model string) (*TextCompletion, error) {
		attempts = append(attempts, model)
		if model == "model-c" {
			return &TextCompletion{Text: "ok"}, nil
		}
		return nil, &APIError{StatusCode: 503, Status: "UNAVAILABLE", Message: "overloaded"}
	}

	result, err := RunWithFallback(context.Background(), candidates, call)
	if err != nil {
		t.Fatalf("run with fallback: %v", err)
	}
	if result.Text != "ok" {
		t.Fatalf("unexpected result text: %q", result.Text)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d: %v", len(attempts), attempts)
	}
	for i, model := range []string{"model-a", "model-b", "model-c"} {
		if attempts[i] != model {
			t.Fatalf("attempt %d hit %q, want %q", i, attempts[i], model)
		}
	}
}

func TestRunWithFallbackExhaustsAllRetryableCandidates(t *testing.T) {
	candidates := []Candidate{
		{Model: "model-a", Timeout: time.Second},
		{Model: "model-b", Timeout: time.Second},
	}
	calls := 0
	call := func(_ context.Context, _ string) (*TextCompletion, error) {
		calls++
		return nil, &APIError{StatusCode: 429, Message: "RESOURCE_EXHAUSTED"}
	}

	_, err := RunWithFallback(context.Background(), candidates, call)
	if !errors.Is(err, ErrAllCandidatesExhausted) {
		t.Fatalf("expected ErrAllCandidatesExhausted, got: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRunWithFallbackStopsOnTerminalError(t *testing.T) {
	candidates := []Candidate{
		{Model: "model-a", Timeout: time.Second},
		{Model: "model-b", Timeout: time.Second},
		{Model: "model-c", Timeout: time.Second},
	}
	terminal := &APIError{StatusCode: 400, Status: "INVALID_ARGUMENT", Message: "bad request"}
	calls := 0
	call := func(_ context.Context, model string) (*TextCompletion, error) {
		calls++
		if model == "model-b" {
			return nil, terminal
		}
		return nil, &APIError{StatusCode: 503, Message: "overloaded"}
	}

	_, err := RunWithFallback(context.Background(), candidates, call)
	if err == nil {
		t.Fatalf("expected terminal error")
	}
	if errors.Is(err, ErrAllCandidatesExhausted) {
		t.Fatalf("terminal error must not report exhaustion: %v", err)
	}
	if !errors.As(err, new(*APIError)) {
		t.Fatalf("expected wrapped APIError, got: %v", err)
	}
	if calls != 2 {
		t.Fatalf("candidate after terminal failure must not be invoked, got %d calls", calls)
	}
}

func TestRunWithFallbackTimesOutSlowCandidate(t *testing.T) {
	candidates := []Candidate{
		{Model: "model-slow", Timeout: 20 * time.Millisecond},
		{Model: "model-fast", Timeout: time.Second},
	}
	call := func(ctx context.Context, model string) (*TextCompletion, error) {
		if model == "model-slow" {
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
			}
			return nil, errors.New("should not be awaited")
		}
		return &TextCompletion{Text: "fast"}, nil
	}

	start := time.Now()
	result, err := RunWithFallback(context.Background(), candidates, call)
	if err != nil {
		t.Fatalf("run with fallback: %v", err)
	}
	if result.Text != "fast" {
		t.Fatalf("unexpected result text: %q", result.Text)
	}
	if elapsed := time.Since(start); elapsed >= 500*time.Millisecond {
		t.Fatalf("slow candidate was awaited past its timer: %s", elapsed)
	}
}

func TestRunWithFallbackAllTimeoutsReportsExhaustionWithTimeout(t *testing.T) {
	candidates := []Candidate{
		{Model: "model-a", Timeout: 10 * time.Millisecond},
		{Model: "model-b", Timeout: 10 * time.Millisecond},
	}
	call := func(ctx context.Context, _ string) (*TextCompletion, error) {
		<-time.After(200 * time.Millisecond)
		return nil, errors.New("late")
	}

	_, err := RunWithFallback(context.Background(), candidates, call)
	if !errors.Is(err, ErrAllCandidatesExhausted) {
		t.Fatalf("expected ErrAllCandidatesExhausted, got: %v", err)
	}
	if !errors.Is(err, ErrAttemptTimeout) {
		t.Fatalf("expected last failure to be a timeout, got: %v", err)
	}
}

func TestRunWithFallbackNoCandidates(t *testing.T) {
	_, err := RunWithFallback(context.Background(), nil, func(_ context.Context, _ string) (*TextCompletion, error) {
		t.Fatalf("call must not run without candidates")
		return nil, nil
	})
	if err == nil {
		t.Fatalf("expected error for empty candidate list")
	}
}
