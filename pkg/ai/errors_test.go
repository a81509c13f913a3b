package ai

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyCapacityMarkers(t *testing.T) {
	cases := []error{
		&APIError{StatusCode: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"},
		&APIError{StatusCode: 503, Status: "UNAVAILABLE", Message: "try later"},
		errors.New("the model is overloaded"),
		errors.New("rpc error: code = Unavailable"),
		errors.New("RESOURCE_EXHAUSTED: slow down"),
	}
	for _, err := range cases {
		if class := Classify(err); class != FailureOverloaded {
			t.Fatalf("Classify(%v) = %s, want overloaded", err, class)
		}
	}
}

func TestClassifyTimeoutMarkers(t *testing.T) {
	cases := []error{
		fmt.Errorf("attempt: %w", ErrAttemptTimeout),
		errors.New("context deadline exceeded"),
		errors.New("Client.Timeout exceeded while awaiting headers"),
	}
	for _, err := range cases {
		if class := Classify(err); class != FailureTimeout {
			t.Fatalf("Classify(%v) = %s, want timeout", err, class)
		}
	}
}

func TestClassifyContentTooLarge(t *testing.T) {
	cases := []error{
		&APIError{StatusCode: 400, Message: "content too long for model"},
		errors.New("input exceeds the maximum number of tokens"),
		errors.New("request payload size limit reached"),
	}
	for _, err := range cases {
		class := Classify(err)
		if class != FailureContentTooLarge {
			t.Fatalf("Classify(%v) = %s, want content-too-large", err, class)
		}
		if !class.Retryable() {
			t.Fatalf("content-too-large must advance to the next candidate")
		}
	}
}

func TestClassifyTerminal(t *testing.T) {
	cases := []error{
		&APIError{StatusCode: 400, Status: "INVALID_ARGUMENT", Message: "bad schema"},
		&APIError{StatusCode: 401, Status: "UNAUTHENTICATED", Message: "bad key"},
		&APIError{StatusCode: 404, Status: "NOT_FOUND", Message: "unknown model"},
		errors.New("some other failure"),
	}
	for _, err := range cases {
		class := Classify(err)
		if class != FailureTerminal {
			t.Fatalf("Classify(%v) = %s, want terminal", err, class)
		}
		if class.Retryable() {
			t.Fatalf("terminal failures must not retry")
		}
	}
}
