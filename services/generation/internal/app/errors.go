package app

import (
	"errors"

	"storyloom/pkg/ai"
)

var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrEntryNotFound    = errors.New("bible entry not found")
	ErrProjectForbidden = errors.New("project forbidden")
	ErrPromptRequired   = errors.New("prompt is required")
)

// EntitlementError carries the gate denial reason. It is a blocked outcome,
// not a provider failure; the upgrade prompt has already been signalled by
// the billing service.
type EntitlementError struct {
	Reason string
}

func (e *EntitlementError) Error() string {
	return "entitlement denied: " + e.Reason
}

// HumanMessage maps a provider failure to the string shown where generated
// content would have appeared. Raw provider errors never reach the user.
// Timeouts and content-too-large failures get the actionable narrower-scope
// message; capacity exhaustion asks the user to retry later.
func HumanMessage(err error) string {
	switch {
	case errors.Is(err, ai.ErrAttemptTimeout),
		ai.Classify(err) == ai.FailureContentTooLarge:
		return "That request looks too large to finish. Try again with a narrower scope."
	case errors.Is(err, ai.ErrAllCandidatesExhausted),
		ai.Classify(err).Retryable():
		return "The writing models are busy right now. Please try again in a moment."
	default:
		return "Something went wrong generating this content. Please try again."
	}
}
