package app

import "errors"

var (
	ErrTranscriptRequired = errors.New("transcript is required")
	ErrNoVoices           = errors.New("at least one speaker directive is required")
)

// EntitlementError carries the billing gate denial reason.
type EntitlementError struct {
	Reason string
}

func (e *EntitlementError) Error() string {
	return "entitlement denied: " + e.Reason
}

// SynthesisError wraps the provider failure that survived the repair path.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return "synthesis failed: " + e.Err.Error()
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}
