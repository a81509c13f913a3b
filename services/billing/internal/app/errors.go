package app

import "errors"

var (
	ErrUnknownTier       = errors.New("unknown subscription tier")
	ErrUnknownCapability = errors.New("unknown capability")
	ErrAmountNotPositive = errors.New("amount must be positive")
)
