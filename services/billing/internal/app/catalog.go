package app

import "storyloom/pkg/domain"

// Catalog is the static per-tier limits table. It is read-only input to the
// ledger; only balances mutate at runtime.
type Catalog map[domain.SubscriptionTier]domain.Limits

// DefaultCatalog returns the production tier table.
func DefaultCatalog() Catalog {
	return Catalog{
		domain.TierFree: {
			InitialBalance: map[domain.Capability]int64{},
			MaxPerOp:       map[domain.Capability]int64{},
		},
		domain.TierScribe: {
			InitialBalance: map[domain.Capability]int64{
				domain.CapabilityImage:        10,
				domain.CapabilityVoiceMinutes: 30,
				domain.CapabilityAudioChars:   20000,
			},
			MaxPerOp: map[domain.Capability]int64{
				domain.CapabilityAudioChars: 1000,
			},
			HasVoiceAssistant: true,
			HasAudioStudio:    true,
			HasBible:          true,
		},
		domain.TierAuteur: {
			InitialBalance: map[domain.Capability]int64{
				domain.CapabilityImage:        50,
				domain.CapabilityVoiceMinutes: 120,
				domain.CapabilityAudioChars:   100000,
			},
			MaxPerOp: map[domain.Capability]int64{
				domain.CapabilityAudioChars: 5000,
			},
			HasVoiceAssistant: true,
			HasEnsembleCast:   true,
			HasAudioStudio:    true,
			HasBible:          true,
		},
		domain.TierShowrunner: {
			InitialBalance: map[domain.Capability]int64{
				domain.CapabilityVideo:        25,
				domain.CapabilityImage:        200,
				domain.CapabilityVoiceMinutes: 600,
				domain.CapabilityAudioChars:   500000,
			},
			MaxPerOp: map[domain.Capability]int64{
				domain.CapabilityAudioChars: 20000,
			},
			HasVoiceAssistant: true,
			HasEnsembleCast:   true,
			HasAudioStudio:    true,
			HasBible:          true,
			HasVeo:            true,
		},
	}
}

// featureGate returns whether the tier's feature flag covering the
// capability is enabled. Image generation has no dedicated flag; every paid
// tier carries it.
func featureGate(limits domain.Limits, capability domain.Capability) bool {
	switch capability {
	case domain.CapabilityVideo:
		return limits.HasVeo
	case domain.CapabilityVoiceMinutes:
		return limits.HasVoiceAssistant
	case domain.CapabilityAudioChars:
		return limits.HasAudioStudio
	default:
		return true
	}
}
