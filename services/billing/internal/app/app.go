package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storyloom/pkg/domain"
	"storyloom/pkg/store"
)

// DenyReason explains why the entitlement gate blocked an action.
type DenyReason string

const (
	DenyFreeTier        DenyReason = "free_tier"
	DenyFeatureDisabled DenyReason = "feature_disabled"
	DenyPerOpCap        DenyReason = "per_operation_cap_exceeded"
	DenyBalanceEmpty    DenyReason = "balance_exhausted"
)

// Decision is the gate outcome. A denial is not an error; it carries the
// reason so callers can show the right message.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
}

// Config wires ledger dependencies.
type Config struct {
	Store    store.LedgerStore
	Catalog  Catalog
	Notifier Notifier
}

// Ledger meters per-capability balances per user. Balances are cached on a
// snapshot; every balance mutation is paired with exactly one signed entry.
type Ledger struct {
	store    store.LedgerStore
	catalog  Catalog
	notifier Notifier
	now      func() time.Time
}

// New constructs the ledger.
func New(cfg Config) (*Ledger, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ledger requires a store")
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Ledger{
		store:    cfg.Store,
		catalog:  catalog,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Snapshot returns the user's usage snapshot, seeding a fresh one from the
// tier's initial balances on first touch. Once a snapshot exists the stored
// tier is authoritative over the token's tier claim.
func (l *Ledger) Snapshot(userID string, tier domain.SubscriptionTier) (domain.UsageSnapshot, error) {
	snapshot, ok, err := l.store.GetUsage(userID)
	if err != nil {
		return domain.UsageSnapshot{}, fmt.Errorf("load usage: %w", err)
	}
	if ok {
		return snapshot, nil
	}
	limits, ok := l.catalog[tier]
	if !ok {
		return domain.UsageSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}
	snapshot = domain.UsageSnapshot{
		UserID:   userID,
		Tier:     tier,
		Balances: map[domain.Capability]int64{},
	}
	for capability, initial := range limits.InitialBalance {
		snapshot.Balances[capability] = initial
	}
	if err := l.store.SaveUsage(snapshot); err != nil {
		return domain.UsageSnapshot{}, fmt.Errorf("seed usage: %w", err)
	}
	return snapshot, nil
}

// CheckLimit gates a chargeable action before it spends budget. A denial
// signals the upgrade prompt sink; it never mutates balances.
func (l *Ledger) CheckLimit(ctx context.Context, userID string, tier domain.SubscriptionTier, capability domain.Capability, amount int64) (Decision, error) {
	if !knownCapability(capability) {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownCapability, capability)
	}
	if amount <= 0 {
		return Decision{}, ErrAmountNotPositive
	}
	snapshot, err := l.Snapshot(userID, tier)
	if err != nil {
		return Decision{}, err
	}
	limits, ok := l.catalog[snapshot.Tier]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownTier, snapshot.Tier)
	}

	deny := func(reason DenyReason) Decision {
		l.notifier.PromptUpgrade(ctx, userID, capability, reason)
		return Decision{Allowed: false, Reason: reason}
	}

	if snapshot.Tier == domain.TierFree {
		return deny(DenyFreeTier), nil
	}
	if !featureGate(limits, capability) {
		return deny(DenyFeatureDisabled), nil
	}
	// The per-operation cap fails even when the balance would cover it.
	if capability == domain.CapabilityAudioChars {
		if maxPerOp, ok := limits.MaxPerOp[capability]; ok && amount > maxPerOp {
			return deny(DenyPerOpCap), nil
		}
	}
	if snapshot.Balances[capability] <= 0 {
		return deny(DenyBalanceEmpty), nil
	}
	return Decision{Allowed: true}, nil
}

// TrackUsage records consumption after a chargeable action: one
// negative-signed entry and a matching balance decrement. The balance is
// never clamped at zero; gating belongs in CheckLimit.
func (l *Ledger) TrackUsage(userID string, tier domain.SubscriptionTier, capability domain.Capability, amount int64, description string) (domain.UsageSnapshot, error) {
	if !knownCapability(capability) {
		return domain.UsageSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownCapability, capability)
	}
	if amount <= 0 {
		return domain.UsageSnapshot{}, ErrAmountNotPositive
	}
	snapshot, err := l.Snapshot(userID, tier)
	if err != nil {
		return domain.UsageSnapshot{}, err
	}
	snapshot.Balances[capability] -= amount
	entry := domain.UsageEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Capability:  capability,
		Amount:      -amount,
		Description: description,
		CreatedAt:   l.now(),
	}
	if err := l.store.RecordUsage(snapshot, entry); err != nil {
		return domain.UsageSnapshot{}, fmt.Errorf("record usage: %w", err)
	}
	return snapshot, nil
}

// Upgrade moves the user to a new tier, raising each balance to
// max(currentBalance, newTierInitial). Banked balance is never lost; each
// raised capability gets one positive grant entry for the delta.
func (l *Ledger) Upgrade(userID string, currentTier, newTier domain.SubscriptionTier) (domain.UsageSnapshot, error) {
	limits, ok := l.catalog[newTier]
	if !ok {
		return domain.UsageSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownTier, newTier)
	}
	snapshot, err := l.Snapshot(userID, currentTier)
	if err != nil {
		return domain.UsageSnapshot{}, err
	}

	now := l.now()
	var grants []domain.UsageEntry
	for capability, initial := range limits.InitialBalance {
		current := snapshot.Balances[capability]
		if initial <= current {
			continue
		}
		snapshot.Balances[capability] = initial
		grants = append(grants, domain.UsageEntry{
			ID:          uuid.NewString(),
			UserID:      userID,
			Capability:  capability,
			Amount:      initial - current,
			Description: fmt.Sprintf("upgrade grant (%s)", newTier),
			CreatedAt:   now,
		})
	}
	snapshot.Tier = newTier
	if err := l.store.RecordUsage(snapshot, grants...); err != nil {
		return domain.UsageSnapshot{}, fmt.Errorf("record upgrade: %w", err)
	}
	return snapshot, nil
}

// History returns ledger entries, most recent first.
func (l *Ledger) History(userID string, limit int) ([]domain.UsageEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return l.store.ListUsageEntries(userID, limit)
}

func knownCapability(capability domain.Capability) bool {
	for _, c := range domain.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
