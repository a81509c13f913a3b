package app

import (
	"context"
	"sync"
	"testing"

	"storyloom/pkg/domain"
	"storyloom/pkg/store"
)

type promptRecorder struct {
	mu      sync.Mutex
	prompts []DenyReason
}

func (p *promptRecorder) PromptUpgrade(_ context.Context, _ string, _ domain.Capability, reason DenyReason) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, reason)
}

func (p *promptRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

func newTestLedger(t *testing.T) (*Ledger, *promptRecorder) {
	t.Helper()
	rec := &promptRecorder{}
	ledger, err := New(Config{Store: store.NewMemoryStore(), Notifier: rec})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return ledger, rec
}

func TestFreeTierBlocksEveryGatedCapability(t *testing.T) {
	ledger, rec := newTestLedger(t)
	ctx := context.Background()

	for _, capability := range domain.Capabilities {
		decision, err := ledger.CheckLimit(ctx, "u1", domain.TierFree, capability, 1)
		if err != nil {
			t.Fatalf("check %s: %v", capability, err)
		}
		if decision.Allowed {
			t.Fatalf("free tier must block %s", capability)
		}
		if decision.Reason != DenyFreeTier {
			t.Fatalf("free tier denial reason = %s", decision.Reason)
		}
	}
	if rec.count() != len(domain.Capabilities) {
		t.Fatalf("each denial must signal one upgrade prompt, got %d", rec.count())
	}
}

func TestAudioPerOperationCapFailsDistinctly(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	// SCRIBE cap is 1000 characters per synthesis; the balance is far larger.
	decision, err := ledger.CheckLimit(ctx, "u1", domain.TierScribe, domain.CapabilityAudioChars, 1000)
	if err != nil {
		t.Fatalf("check at cap: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("amount at cap must pass, denied with %s", decision.Reason)
	}

	decision, err = ledger.CheckLimit(ctx, "u1", domain.TierScribe, domain.CapabilityAudioChars, 1001)
	if err != nil {
		t.Fatalf("check above cap: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("amount above cap must fail")
	}
	if decision.Reason != DenyPerOpCap {
		t.Fatalf("cap-exceeded must be distinct from exhaustion, got %s", decision.Reason)
	}
}

func TestBalanceExhaustionReason(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	// Drain the image balance below zero, then check.
	if _, err := ledger.TrackUsage("u1", domain.TierScribe, domain.CapabilityImage, 10, "storyboard"); err != nil {
		t.Fatalf("track: %v", err)
	}
	decision, err := ledger.CheckLimit(ctx, "u1", domain.TierScribe, domain.CapabilityImage, 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if decision.Allowed || decision.Reason != DenyBalanceEmpty {
		t.Fatalf("expected balance exhaustion, got %+v", decision)
	}
}

func TestFeatureFlagGate(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	// Video requires the Veo flag; SCRIBE and AUTEUR lack it.
	decision, err := ledger.CheckLimit(ctx, "u1", domain.TierAuteur, domain.CapabilityVideo, 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if decision.Allowed || decision.Reason != DenyFeatureDisabled {
		t.Fatalf("expected feature gate denial, got %+v", decision)
	}

	decision, err = ledger.CheckLimit(ctx, "u2", domain.TierShowrunner, domain.CapabilityVideo, 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("showrunner video must pass, denied with %s", decision.Reason)
	}
}

func TestTrackUsageAppendsOnePairedEntry(t *testing.T) {
	ledger, _ := newTestLedger(t)

	snapshot, err := ledger.TrackUsage("u1", domain.TierScribe, domain.CapabilityImage, 3, "cover art")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	// SCRIBE starts with 10 image credits.
	if snapshot.Balances[domain.CapabilityImage] != 7 {
		t.Fatalf("balance = %d, want 7", snapshot.Balances[domain.CapabilityImage])
	}

	entries, err := ledger.History("u1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history length = %d, want exactly 1", len(entries))
	}
	if entries[0].Amount != -3 {
		t.Fatalf("entry amount = %d, want -3", entries[0].Amount)
	}
	if entries[0].Description != "cover art" {
		t.Fatalf("entry description = %q", entries[0].Description)
	}
}

func TestTrackUsageNeverClamps(t *testing.T) {
	ledger, _ := newTestLedger(t)

	if _, err := ledger.TrackUsage("u1", domain.TierScribe, domain.CapabilityImage, 8, "batch 1"); err != nil {
		t.Fatalf("track: %v", err)
	}
	snapshot, err := ledger.TrackUsage("u1", domain.TierScribe, domain.CapabilityImage, 8, "batch 2")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if snapshot.Balances[domain.CapabilityImage] != -6 {
		t.Fatalf("balance = %d, want -6 (no clamping)", snapshot.Balances[domain.CapabilityImage])
	}
}

func TestUpgradeRaisesToMaxOfCurrentAndInitial(t *testing.T) {
	ledger, _ := newTestLedger(t)

	// Spend SCRIBE image credits down to 2.
	if _, err := ledger.TrackUsage("u1", domain.TierScribe, domain.CapabilityImage, 8, "drafts"); err != nil {
		t.Fatalf("track: %v", err)
	}
	snapshot, err := ledger.Upgrade("u1", domain.TierScribe, domain.TierAuteur)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if snapshot.Tier != domain.TierAuteur {
		t.Fatalf("tier = %s, want AUTEUR", snapshot.Tier)
	}
	if snapshot.Balances[domain.CapabilityImage] != 50 {
		t.Fatalf("balance = %d, want AUTEUR initial 50", snapshot.Balances[domain.CapabilityImage])
	}

	// A banked balance above the tier initial survives a re-select.
	snapshot.Balances[domain.CapabilityImage] = 80
	if _, _, err := ledger.store.GetUsage("u1"); err != nil {
		t.Fatalf("get usage: %v", err)
	}
	if err := ledger.store.SaveUsage(snapshot); err != nil {
		t.Fatalf("save usage: %v", err)
	}
	snapshot, err = ledger.Upgrade("u1", domain.TierAuteur, domain.TierAuteur)
	if err != nil {
		t.Fatalf("re-select: %v", err)
	}
	if snapshot.Balances[domain.CapabilityImage] != 80 {
		t.Fatalf("balance = %d, want banked 80 preserved", snapshot.Balances[domain.CapabilityImage])
	}
}

func TestUpgradeRecordsPositiveGrantEntries(t *testing.T) {
	ledger, _ := newTestLedger(t)

	if _, err := ledger.Snapshot("u1", domain.TierScribe); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := ledger.Upgrade("u1", domain.TierScribe, domain.TierAuteur); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	entries, err := ledger.History("u1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected grant entries for raised balances")
	}
	for _, entry := range entries {
		if entry.Amount <= 0 {
			t.Fatalf("grant entry must be positive, got %d for %s", entry.Amount, entry.Capability)
		}
	}
}

func TestCheckLimitDoesNotMutateBalance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	before, err := ledger.Snapshot("u1", domain.TierAuteur)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if _, err := ledger.CheckLimit(ctx, "u1", domain.TierAuteur, domain.CapabilityImage, 5); err != nil {
		t.Fatalf("check: %v", err)
	}
	after, err := ledger.Snapshot("u1", domain.TierAuteur)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if before.Balances[domain.CapabilityImage] != after.Balances[domain.CapabilityImage] {
		t.Fatalf("check must not spend budget: %d -> %d",
			before.Balances[domain.CapabilityImage], after.Balances[domain.CapabilityImage])
	}
}

func TestStoredTierWinsOverTokenClaim(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.Upgrade("u1", domain.TierFree, domain.TierScribe); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	// A stale FREE claim on the token must not re-block the user.
	decision, err := ledger.CheckLimit(ctx, "u1", domain.TierFree, domain.CapabilityImage, 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("stored tier must be authoritative, denied with %s", decision.Reason)
	}
}
