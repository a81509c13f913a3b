package domain

import "time"

// SubscriptionTier is a plan level. Tiers and their limits are static
// configuration; only ledger balances change at runtime.
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierScribe     SubscriptionTier = "scribe"
	TierAuteur     SubscriptionTier = "auteur"
	TierShowrunner SubscriptionTier = "showrunner"
)

// Capability names a metered resource.
type Capability string

const (
	CapabilityVideo        Capability = "video"
	CapabilityImage        Capability = "image"
	CapabilityVoiceMinutes Capability = "voiceMinutes"
	CapabilityAudioChars   Capability = "audioChars"
)

// Capabilities lists every metered capability in a stable order.
var Capabilities = []Capability{CapabilityVideo, CapabilityImage, CapabilityVoiceMinutes, CapabilityAudioChars}

/// Limits describes what a tier grants: initial per-capability balances,
// per-operation caps, and boolean feature gates.
type Limits struct {
	InitialBalance map[Capability]int64 `json:"initialBalance"`
	MaxPerOp       map[Capability]int64 `json:"maxPerOp"`

	HasVoiceAssistant bool `json:"hasVoiceAssistant"`
	HasEnsembleCast   bool `json:"hasEnsembleCast"`
	HasAudioStudio    bool `json:"hasAudioStudio"`
	HasBible          bool `json:"hasBible"`
	HasVeo            bool `json:"hasVeo"`
}

// UsageEntry is one signed ledger record. Amount is negative for
// consumption and positive for grants.
type UsageEntry struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Capability  Capability `json:"capability"`
	Amount      int64      `json:"amount"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// UsageSnapshot is the per-user ledger state surfaced to clients.
type UsageSnapshot struct {
	UserID   string               `json:"userId"`
	Tier     SubscriptionTier     `json:"tier"`
	Balances map[Capability]int64 `json:"balances"`
}

// VoiceSettings holds per-character delivery instructions for synthesis.
type VoiceSettings struct {
	Persona string `json:"persona,omitempty"`
	Style   string `json:"style,omitempty"`
	Pacing  string `json:"pacing,omitempty"`
	Accent  string `json:"accent,omitempty"`
}

// SpeakerDirective binds one character to a synthesis voice. A session
// carries one directive (single voice) or up to two (multi voice).
type SpeakerDirective struct {
	CharacterName string        `json:"characterName"`
	VoiceID       string        `json:"voiceId"`
	Settings      VoiceSettings `json:"settings"`
}

// Project is one writing project.
type Project struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	Document  string    `json:"document"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AssetKind distinguishes stored renders.
type AssetKind string

const (
	AssetAudio AssetKind = "audio"
	AssetImage AssetKind = "image"
	AssetVideo AssetKind = "video"
)

// Asset is a stored render (audio take, generated image or clip). The
// bytes live in object storage under StorageKey; this is the record.
type Asset struct {
	ID         string            `json:"id"`
	ProjectID  string            `json:"projectId"`
	OwnerID    string            `json:"ownerId"`
	Kind       AssetKind         `json:"kind"`
	StorageKey string            `json:"-"`
	MimeType   string            `json:"mimeType"`
	SizeBytes  int64             `json:"sizeBytes"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// BibleEntry is one story-bible card (character, location, lore).
type BibleEntry struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	OwnerID   string    `json:"ownerId"`
	Category  string    `json:"category"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VersionSnapshot preserves document text before a destructive rewrite.
type VersionSnapshot struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	OwnerID   string    `json:"ownerId"`
	Label     string    `json:"label"`
	Document  string    `json:"document"`
	CreatedAt time.Time `json:"createdAt"`
}

// Workspace is the bulk-loaded client bootstrap payload.
type Workspace struct {
	Projects  []Project         `json:"projects"`
	Assets    []Asset           `json:"assets"`
	Bible     []BibleEntry      `json:"bible"`
	Snapshots []VersionSnapshot `json:"snapshots"`
	Usage     *UsageSnapshot    `json:"usage,omitempty"`
}
