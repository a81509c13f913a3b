package store

import "storyloom/pkg/domain"

// Store defines persistence for workspace entities: projects, render
// assets, story-bible entries, and version snapshots.
type Store interface {
	// projects
	SaveProject(domain.Project) error
	GetProject(id string) (domain.Project, bool, error)
	ListProjectsByOwner(ownerID string) ([]domain.Project, error)
	DeleteProject(id string) error
	SetProjectDocument(id, document string) error
	AppendProjectDocument(id, text string) error

	// assets
	SaveAsset(domain.Asset) error
	GetAsset(id string) (domain.Asset, bool, error)
	ListAssetsByOwner(ownerID string) ([]domain.Asset, error)
	DeleteAsset(id string) error

	// bible entries
	SaveBibleEntry(domain.BibleEntry) error
	ListBibleEntriesByOwner(ownerID string) ([]domain.BibleEntry, error)
	DeleteBibleEntry(id string) error

	// version snapshots
	SaveSnapshot(domain.VersionSnapshot) error
	ListSnapshotsByOwner(ownerID string) ([]domain.VersionSnapshot, error)
}

// LedgerStore persists the usage ledger: one cached balance row per user
// plus the append-only entry log. RecordUsage writes a balance mutation and
// its paired entries in one transaction so the cache and the log can never
// drift apart.
type LedgerStore interface {
	GetUsage(userID string) (domain.UsageSnapshot, bool, error)
	SaveUsage(domain.UsageSnapshot) error
	RecordUsage(snapshot domain.UsageSnapshot, entries ...domain.UsageEntry) error
	// ListUsageEntries returns entries most-recent-first.
	ListUsageEntries(userID string, limit int) ([]domain.UsageEntry, error)
}
