package store

import (
	"maps"
	"sort"
	"sync"

	"storyloom/pkg/domain"
)

// MemoryStore is an in-memory Store and LedgerStore used by tests and
// local development.
type MemoryStore struct {
	mu        sync.RWMutex
	projects  map[string]domain.Project
	assets    map[string]domain.Asset
	bible     map[string]domain.BibleEntry
	snapshots map[string]domain.VersionSnapshot
	usage     map[string]domain.UsageSnapshot
	entries   map[string][]domain.UsageEntry
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects:  map[string]domain.Project{},
		assets:    map[string]domain.Asset{},
		bible:     map[string]domain.BibleEntry{},
		snapshots: map[string]domain.VersionSnapshot{},
		usage:     map[string]domain.UsageSnapshot{},
		entries:   map[string][]domain.UsageEntry{},
	}
}

func (s *MemoryStore) SaveProject(p domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	return nil
}

func (s *MemoryStore) GetProject(id string) (domain.Project, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	return p, ok, nil
}

func (s *MemoryStore) ListProjectsByOwner(ownerID string) ([]domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var projects []domain.Project
	for _, p := range s.projects {
		if p.OwnerID == ownerID {
			projects = append(projects, p)
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].UpdatedAt.After(projects[j].UpdatedAt) })
	return projects, nil
}

func (s *MemoryStore) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
	return nil
}

func (s *MemoryStore) SetProjectDocument(id, document string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil
	}
	p.Document = document
	s.projects[id] = p
	return nil
}

func (s *MemoryStore) AppendProjectDocument(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil
	}
	p.Document += text
	s.projects[id] = p
	return nil
}

func (s *MemoryStore) SaveAsset(a domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.ID] = a
	return nil
}

func (s *MemoryStore) GetAsset(id string) (domain.Asset, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	return a, ok, nil
}

func (s *MemoryStore) ListAssetsByOwner(ownerID string) ([]domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var assets []domain.Asset
	for _, a := range s.assets {
		if a.OwnerID == ownerID {
			assets = append(assets, a)
		}
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].CreatedAt.After(assets[j].CreatedAt) })
	return assets, nil
}

func (s *MemoryStore) DeleteAsset(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assets, id)
	return nil
}

func (s *MemoryStore) SaveBibleEntry(e domain.BibleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bible[e.ID] = e
	return nil
}

func (s *MemoryStore) ListBibleEntriesByOwner(ownerID string) ([]domain.BibleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []domain.BibleEntry
	for _, e := range s.bible {
		if e.OwnerID == ownerID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (s *MemoryStore) DeleteBibleEntry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bible, id)
	return nil
}

func (s *MemoryStore) SaveSnapshot(v domain.VersionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[v.ID] = v
	return nil
}

func (s *MemoryStore) ListSnapshotsByOwner(ownerID string) ([]domain.VersionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var snapshots []domain.VersionSnapshot
	for _, v := range s.snapshots {
		if v.OwnerID == ownerID {
			snapshots = append(snapshots, v)
		}
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt) })
	return snapshots, nil
}

func (s *MemoryStore) GetUsage(userID string) (domain.UsageSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.usage[userID]
	if !ok {
		return domain.UsageSnapshot{}, false, nil
	}
	return cloneSnapshot(snapshot), true, nil
}

func (s *MemoryStore) SaveUsage(snapshot domain.UsageSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[snapshot.UserID] = cloneSnapshot(snapshot)
	return nil
}

func (s *MemoryStore) RecordUsage(snapshot domain.UsageSnapshot, entries ...domain.UsageEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[snapshot.UserID] = cloneSnapshot(snapshot)
	for _, entry := range entries {
		// most-recent-first
		s.entries[entry.UserID] = append([]domain.UsageEntry{entry}, s.entries[entry.UserID]...)
	}
	return nil
}

func (s *MemoryStore) ListUsageEntries(userID string, limit int) ([]domain.UsageEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.entries[userID]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]domain.UsageEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func cloneSnapshot(snapshot domain.UsageSnapshot) domain.UsageSnapshot {
	clone := snapshot
	clone.Balances = maps.Clone(snapshot.Balances)
	return clone
}
