package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"storyloom/pkg/domain"
)

const migrateLockID int64 = 52660187

// GormStore implements Store and LedgerStore using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&ProjectModel{},
			&AssetModel{},
			&BibleEntryModel{},
			&SnapshotModel{},
			&UsageBalanceModel{},
			&UsageEntryModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// withMigrationLock serializes migrations across replicas with a session
// advisory lock.
func withMigrationLock(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if err := db.Exec("SELECT pg_advisory_lock(?)", migrateLockID).Error; err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer db.Exec("SELECT pg_advisory_unlock(?)", migrateLockID)
	return fn(db)
}

// projects

func (s *GormStore) SaveProject(p domain.Project) error {
	model := ProjectModel{
		ID:        p.ID,
		OwnerID:   p.OwnerID,
		Title:     p.Title,
		Document:  p.Document,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error
}

func (s *GormStore) GetProject(id string) (domain.Project, bool, error) {
	var model ProjectModel
	err := s.db.First(&model, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Project{}, false, nil
	}
	if err != nil {
		return domain.Project{}, false, err
	}
	return toProject(model), true, nil
}

func (s *GormStore) ListProjectsByOwner(ownerID string) ([]domain.Project, error) {
	var models []ProjectModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("updated_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	projects := make([]domain.Project, 0, len(models))
	for _, m := range models {
		projects = append(projects, toProject(m))
	}
	return projects, nil
}

func (s *GormStore) DeleteProject(id string) error {
	return s.db.Delete(&ProjectModel{}, "id = ?", id).Error
}

func (s *GormStore) SetProjectDocument(id, document string) error {
	return s.db.Model(&ProjectModel{}).Where("id = ?", id).Updates(map[string]any{
		"document":   document,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (s *GormStore) AppendProjectDocument(id, text string) error {
	return s.db.Model(&ProjectModel{}).Where("id = ?", id).Updates(map[string]any{
		"document":   gorm.Expr("document || ?", text),
		"updated_at": time.Now().UTC(),
	}).Error
}

// assets

func (s *GormStore) SaveAsset(a domain.Asset) error {
	var metadata datatypes.JSON
	if len(a.Metadata) > 0 {
		raw, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("marshal asset metadata: %w", err)
		}
		metadata = raw
	}
	model := AssetModel{
		ID:         a.ID,
		ProjectID:  a.ProjectID,
		OwnerID:    a.OwnerID,
		Kind:       string(a.Kind),
		StorageKey: a.StorageKey,
		MimeType:   a.MimeType,
		SizeBytes:  a.SizeBytes,
		Metadata:   metadata,
		CreatedAt:  a.CreatedAt,
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error
}

func (s *GormStore) GetAsset(id string) (domain.Asset, bool, error) {
	var model AssetModel
	err := s.db.First(&model, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Asset{}, false, nil
	}
	if err != nil {
		return domain.Asset{}, false, err
	}
	return toAsset(model), true, nil
}

func (s *GormStore) ListAssetsByOwner(ownerID string) ([]domain.Asset, error) {
	var models []AssetModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	assets := make([]domain.Asset, 0, len(models))
	for _, m := range models {
		assets = append(assets, toAsset(m))
	}
	return assets, nil
}

func (s *GormStore) DeleteAsset(id string) error {
	return s.db.Delete(&AssetModel{}, "id = ?", id).Error
}

// bible entries

func (s *GormStore) SaveBibleEntry(e domain.BibleEntry) error {
	model := BibleEntryModel{
		ID:        e.ID,
		ProjectID: e.ProjectID,
		OwnerID:   e.OwnerID,
		Category:  e.Category,
		Name:      e.Name,
		Content:   e.Content,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error
}

func (s *GormStore) ListBibleEntriesByOwner(ownerID string) ([]domain.BibleEntry, error) {
	var models []BibleEntryModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]domain.BibleEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, domain.BibleEntry{
			ID:        m.ID,
			ProjectID: m.ProjectID,
			OwnerID:   m.OwnerID,
			Category:  m.Category,
			Name:      m.Name,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return entries, nil
}

func (s *GormStore) DeleteBibleEntry(id string) error {
	return s.db.Delete(&BibleEntryModel{}, "id = ?", id).Error
}

// version snapshots

func (s *GormStore) SaveSnapshot(v domain.VersionSnapshot) error {
	model := SnapshotModel{
		ID:        v.ID,
		ProjectID: v.ProjectID,
		OwnerID:   v.OwnerID,
		Label:     v.Label,
		Document:  v.Document,
		CreatedAt: v.CreatedAt,
	}
	return s.db.Create(&model).Error
}

func (s *GormStore) ListSnapshotsByOwner(ownerID string) ([]domain.VersionSnapshot, error) {
	var models []SnapshotModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	snapshots := make([]domain.VersionSnapshot, 0, len(models))
	for _, m := range models {
		snapshots = append(snapshots, domain.VersionSnapshot{
			ID:        m.ID,
			ProjectID: m.ProjectID,
			OwnerID:   m.OwnerID,
			Label:     m.Label,
			Document:  m.Document,
			CreatedAt: m.CreatedAt,
		})
	}
	return snapshots, nil
}

// usage ledger

func (s *GormStore) GetUsage(userID string) (domain.UsageSnapshot, bool, error) {
	var model UsageBalanceModel
	err := s.db.First(&model, "user_id = ?", userID).Error
	if err == gorm.ErrRecordNotFound {
		return domain.UsageSnapshot{}, false, nil
	}
	if err != nil {
		return domain.UsageSnapshot{}, false, err
	}
	snapshot, err := toUsageSnapshot(model)
	if err != nil {
		return domain.UsageSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func (s *GormStore) SaveUsage(snapshot domain.UsageSnapshot) error {
	model, err := fromUsageSnapshot(snapshot)
	if err != nil {
		return err
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error
}

func (s *GormStore) RecordUsage(snapshot domain.UsageSnapshot, entries ...domain.UsageEntry) error {
	model, err := fromUsageSnapshot(snapshot)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error; err != nil {
			return err
		}
		for _, entry := range entries {
			entryModel := UsageEntryModel{
				ID:          entry.ID,
				UserID:      entry.UserID,
				Capability:  string(entry.Capability),
				Amount:      entry.Amount,
				Description: entry.Description,
				CreatedAt:   entry.CreatedAt,
			}
			if err := tx.Create(&entryModel).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) ListUsageEntries(userID string, limit int) ([]domain.UsageEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []UsageEntryModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]domain.UsageEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, domain.UsageEntry{
			ID:          m.ID,
			UserID:      m.UserID,
			Capability:  domain.Capability(m.Capability),
			Amount:      m.Amount,
			Description: m.Description,
			CreatedAt:   m.CreatedAt,
		})
	}
	return entries, nil
}

func toProject(m ProjectModel) domain.Project {
	return domain.Project{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Title:     m.Title,
		Document:  m.Document,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toAsset(m AssetModel) domain.Asset {
	asset := domain.Asset{
		ID:         m.ID,
		ProjectID:  m.ProjectID,
		OwnerID:    m.OwnerID,
		Kind:       domain.AssetKind(m.Kind),
		StorageKey: m.StorageKey,
		MimeType:   m.MimeType,
		SizeBytes:  m.SizeBytes,
		CreatedAt:  m.CreatedAt,
	}
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &asset.Metadata)
	}
	return asset
}

func toUsageSnapshot(m UsageBalanceModel) (domain.UsageSnapshot, error) {
	snapshot := domain.UsageSnapshot{
		UserID:   m.UserID,
		Tier:     domain.SubscriptionTier(m.Tier),
		Balances: map[domain.Capability]int64{},
	}
	if len(m.Balances) > 0 {
		if err := json.Unmarshal(m.Balances, &snapshot.Balances); err != nil {
			return domain.UsageSnapshot{}, fmt.Errorf("unmarshal balances: %w", err)
		}
	}
	return snapshot, nil
}

func fromUsageSnapshot(snapshot domain.UsageSnapshot) (UsageBalanceModel, error) {
	raw, err := json.Marshal(snapshot.Balances)
	if err != nil {
		return UsageBalanceModel{}, fmt.Errorf("marshal balances: %w", err)
	}
	return UsageBalanceModel{
		UserID:    snapshot.UserID,
		Tier:      string(snapshot.Tier),
		Balances:  raw,
		UpdatedAt: time.Now().UTC(),
	}, nil
}
