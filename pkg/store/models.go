package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type ProjectModel struct {
	ID        string `gorm:"primaryKey"`
	OwnerID   string `gorm:"not null;index"`
	Title     string `gorm:"not null"`
	Document  string `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type AssetModel struct {
	ID         string `gorm:"primaryKey"`
	ProjectID  string `gorm:"not null;index"`
	OwnerID    string `gorm:"not null;index"`
	Kind       string `gorm:"not null"`
	StorageKey string
	MimeType   string
	SizeBytes  int64
	Metadata   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"not null;index"`
}

type BibleEntryModel struct {
	ID        string `gorm:"primaryKey"`
	ProjectID string `gorm:"not null;index"`
	OwnerID   string `gorm:"not null;index"`
	Category  string `gorm:"not null"`
	Name      string `gorm:"not null"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type SnapshotModel struct {
	ID        string `gorm:"primaryKey"`
	ProjectID string `gorm:"not null;index"`
	OwnerID   string `gorm:"not null;index"`
	Label     string
	Document  string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;index"`
}

type UsageBalanceModel struct {
	UserID    string `gorm:"primaryKey"`
	Tier      string `gorm:"not null"`
	Balances  datatypes.JSON `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

type UsageEntryModel struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"not null;index"`
	Capability  string `gorm:"not null"`
	Amount      int64  `gorm:"not null"`
	Description string
	CreatedAt   time.Time `gorm:"not null;index"`
}
