package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// SyncCheckpoint stores how far an incremental sync of an ERP entity has progressed
type SyncCheckpoint struct {
	Entity        string    `gorm:"primaryKey" json:"entity"`
	LastUpdatedAt time.Time `gorm:"not null" json:"last_updated_at"`
	ItemsSynced   int64     `gorm:"not null;default:0" json:"items_synced"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Modification records a write issued to the ERP
type Modification struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	Entity     string    `gorm:"not null;index" json:"entity"`
	Key        string    `json:"key"`
	Method     string    `gorm:"not null" json:"method"`
	Succeeded  bool      `gorm:"not null" json:"succeeded"`
	StatusCode int       `json:"status_code"`
	Message    string    `gorm:"type:text" json:"message"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&SyncCheckpoint{},
		&Modification{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
