package repositories

import (
	"context"
	"net/http"

	"example.com/backstage/services/erpgateway/internal/gateway"
	"example.com/backstage/services/erpgateway/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Journal records writes issued to the ERP
type Journal interface {
	Record(ctx context.Context, m *models.Modification) error
}

// NopJournal discards every record
type NopJournal struct{}

// Record implements Journal
func (NopJournal) Record(context.Context, *models.Modification) error { return nil }

// JournalRepository stores the modification journal
type JournalRepository struct {
	db *gorm.DB
}

// NewJournalRepository creates a new journal repository
func NewJournalRepository(db *gorm.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// Record inserts a journal row
func (r *JournalRepository) Record(ctx context.Context, m *models.Modification) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return errors.Wrap(err, "failed to record modification")
	}
	return nil
}

// Recent returns the newest journal rows for entity, newest first
func (r *JournalRepository) Recent(ctx context.Context, entity string, limit int) ([]models.Modification, error) {
	var rows []models.Modification
	err := r.db.WithContext(ctx).
		Where("entity = ?", entity).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list modifications")
	}
	return rows, nil
}

// NewModification builds the journal row for a write outcome
func NewModification(entity, key, method string, err error) *models.Modification {
	m := &models.Modification{
		ID:        uuid.New(),
		Entity:    entity,
		Key:       key,
		Method:    method,
		Succeeded: err == nil,
	}

	var modErr *gateway.ModificationError
	switch {
	case err == nil:
		m.StatusCode = http.StatusOK
	case errors.As(err, &modErr):
		m.StatusCode = modErr.StatusCode
		m.Message = modErr.Message
	default:
		m.Message = err.Error()
	}
	return m
}

// CheckpointRepository stores incremental sync checkpoints
type CheckpointRepository struct {
	db *gorm.DB
}

// NewCheckpointRepository creates a new checkpoint repository
func NewCheckpointRepository(db *gorm.DB) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

// Get returns the checkpoint of entity, or nil when none was saved yet
func (r *CheckpointRepository) Get(ctx context.Context, entity string) (*models.SyncCheckpoint, error) {
	var cp models.SyncCheckpoint
	err := r.db.WithContext(ctx).Where("entity = ?", entity).First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sync checkpoint")
	}
	return &cp, nil
}

// Save inserts or advances the checkpoint
func (r *CheckpointRepository) Save(ctx context.Context, cp *models.SyncCheckpoint) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entity"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_updated_at", "items_synced", "updated_at"}),
		}).
		Create(cp).Error
	if err != nil {
		return errors.Wrap(err, "failed to save sync checkpoint")
	}
	return nil
}
