// Package mutationlog stores pending mutations durably in a local SQLite
// database so queued work survives process restarts. Records are append
// and remove only; a queued mutation is never edited in place.
package mutationlog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/norvik-as/fieldops-api/internal/domain"
)

// Log is the durable, keyed storage of pending mutations
type Log struct {
	db *gorm.DB
}

// Open opens (or creates) the local log database at path and migrates
// the schema. Use ":memory:" for an ephemeral log.
func Open(path string) (*Log, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open mutation log: %w", err)
	}
	if err := db.AutoMigrate(&domain.QueuedMutation{}); err != nil {
		return nil, fmt.Errorf("failed to migrate mutation log: %w", err)
	}
	return &Log{db: db}, nil
}

// New wraps an already-open database (tests)
func New(db *gorm.DB) (*Log, error) {
	if err := db.AutoMigrate(&domain.QueuedMutation{}); err != nil {
		return nil, fmt.Errorf("failed to migrate mutation log: %w", err)
	}
	return &Log{db: db}, nil
}

// Append durably records one queued mutation
func (l *Log) Append(ctx context.Context, m *domain.QueuedMutation) error {
	if err := l.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to append mutation: %w", err)
	}
	return nil
}

// ListPending returns all queued mutations for the organization in FIFO
// order (created_at ascending, enqueue order as tie-break). FIFO matters:
// later mutations may depend on earlier ones on the same work order.
func (l *Log) ListPending(ctx context.Context, orgID string) ([]domain.QueuedMutation, error) {
	var out []domain.QueuedMutation
	err := l.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at ASC, rowid ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending mutations: %w", err)
	}
	return out, nil
}

// Remove deletes one mutation after a confirmed apply or an accepted
// conflict outcome
func (l *Log) Remove(ctx context.Context, id uuid.UUID) error {
	if err := l.db.WithContext(ctx).Delete(&domain.QueuedMutation{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to remove mutation: %w", err)
	}
	return nil
}

// Count returns the number of pending mutations for the organization
func (l *Log) Count(ctx context.Context, orgID string) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&domain.QueuedMutation{}).
		Where("organization_id = ?", orgID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pending mutations: %w", err)
	}
	return count, nil
}
