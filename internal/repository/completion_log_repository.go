package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"chore-tracker/internal/model"
)

// CompletionLogRepository handles the append-only completion log.
type CompletionLogRepository struct {
	db *gorm.DB
}

func NewCompletionLogRepository(db *gorm.DB) *CompletionLogRepository {
	return &CompletionLogRepository{db: db}
}

func (r *CompletionLogRepository) Create(ctx context.Context, entry *model.CompletionLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create completion log: %w", err)
	}
	return nil
}

func (r *CompletionLogRepository) FindByID(ctx context.Context, logID string) (*model.CompletionLog, error) {
	var entry model.CompletionLog
	if err := r.db.WithContext(ctx).Where("id = ?", logID).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByTask returns all log entries for a task, most recent first.
func (r *CompletionLogRepository) ListByTask(ctx context.Context, taskID string) ([]model.CompletionLog, error) {
	var entries []model.CompletionLog
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).
		Order("completed_at DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListRecentByTask returns up to limit entries for a task, most recent first.
func (r *CompletionLogRepository) ListRecentByTask(ctx context.Context, taskID string, limit int) ([]model.CompletionLog, error) {
	var entries []model.CompletionLog
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).
		Order("completed_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *CompletionLogRepository) Delete(ctx context.Context, logID string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", logID).
		Delete(&model.CompletionLog{}).Error; err != nil {
		return fmt.Errorf("delete completion log: %w", err)
	}
	return nil
}
