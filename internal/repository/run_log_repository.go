package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docuchat/internal/model"
)

type RunLogRepository struct {
	db *gorm.DB
}

func NewRunLogRepository(db *gorm.DB) *RunLogRepository {
	return &RunLogRepository{db: db}
}

func (r *RunLogRepository) Create(runLog *model.RunLog) error {
	if err := r.db.Create(runLog).Error; err != nil {
		return fmt.Errorf("create run log failed: %w", err)
	}
	return nil
}

func (r *RunLogRepository) ListByConversationID(conversationID uint, limit int) ([]model.RunLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var logs []model.RunLog
	if err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list run logs failed: %w", err)
	}
	return logs, nil
}
