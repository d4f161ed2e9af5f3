package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docuchat/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByIDAndUserID(id, userID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByUserID(userID uint) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}
