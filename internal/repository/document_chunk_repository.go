package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"docuchat/internal/model"
)

// DocumentChunkRepository persists chunk rows and doubles as the default
// runtime chunk store: AddTexts / SimilaritySearch satisfy the chat service's
// store contract with the recency-as-relevance fallback policy
// (position DESC, latest chunks first). Queries are always scoped to one
// document id.
type DocumentChunkRepository struct {
	db *gorm.DB
}

func NewDocumentChunkRepository(db *gorm.DB) *DocumentChunkRepository {
	return &DocumentChunkRepository{db: db}
}

func (r *DocumentChunkRepository) CreateBatch(chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.Create(&chunks).Error; err != nil {
		return fmt.Errorf("create document chunks batch failed: %w", err)
	}
	return nil
}

func (r *DocumentChunkRepository) ListByDocumentID(documentID uint) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	if err := r.db.Where("document_id = ?", documentID).Order("position ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list document chunks failed: %w", err)
	}
	return chunks, nil
}

func (r *DocumentChunkRepository) DeleteByDocumentID(documentID uint) error {
	if err := r.db.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("delete document chunks failed: %w", err)
	}
	return nil
}

// AddTexts appends chunk rows in insertion order, continuing the position
// sequence after any existing chunks.
func (r *DocumentChunkRepository) AddTexts(ctx context.Context, documentID uint, texts []string) error {
	if len(texts) == 0 {
		return nil
	}

	var maxPos int
	row := r.db.WithContext(ctx).Model(&model.DocumentChunk{}).
		Where("document_id = ?", documentID).
		Select("COALESCE(MAX(position), -1)").Row()
	if err := row.Scan(&maxPos); err != nil {
		return fmt.Errorf("scan max chunk position failed: %w", err)
	}

	chunks := make([]model.DocumentChunk, len(texts))
	for i, text := range texts {
		chunks[i] = model.DocumentChunk{
			DocumentID: documentID,
			Position:   maxPos + 1 + i,
			Content:    text,
		}
	}
	if err := r.db.WithContext(ctx).Create(&chunks).Error; err != nil {
		return fmt.Errorf("create document chunks failed: %w", err)
	}
	return nil
}

// SimilaritySearch returns up to topK chunk texts for the document, latest
// position first. An empty store yields an empty result, never an error.
func (r *DocumentChunkRepository) SimilaritySearch(ctx context.Context, documentID uint, query string, topK int) ([]string, error) {
	if topK <= 0 {
		return nil, nil
	}

	var chunks []model.DocumentChunk
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("position DESC").Limit(topK).Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("search document chunks failed: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	return texts, nil
}
