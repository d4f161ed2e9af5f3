package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docuchat/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(conversation *model.Conversation) error {
	if err := r.db.Create(conversation).Error; err != nil {
		return fmt.Errorf("create conversation failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) ListByUserID(userID uint) ([]model.Conversation, error) {
	var conversations []model.Conversation
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}
	return conversations, nil
}

func (r *ConversationRepository) GetByIDAndUserID(id, userID uint) (*model.Conversation, error) {
	var conversation model.Conversation
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&conversation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation failed: %w", err)
	}
	return &conversation, nil
}

// SetActiveDocument switches the conversation's default retrieval context to
// the given document. This is its own atomic update; the surrounding turn is
// not transactional.
func (r *ConversationRepository) SetActiveDocument(conversationID, documentID uint) error {
	if err := r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("active_document_id", documentID).Error; err != nil {
		return fmt.Errorf("set active document failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) UpdateTitle(conversationID uint, title string) error {
	if err := r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("title", title).Error; err != nil {
		return fmt.Errorf("update conversation title failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) DeleteByIDAndUserID(id, userID uint) error {
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Conversation{}).Error; err != nil {
		return fmt.Errorf("delete conversation failed: %w", err)
	}
	return nil
}
