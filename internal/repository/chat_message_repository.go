package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docuchat/internal/model"
)

type ChatMessageRepository struct {
	db *gorm.DB
}

func NewChatMessageRepository(db *gorm.DB) *ChatMessageRepository {
	return &ChatMessageRepository{db: db}
}

func (r *ChatMessageRepository) Create(message *model.ChatMessage) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create chat message failed: %w", err)
	}
	return nil
}

func (r *ChatMessageRepository) ListByConversationID(conversationID uint, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var messages []model.ChatMessage
	if err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list chat messages failed: %w", err)
	}
	return messages, nil
}

// ListRecentText returns the most recent text exchanges oldest-first,
// excluding document-upload events.
func (r *ChatMessageRepository) ListRecentText(conversationID uint, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = 8
	}

	var messages []model.ChatMessage
	if err := r.db.Where("conversation_id = ? AND message_type = ?", conversationID, model.MessageTypeText).
		Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list recent text messages failed: %w", err)
	}

	// Reverse to chronological order for history assembly.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListDocumentEvents returns document-upload events in upload order
// (created_at ascending), which the resolver's ordinal logic depends on.
func (r *ChatMessageRepository) ListDocumentEvents(conversationID uint) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	if err := r.db.Where("conversation_id = ? AND message_type = ?", conversationID, model.MessageTypeDocument).
		Order("created_at ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list document events failed: %w", err)
	}
	return messages, nil
}

func (r *ChatMessageRepository) DeleteByConversationID(conversationID uint) error {
	if err := r.db.Where("conversation_id = ?", conversationID).Delete(&model.ChatMessage{}).Error; err != nil {
		return fmt.Errorf("delete chat messages failed: %w", err)
	}
	return nil
}
