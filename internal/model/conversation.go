package model

import "time"

// Conversation is one chat thread. ActiveDocumentID points at the most
// recently uploaded document and is the default retrieval context; nil means
// text-only answering.
type Conversation struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	Title            string    `gorm:"size:255;not null;default:'New chat'" json:"title"`
	ActiveDocumentID *uint     `gorm:"index" json:"active_document_id"`
	CreatedAt        time.Time `json:"created_at"`
}
