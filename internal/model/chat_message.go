package model

import "time"

const (
	MessageTypeText     = "text"
	MessageTypeDocument = "document"
)

// ChatMessage is either a text exchange (UserMessage + BotReply) or a
// document-upload event (UploadedFileName + DocumentID). CreatedAt ordering
// is load-bearing: history reconstruction and ordinal document resolution
// both depend on it.
type ChatMessage struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	ConversationID uint   `gorm:"not null;index" json:"conversation_id"`
	UserID         uint   `gorm:"not null;index" json:"user_id"`
	MessageType    string `gorm:"size:10;not null;default:'text'" json:"message_type"`

	UserMessage string `gorm:"type:text" json:"user_message"`
	BotReply    string `gorm:"type:text" json:"bot_reply"`

	UploadedFileName string `gorm:"size:255" json:"uploaded_file_name,omitempty"`
	DocumentID       *uint  `gorm:"index" json:"document_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsDocumentEvent reports whether the message records an upload rather than
// a text exchange.
func (m *ChatMessage) IsDocumentEvent() bool {
	return m.MessageType == MessageTypeDocument
}
