package model

import "time"

const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// RunLog records one completed (or failed) chat turn for auditing. Rows are
// written asynchronously by the run-log worker.
type RunLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index" json:"conversation_id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	Model          string    `gorm:"size:128" json:"model"`
	Status         string    `gorm:"size:20;not null" json:"status"`
	PromptChars    int       `json:"prompt_chars"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}
