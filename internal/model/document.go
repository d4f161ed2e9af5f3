package model

import "time"

// Document holds the extracted text of one uploaded file. Rows are immutable
// once created; re-uploading a file creates a new Document.
type Document struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	FileName      string    `gorm:"size:255;not null" json:"file_name"`
	StoredPath    string    `gorm:"size:512" json:"-"`
	ExtractedText string    `gorm:"type:longtext;not null" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}
