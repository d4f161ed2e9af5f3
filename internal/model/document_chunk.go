package model

import (
	"encoding/json"
	"time"
)

// DocumentChunk is one word-window slice of a document's extracted text, the
// unit of retrieval. Position preserves insertion order within the document.
// Embedding is stored as a JSON array of float32 for portability; it stays
// empty under the recency store.
type DocumentChunk struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID uint      `gorm:"not null;index" json:"document_id"`
	Position   int       `gorm:"not null" json:"position"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Embedding  string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// EmbeddingVector returns the parsed embedding slice; empty on parse error.
func (c *DocumentChunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(c.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (c *DocumentChunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = ""
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
