package rag

import (
	"context"
	"sync"
)

// MemoryStore is the naive in-process chunk store: chunks are kept per
// document in insertion order and "similarity" search returns the most
// recently added chunks regardless of query content. Recency-as-relevance is
// a deliberate placeholder policy; the contract (at most topK items, empty
// store yields an empty result, latest first, per-document isolation) is what
// embedding-backed implementations must preserve.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[uint][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[uint][]string)}
}

// AddTexts appends chunks for a document, preserving insertion order. No
// deduplication is performed.
func (s *MemoryStore) AddTexts(ctx context.Context, documentID uint, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[documentID] = append(s.chunks[documentID], texts...)
	return nil
}

// SimilaritySearch returns up to topK chunks for the document, most recently
// added first. It never fails on an empty store.
func (s *MemoryStore) SimilaritySearch(ctx context.Context, documentID uint, query string, topK int) ([]string, error) {
	if topK <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.chunks[documentID]
	if len(stored) == 0 {
		return nil, nil
	}
	if topK > len(stored) {
		topK = len(stored)
	}

	out := make([]string, 0, topK)
	for i := len(stored) - 1; i >= len(stored)-topK; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}
