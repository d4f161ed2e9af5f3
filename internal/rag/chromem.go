package rag

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemStore implements the chunk-store contract on top of a persistent
// chromem-go database with real embedding-vector ranking. Each document gets
// its own collection, so cross-document leakage is impossible by
// construction.
type ChromemStore struct {
	mu        sync.Mutex
	db        *chromem.DB
	embedFunc chromem.EmbeddingFunc
}

// NewChromemStore opens (or creates) a persistent chromem database at dbPath
// using an OpenAI-compatible embedding endpoint.
func NewChromemStore(dbPath, baseURL, apiKey, model string) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(dbPath, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db failed: %w", err)
	}
	return &ChromemStore{
		db:        db,
		embedFunc: chromem.NewEmbeddingFuncOpenAICompat(baseURL, apiKey, model, nil),
	}, nil
}

func (s *ChromemStore) collection(documentID uint) (*chromem.Collection, error) {
	name := fmt.Sprintf("doc-%d", documentID)
	c, err := s.db.GetOrCreateCollection(name, nil, s.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s failed: %w", name, err)
	}
	return c, nil
}

func (s *ChromemStore) AddTexts(ctx context.Context, documentID uint, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(documentID)
	if err != nil {
		return err
	}

	start := c.Count()
	docs := make([]chromem.Document, len(texts))
	for i, text := range texts {
		docs[i] = chromem.Document{
			ID:      fmt.Sprintf("%d-%d", documentID, start+i),
			Content: text,
		}
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents failed: %w", err)
	}
	return nil
}

func (s *ChromemStore) SimilaritySearch(ctx context.Context, documentID uint, query string, topK int) ([]string, error) {
	if topK <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(documentID)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults above the collection size; an empty store is
	// a normal no-context case, not an error.
	count := c.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := c.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection failed: %w", err)
	}

	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Content
	}
	return out, nil
}
