// Package rag contains the retrieval core: the word-window chunker, the
// document resolver, the context assembler and the chunk-store
// implementations. Everything here is pure logic with no persistence or
// network dependency except the chromem-backed store.
package rag

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultChunkSize    = 400
	DefaultChunkOverlap = 50
)

// ErrInvalidChunkConfig marks a programmer-error chunker configuration; an
// overlap at or above the chunk size would never advance the window.
var ErrInvalidChunkConfig = errors.New("invalid chunk config")

// Chunk splits text into overlapping word windows: whitespace-delimited
// tokens, a window of size words advancing by size-overlap each step,
// stopping once the window start reaches the token count. Empty text yields
// no chunks.
func Chunk(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidChunkConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunkConfig, overlap, size)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks, nil
}
