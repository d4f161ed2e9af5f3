package rag

import (
	"path"
	"strings"
	"unicode/utf8"
)

// DocumentRef identifies one uploaded document within a conversation.
// Callers must supply refs in upload order (created_at ascending): ordinal
// resolution indexes into that order.
type DocumentRef struct {
	ID       uint
	FileName string
}

// Ordinal phrases checked in this exact order; the earliest-checked match
// wins regardless of its position in the message.
var ordinalPhrases = []string{
	"first document",
	"second document",
	"third document",
	"fourth document",
}

// ResolveDocument decides which uploaded document a message refers to.
// Priority: explicit ordinal reference > filename reference > the
// conversation's active document. A nil result means text-only answering;
// it is never an error.
func ResolveDocument(uploads []DocumentRef, activeID *uint, message string) *uint {
	if len(uploads) == 0 {
		return activeID
	}

	lower := strings.ToLower(message)

	for i, phrase := range ordinalPhrases {
		if i >= len(uploads) {
			break
		}
		if strings.Contains(lower, phrase) {
			id := uploads[i].ID
			return &id
		}
	}

	for _, ref := range uploads {
		name := normalizeFileName(ref.FileName)
		if name == "" {
			continue
		}
		if strings.Contains(lower, name) {
			id := ref.ID
			return &id
		}
		for _, token := range strings.Fields(name) {
			if utf8.RuneCountInString(token) > 4 && strings.Contains(lower, token) {
				id := ref.ID
				return &id
			}
		}
	}

	return activeID
}

// normalizeFileName turns "docs/Quarterly_Report.pdf" into
// "quarterly report". Only the .pdf and .docx extensions are stripped; a
// message citing "notes.txt" matches through the full name.
func normalizeFileName(fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	lower := strings.ToLower(name)
	for _, ext := range []string{".pdf", ".docx"} {
		if strings.HasSuffix(lower, ext) {
			name = name[:len(name)-len(ext)]
			break
		}
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.TrimSpace(strings.ToLower(name))
}
