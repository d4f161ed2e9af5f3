// Package docload extracts plain text from uploaded documents. It performs
// pure extraction only; persistence is the caller's concern.
package docload

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// ErrUnsupportedFormat is returned for any extension other than
// .pdf / .docx / .txt (case-insensitive).
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Load extracts normalized plain text from the raw bytes of an uploaded file,
// dispatching on the file extension. The result is trimmed of leading and
// trailing whitespace.
func Load(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return loadPDF(data)
	case ".docx":
		return loadDOCX(data)
	case ".txt":
		return loadTXT(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// Supported reports whether the filename has an ingestible extension.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx", ".txt":
		return true
	}
	return false
}

func loadPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Pages with no extractable text contribute nothing.
			continue
		}
		text.WriteString(pageText)
	}
	return strings.TrimSpace(text.String()), nil
}

func loadDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx failed: %w", err)
	}
	defer r.Close()

	// GetContent hands back the raw word/document.xml markup.
	text, err := docxParagraphText(r.Editable().GetContent())
	if err != nil {
		return "", err
	}
	return text, nil
}

// docxParagraphText pulls the character data out of WordprocessingML: the
// text runs (w:t) of each paragraph (w:p) are concatenated, paragraphs are
// joined with newlines, empty paragraphs contribute nothing.
func docxParagraphText(content string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(content))

	var (
		paragraphs []string
		current    strings.Builder
		inRunText  bool
	)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx xml failed: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inRunText = true
			case "tab":
				current.WriteByte('\t')
			case "br":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRunText = false
			case "p":
				if p := strings.TrimSpace(current.String()); p != "" {
					paragraphs = append(paragraphs, p)
				}
				current.Reset()
			}
		case xml.CharData:
			if inRunText {
				current.Write(t)
			}
		}
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n")), nil
}

func loadTXT(data []byte) string {
	// Decode as UTF-8, dropping undecodable bytes.
	return strings.TrimSpace(strings.ToValidUTF8(string(data), ""))
}
