package docload

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

// docxFixture builds a minimal in-memory .docx: a zip holding the
// WordprocessingML document part (one w:p/w:r/w:t per paragraph) and the
// relationships part the reader requires.
func docxFixture(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString("<w:p><w:r><w:t>" + p + "</w:t></w:r></w:p>")
	}
	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body.String() + `</w:body></w:document>`
	rels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"word/document.xml":            document,
		"word/_rels/document.xml.rels": rels,
	} {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestLoadTXT(t *testing.T) {
	got, err := Load("notes.txt", []byte("  hello\nworld  \n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "hello\nworld" {
		t.Errorf("expected trimmed text, got %q", got)
	}
}

func TestLoadTXTDropsInvalidUTF8(t *testing.T) {
	got, err := Load("notes.txt", []byte("caf\xe9 latte"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "caf latte" {
		t.Errorf("expected invalid bytes dropped, got %q", got)
	}
}

func TestLoadExtensionCaseInsensitive(t *testing.T) {
	got, err := Load("NOTES.TXT", []byte("ok"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q", got)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	for _, name := range []string{"image.png", "data.csv", "archive.zip", "noext"} {
		if _, err := Load(name, []byte("data")); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Load(%q): expected ErrUnsupportedFormat, got %v", name, err)
		}
	}
}

func TestLoadDOCXParagraphs(t *testing.T) {
	data := docxFixture(t, "first paragraph", "second paragraph")

	got, err := Load("report.docx", data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "first paragraph\nsecond paragraph" {
		t.Errorf("expected paragraph texts joined with newlines, got %q", got)
	}
	if strings.Contains(got, "<w:") || strings.Contains(got, "<?xml") {
		t.Errorf("extracted text carries markup: %q", got)
	}
}

func TestLoadDOCXSkipsEmptyParagraphs(t *testing.T) {
	data := docxFixture(t, "alpha", "", "   ", "omega")

	got, err := Load("report.docx", data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "alpha\nomega" {
		t.Errorf("empty paragraphs should contribute nothing, got %q", got)
	}
}

func TestLoadDOCXUnescapesEntities(t *testing.T) {
	data := docxFixture(t, "profit &amp; loss")

	got, err := Load("report.docx", data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "profit & loss" {
		t.Errorf("entities should be decoded, got %q", got)
	}
}

func TestLoadCorruptDOCX(t *testing.T) {
	if _, err := Load("broken.docx", []byte("this is not a zip")); err == nil {
		t.Error("expected error for corrupt docx")
	}
}

func TestLoadCorruptPDF(t *testing.T) {
	if _, err := Load("broken.pdf", []byte("this is not a pdf")); err == nil {
		t.Error("expected error for corrupt pdf")
	}
}

func TestSupported(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"a.pdf", true},
		{"A.PDF", true},
		{"report.docx", true},
		{"notes.txt", true},
		{"notes.md", false},
		{"noext", false},
	}
	for _, tc := range cases {
		if got := Supported(tc.name); got != tc.want {
			t.Errorf("Supported(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
