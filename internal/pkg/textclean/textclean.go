// Package textclean normalizes LLM output into plain chat text by stripping
// markdown and HTML artifacts. Clean is idempotent: cleaning already-clean
// text is a no-op.
package textclean

import (
	"regexp"
	"strings"
)

var (
	boldRe     = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe   = regexp.MustCompile(`\*(.*?)\*`)
	headingRe  = regexp.MustCompile(`(?m)^#+\s*`)
	tableRe    = regexp.MustCompile(`\|.*\|`)
	brRe       = regexp.MustCompile(`<br\s*/?>`)
	bulletRe   = regexp.MustCompile(`[-•]+`)
	newlinesRe = regexp.MustCompile(`\n{3,}`)
)

// Clean strips markdown bold/italic markers, heading prefixes, table
// fragments, HTML line breaks and bullet glyphs, then collapses runs of
// blank lines and trims the result.
func Clean(text string) string {
	if text == "" {
		return text
	}

	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = headingRe.ReplaceAllString(text, "")
	text = tableRe.ReplaceAllString(text, "")
	text = brRe.ReplaceAllString(text, "\n")
	text = bulletRe.ReplaceAllString(text, "")
	text = newlinesRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
