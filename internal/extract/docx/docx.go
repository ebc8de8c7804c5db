// Package docx extracts plain text from .docx files via the office-xml
// parser github.com/nguyenthenguyen/docx (spec §4.3's docx row: "office-xml
// parser", no fallback). Chosen because no docx library appears anywhere in
// the retrieved example pack — see DESIGN.md for the justification this
// process requires for an out-of-pack ecosystem dependency.
package docx

import (
	"fmt"
	"regexp"
	"strings"

	godocx "github.com/nguyenthenguyen/docx"
)

var tagStripper = regexp.MustCompile(`<[^>]*>`)

// Extract returns the plain-text content of a .docx file. The underlying
// library renders content with light markup for runs/paragraphs; we strip
// it down to plain text since the chunker only needs a token-bounded text
// stream, not layout.
func Extract(path string) (string, error) {
	r, err := godocx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("docx open: %w", err)
	}
	defer r.Close()

	raw := r.Editable().GetContent()
	text := tagStripper.ReplaceAllString(raw, "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("docx: no extractable text")
	}
	return text, nil
}
