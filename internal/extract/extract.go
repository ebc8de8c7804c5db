// Package extract implements the Text Extractor (C3): format-specific
// extraction to plain text plus page count, with a primary/fallback chain
// for PDF grounded on NISHADDEVENDRA-chatbot-backend's
// services/pdf_extractor.go, and alternate-parser usage grounded on
// other_examples' liliang-cn/rago ingest engine (dslipak/pdf).
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
	"github.com/docqa/ragcore/internal/extract/docx"
	"github.com/docqa/ragcore/internal/extract/pdf"
	"github.com/docqa/ragcore/internal/store"
)

// Result is the contract of spec §4.3: extracted text, page count, and an
// optional per-page character-offset table the chunker uses for page
// attribution.
type Result struct {
	Text          string
	PageCount     int
	PerPageBreaks []int // PerPageBreaks[i] is the start_char of page i+1; nil when unavailable.
}

// Extractor dispatches to the format-specific extraction strategy.
type Extractor struct {
	maxPages int
}

// New builds an Extractor enforcing MaxPages (spec §4.3's PageLimitExceeded
// check, raised before text is returned).
func New(maxPages int) *Extractor {
	return &Extractor{maxPages: maxPages}
}

// Extract dispatches on file type per the capability table in spec §4.3.
func (e *Extractor) Extract(ctx context.Context, path string, fileType store.FileType) (*Result, error) {
	var result *Result
	var err error

	switch fileType {
	case store.FileTypePDF:
		result, err = e.extractPDF(ctx, path)
	case store.FileTypeDOCX:
		result, err = e.extractDOCX(path)
	case store.FileTypeTXT, store.FileTypeMD:
		result, err = e.extractPlain(path)
	default:
		return nil, &coreerrors.ExtractionFailedError{Reason: fmt.Sprintf("unsupported file type %q", fileType)}
	}
	if err != nil {
		return nil, err
	}

	if result.PageCount > e.maxPages {
		return nil, &coreerrors.PageLimitExceededError{PageCount: result.PageCount, Max: e.maxPages}
	}
	return result, nil
}

// extractPDF tries the primary parser (ledongthuc/pdf), then the fallback
// (dslipak/pdf), before failing — the primary-then-fallback contract of
// spec §4.3/§7.
func (e *Extractor) extractPDF(ctx context.Context, path string) (*Result, error) {
	text, pageCount, breaks, primaryErr := pdf.ExtractLedongthuc(path)
	if primaryErr == nil {
		return &Result{Text: text, PageCount: pageCount, PerPageBreaks: breaks}, nil
	}

	text, pageCount, breaks, fallbackErr := pdf.ExtractDslipak(path)
	if fallbackErr == nil {
		return &Result{Text: text, PageCount: pageCount, PerPageBreaks: breaks}, nil
	}

	return nil, &coreerrors.ExtractionFailedError{
		Reason: fmt.Sprintf("primary parser failed (%v); fallback parser failed (%v)", primaryErr, fallbackErr),
	}
}

// extractDOCX uses the office-xml parser; page count is estimated from
// character count since docx carries no page metadata (spec §4.3 table).
func (e *Extractor) extractDOCX(path string) (*Result, error) {
	text, err := docx.Extract(path)
	if err != nil {
		return nil, &coreerrors.ExtractionFailedError{Reason: err.Error()}
	}
	const charsPerPage = 1800
	pageCount := (len([]rune(text)) + charsPerPage - 1) / charsPerPage
	if pageCount == 0 {
		pageCount = 1
	}
	return &Result{Text: text, PageCount: pageCount}, nil
}

// extractPlain reads txt/md directly; page count is always 1 (spec §4.3).
func (e *Extractor) extractPlain(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &coreerrors.ExtractionFailedError{Reason: err.Error()}
	}
	text := decodeToUTF8(data)
	return &Result{Text: text, PageCount: 1}, nil
}

// decodeToUTF8 handles the "encoding detection" requirement of spec §4.3 for
// the common case: valid UTF-8 passes through; otherwise invalid byte
// sequences are dropped so downstream chunking never panics on malformed
// input.
func decodeToUTF8(data []byte) string {
	s := string(data)
	if isValidUTF8(s) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r == unicode.ReplacementChar {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isValidUTF8(s string) bool {
	for _, r := range s {
		if r == unicode.ReplacementChar {
			return false
		}
	}
	return true
}

// IsNonWhitespace reports whether text has at least one non-whitespace rune,
// the EmptyDocument check of spec §4.4.
func IsNonWhitespace(text string) bool {
	for _, r := range text {
		if !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
