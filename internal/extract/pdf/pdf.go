// Package pdf wraps the two pure-Go PDF text extractors used as the
// primary/fallback pair for C3: github.com/ledongthuc/pdf (primary,
// grounded on NISHADDEVENDRA-chatbot-backend's extractWithGoPDF) and
// github.com/dslipak/pdf (fallback, grounded on other_examples'
// liliang-cn/rago PDFProcessor). Neither performs OCR, satisfying the
// Non-goal excluding scanned-PDF OCR.
package pdf

import (
	"fmt"
	"strings"
	"unicode/utf8"

	dslipak "github.com/dslipak/pdf"
	ledongthuc "github.com/ledongthuc/pdf"
)

// ExtractLedongthuc is the primary PDF parser.
func ExtractLedongthuc(path string) (text string, pageCount int, perPageBreaks []int, err error) {
	f, r, err := ledongthuc.Open(path)
	if err != nil {
		return "", 0, nil, fmt.Errorf("ledongthuc/pdf open: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	breaks := make([]int, 0, r.NumPage())
	fonts := make(map[string]*ledongthuc.Font)
	runeCount := 0

	for i := 1; i <= r.NumPage(); i++ {
		breaks = append(breaks, runeCount)
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, perr := page.GetPlainText(fonts)
		if perr != nil {
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
		runeCount += utf8.RuneCountInString(pageText) + 1
	}

	full := b.String()
	if strings.TrimSpace(full) == "" {
		return "", 0, nil, fmt.Errorf("ledongthuc/pdf: no extractable text")
	}
	return full, r.NumPage(), breaks, nil
}

// ExtractDslipak is the fallback PDF parser, used when the primary parser
// fails to open or yields no text.
func ExtractDslipak(path string) (text string, pageCount int, perPageBreaks []int, err error) {
	r, err := dslipak.Open(path)
	if err != nil {
		return "", 0, nil, fmt.Errorf("dslipak/pdf open: %w", err)
	}

	var b strings.Builder
	breaks := make([]int, 0, r.NumPage())
	runeCount := 0

	for i := 1; i <= r.NumPage(); i++ {
		breaks = append(breaks, runeCount)
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, perr := page.GetPlainText(nil)
		if perr != nil {
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
		runeCount += utf8.RuneCountInString(pageText) + 1
	}

	full := b.String()
	if strings.TrimSpace(full) == "" {
		return "", 0, nil, fmt.Errorf("dslipak/pdf: no extractable text")
	}
	return full, r.NumPage(), breaks, nil
}
