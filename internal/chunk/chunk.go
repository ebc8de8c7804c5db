// Package chunk implements the Chunker (C4): sentence-boundary segmentation,
// greedy token-bounded packing, and token-measured overlap, grounded on the
// sliding-window idiom of semaj90-mau5law's document-chunker/main.go and the
// chunking package referenced by the sweetpotato0-ai-allin hybrid retrieval
// engine, generalized to the spec's exact packing/overlap algorithm (§4.4).
package chunk

import (
	"strings"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
	"github.com/docqa/ragcore/internal/extract"
	"github.com/docqa/ragcore/internal/store"
	"github.com/docqa/ragcore/internal/tokenizer"
)

// Config carries the chunk-sizing limits of spec §4.4/§6.
type Config struct {
	MaxChunkTokens int
	MinChunkTokens int
	OverlapTokens  int
}

// Options customizes a single Chunk call with document-specific page
// attribution (spec §4.4's page-attribution table; pdf/docx/txt/md each
// supply a different PageOf strategy at the call site).
type Options struct {
	// PageOf maps an absolute rune offset in the extracted text to a page
	// number. Nil means page attribution is unavailable for this document
	// (the pdf-without-breaks case in spec §4.4).
	PageOf func(startChar int) *int
}

// Chunker produces token-bounded, overlapping chunks from extracted text.
type Chunker struct {
	cfg     Config
	counter *tokenizer.Counter
	segment *sentences.DefaultSentenceTokenizer
}

// New constructs a Chunker using the given token counter (shared with the
// embedding/generation providers per spec §4.1) and an English sentence
// tokenizer with the library's bundled training data.
func New(counter *tokenizer.Counter, cfg Config) (*Chunker, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg, counter: counter, segment: tok}, nil
}

// unit is an indivisible span of text (a sentence, or a hard-split piece of
// an over-long sentence) that packing treats atomically.
type unit struct {
	startRune int
	endRune   int
	tokens    int
}

// Chunk segments text into sentences, hard-splits any sentence exceeding
// MaxChunkTokens on a token boundary, then greedily packs the resulting
// units into chunks with token-measured overlap (spec §4.4).
func (c *Chunker) Chunk(text string, opts Options) ([]store.ChunkInput, error) {
	if !extract.IsNonWhitespace(text) {
		return nil, &coreerrors.EmptyDocumentError{}
	}

	runes := []rune(text)
	units := c.buildUnits(text, runes)
	if len(units) == 0 {
		return nil, &coreerrors.EmptyDocumentError{}
	}

	var chunks []store.ChunkInput
	var pending []unit
	pendingTokens := 0

	emit := func() {
		if len(pending) == 0 {
			return
		}
		start := pending[0].startRune
		end := pending[len(pending)-1].endRune
		content := string(runes[start:end])
		tokenCount := c.counter.Count(content)

		var page *int
		if opts.PageOf != nil {
			page = opts.PageOf(start)
		}

		chunks = append(chunks, store.ChunkInput{
			ChunkIndex: len(chunks),
			Content:    content,
			TokenCount: tokenCount,
			StartChar:  start,
			EndChar:    end,
			PageNumber: page,
		})
	}

	for _, u := range units {
		if pendingTokens+u.tokens > c.cfg.MaxChunkTokens && len(pending) > 0 {
			emitted := pending
			emit()
			pending, pendingTokens = c.overlapSuffix(emitted)
		}
		// A single unit may still not fit alongside carried-over overlap
		// (overlap plus one maximal unit can exceed the budget); shed
		// overlap units from the front until it does.
		for len(pending) > 0 && pendingTokens+u.tokens > c.cfg.MaxChunkTokens {
			pendingTokens -= pending[0].tokens
			pending = pending[1:]
		}
		pending = append(pending, u)
		pendingTokens += u.tokens
	}
	emit()

	return chunks, nil
}

// buildUnits segments text into sentences via the trained English tokenizer,
// hard-splitting any sentence whose token count exceeds MaxChunkTokens.
func (c *Chunker) buildUnits(text string, runes []rune) []unit {
	var units []unit
	for _, s := range c.segment.Tokenize(text) {
		trimmed := strings.TrimSpace(s.Text)
		if trimmed == "" {
			continue
		}
		startRune := utf8.RuneCountInString(text[:s.Start])
		endRune := utf8.RuneCountInString(text[:s.End])
		tokens := c.counter.Count(string(runes[startRune:endRune]))
		if tokens <= c.cfg.MaxChunkTokens {
			units = append(units, unit{startRune: startRune, endRune: endRune, tokens: tokens})
			continue
		}
		units = append(units, c.hardSplit(runes, startRune, endRune)...)
	}
	return units
}

// hardSplit cuts a too-long sentence into token-bounded pieces using binary
// search on the rune span so each piece is the longest prefix that still
// fits within MaxChunkTokens (spec §4.4: "hard-split on token boundaries").
func (c *Chunker) hardSplit(runes []rune, start, end int) []unit {
	var pieces []unit
	for start < end {
		lo, hi := start+1, end
		best := start + 1
		for lo <= hi {
			mid := (lo + hi) / 2
			tok := c.counter.Count(string(runes[start:mid]))
			if tok <= c.cfg.MaxChunkTokens {
				best = mid
				lo = mid + 1
			} else {
				hi = mid - 1
			}
		}
		tokens := c.counter.Count(string(runes[start:best]))
		pieces = append(pieces, unit{startRune: start, endRune: best, tokens: tokens})
		start = best
	}
	return pieces
}

// overlapSuffix picks the tail of the just-emitted chunk's units whose
// combined token count is closest to OverlapTokens without exceeding it
// (spec §4.4), returning them as the seed of the next chunk.
func (c *Chunker) overlapSuffix(units []unit) ([]unit, int) {
	if c.cfg.OverlapTokens <= 0 {
		return nil, 0
	}
	var suffix []unit
	sum := 0
	for i := len(units) - 1; i >= 0; i-- {
		u := units[i]
		if sum+u.tokens > c.cfg.OverlapTokens {
			break
		}
		suffix = append([]unit{u}, suffix...)
		sum += u.tokens
	}
	return suffix, sum
}

// PageFromBreaks returns a PageOf function for formats that supply absolute
// per-page start offsets (spec §4.4: "page_number is the page containing
// start_char"). breaks must be sorted ascending; breaks[i] is the start_char
// of page i+1.
func PageFromBreaks(breaks []int) func(int) *int {
	if len(breaks) == 0 {
		return nil
	}
	return func(startChar int) *int {
		page := 1
		for i, b := range breaks {
			if startChar >= b {
				page = i + 1
			} else {
				break
			}
		}
		return &page
	}
}

// ConstantPage returns a PageOf function that always reports page n, used
// for txt/md (always page 1, spec §4.4).
func ConstantPage(n int) func(int) *int {
	return func(int) *int {
		p := n
		return &p
	}
}

// EstimatedPage returns a PageOf function that estimates page number from
// character position for formats lacking page metadata (docx, spec §4.4).
func EstimatedPage(charsPerPage int) func(int) *int {
	if charsPerPage <= 0 {
		charsPerPage = 1800
	}
	return func(startChar int) *int {
		p := startChar/charsPerPage + 1
		return &p
	}
}
