// Package tokenizer implements C1: a deterministic token count for a string
// under a named tokenizer family. The chunker and the query-engine's context
// builder both depend on this package so they share the same tokenizer as
// the configured embedding/generation providers (spec §4.1).
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
)

// Counter counts tokens for a single registered tokenizer.
type Counter struct {
	name string
	enc  *tiktoken.Tiktoken
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Counter{}
)

// New returns the Counter for name, constructing and caching it on first
// use. Fails with TokenizerUnavailableError if tiktoken-go does not
// recognize the name.
func New(name string) (*Counter, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if c, ok := registry[name]; ok {
		return c, nil
	}

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, &coreerrors.TokenizerUnavailableError{Name: name}
	}
	c := &Counter{name: name, enc: enc}
	registry[name] = c
	return c, nil
}

// Name returns the tokenizer family name this Counter was built for.
func (c *Counter) Name() string { return c.name }

// Count returns the deterministic token count of text.
func (c *Counter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Encode returns the token ids for text, for components (chunker, context
// builder) that need to slice on token boundaries rather than merely count.
func (c *Counter) Encode(text string) []int {
	return c.enc.Encode(text, nil, nil)
}

// Decode renders token ids back to text. Used for right-side truncation
// (embedding inputs, spec §4.6) and token-boundary context truncation
// (spec §4.15 step 6).
func (c *Counter) Decode(tokens []int) string {
	return c.enc.Decode(tokens)
}

// Truncate returns text cut to at most maxTokens tokens, right-side,
// token-aligned, as required for embedding inputs exceeding
// max_input_tokens() (spec §4.6).
func (c *Counter) Truncate(text string, maxTokens int) string {
	ids := c.Encode(text)
	if len(ids) <= maxTokens {
		return text
	}
	return c.Decode(ids[:maxTokens])
}
