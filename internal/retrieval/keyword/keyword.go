// Package keyword implements the Keyword Retriever (C10): a per-scope BM25
// index built lazily from the metadata store's chunks and cached with a TTL,
// grounded on the bm25Index implementation in
// other_examples' sweetpotato0-ai-allin hybrid retrieval engine, generalized
// to the spec's own k1/b defaults and scope model (upload/document/global).
package keyword

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docqa/ragcore/internal/store"
)

// ScopeKind distinguishes the three corpus scopes of spec §4.10.
type ScopeKind string

const (
	ScopeUpload   ScopeKind = "upload"
	ScopeDocument ScopeKind = "document"
	ScopeGlobal   ScopeKind = "global"
)

// Scope identifies the corpus a search or invalidation applies to.
type Scope struct {
	Kind ScopeKind
	ID   string // upload_id or document_id; unused for ScopeGlobal
}

func (s Scope) key() string {
	if s.Kind == ScopeGlobal {
		return "global"
	}
	return fmt.Sprintf("%s:%s", s.Kind, s.ID)
}

// Match is one scored chunk (spec §4.10).
type Match struct {
	ChunkID string
	Score   float64
}

// CorpusLoader loads every chunk within a scope; satisfied by
// *store.Repository.
type CorpusLoader interface {
	ListChunksByUpload(ctx context.Context, uploadID string) ([]store.Chunk, error)
	ListChunks(ctx context.Context, docID string, page, limit int) ([]store.Chunk, error)
	ListAllChunks(ctx context.Context) ([]store.Chunk, error)
}

// Config carries the BM25 tuning parameters of spec §4.10 and the cache TTL.
type Config struct {
	K1  float64
	B   float64
	TTL time.Duration
}

var wordRegex = regexp.MustCompile(`\p{L}[\p{L}\p{M}]*|\p{N}+`)

func tokenize(text string) []string {
	return wordRegex.FindAllString(strings.ToLower(text), -1)
}

// Retriever builds and caches one bm25Index per scope.
type Retriever struct {
	loader CorpusLoader
	cfg    Config

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

type cacheEntry struct {
	index   *bm25Index
	builtAt time.Time
}

// New constructs a Retriever.
func New(loader CorpusLoader, cfg Config) *Retriever {
	if cfg.K1 == 0 {
		cfg.K1 = 1.2
	}
	if cfg.B == 0 {
		cfg.B = 0.75
	}
	return &Retriever{loader: loader, cfg: cfg, cache: make(map[string]*cacheEntry)}
}

// Search returns the top-N chunk ids by BM25 score within scope (spec §4.10).
// An empty corpus yields an empty result, not an error.
func (r *Retriever) Search(ctx context.Context, scope Scope, query string, topN int) ([]Match, error) {
	idx, err := r.indexFor(ctx, scope)
	if err != nil {
		return nil, err
	}
	return idx.search(query, topN), nil
}

// Invalidate evicts the cached index for scope, forcing a rebuild on the
// next Search (spec §4.10: "invalidated on chunk insert/delete").
func (r *Retriever) Invalidate(scope Scope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, scope.key())
}

// SweepExpired evicts every cached index older than the configured TTL, so
// scopes that are no longer searched do not hold memory (Search already
// rebuilds expired entries on its own); it is run periodically by a gocron
// job. Returns the number of entries evicted.
func (r *Retriever) SweepExpired(now time.Time) int {
	if r.cfg.TTL <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for k, e := range r.cache {
		if now.Sub(e.builtAt) > r.cfg.TTL {
			delete(r.cache, k)
			evicted++
		}
	}
	return evicted
}

func (r *Retriever) indexFor(ctx context.Context, scope Scope) (*bm25Index, error) {
	key := scope.key()

	r.mu.Lock()
	if e, ok := r.cache[key]; ok {
		if r.cfg.TTL <= 0 || time.Since(e.builtAt) <= r.cfg.TTL {
			r.mu.Unlock()
			return e.index, nil
		}
	}
	r.mu.Unlock()

	chunks, err := r.loadCorpus(ctx, scope)
	if err != nil {
		return nil, err
	}
	idx := newBM25(r.cfg.K1, r.cfg.B)
	for _, c := range chunks {
		idx.add(c.ID, c.Content)
	}

	r.mu.Lock()
	r.cache[key] = &cacheEntry{index: idx, builtAt: time.Now()}
	r.mu.Unlock()
	return idx, nil
}

func (r *Retriever) loadCorpus(ctx context.Context, scope Scope) ([]store.Chunk, error) {
	switch scope.Kind {
	case ScopeUpload:
		return r.loader.ListChunksByUpload(ctx, scope.ID)
	case ScopeDocument:
		return r.loader.ListChunks(ctx, scope.ID, 0, 0)
	case ScopeGlobal:
		return r.loader.ListAllChunks(ctx)
	default:
		return nil, fmt.Errorf("keyword: unknown scope kind %q", scope.Kind)
	}
}

// bm25Index is an Okapi BM25 index over one corpus of chunks.
type bm25Index struct {
	docFreq     map[string]int
	postings    map[string]map[string]int
	chunkLength map[string]int
	totalLength int
	docCount    int
	k1          float64
	b           float64
}

func newBM25(k1, b float64) *bm25Index {
	return &bm25Index{
		docFreq:     make(map[string]int),
		postings:    make(map[string]map[string]int),
		chunkLength: make(map[string]int),
		k1:          k1,
		b:           b,
	}
}

func (idx *bm25Index) add(chunkID, content string) {
	terms := tokenize(content)
	if len(terms) == 0 {
		return
	}
	idx.docCount++
	idx.chunkLength[chunkID] = len(terms)
	idx.totalLength += len(terms)

	seen := make(map[string]struct{})
	for _, term := range terms {
		if _, ok := idx.postings[term]; !ok {
			idx.postings[term] = make(map[string]int)
		}
		idx.postings[term][chunkID]++
		if _, ok := seen[term]; !ok {
			idx.docFreq[term]++
			seen[term] = struct{}{}
		}
	}
}

func (idx *bm25Index) search(query string, limit int) []Match {
	if idx.docCount == 0 {
		return nil
	}
	terms := uniqueTerms(tokenize(query))
	if len(terms) == 0 {
		return nil
	}

	avgLen := float64(idx.totalLength) / float64(idx.docCount)
	scores := make(map[string]float64)
	for _, term := range terms {
		postings := idx.postings[term]
		if len(postings) == 0 {
			continue
		}
		df := idx.docFreq[term]
		denomIDF := float64(df) + 0.5
		idf := math.Log((float64(idx.docCount)-float64(df)+0.5)/denomIDF + 1)
		for chunkID, tf := range postings {
			docLen := float64(idx.chunkLength[chunkID])
			numerator := float64(tf) * (idx.k1 + 1)
			denominator := float64(tf) + idx.k1*(1-idx.b+idx.b*(docLen/avgLen))
			scores[chunkID] += idf * (numerator / denominator)
		}
	}

	matches := make([]Match, 0, len(scores))
	for id, score := range scores {
		matches = append(matches, Match{ChunkID: id, Score: score})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func uniqueTerms(tokens []string) []string {
	if len(tokens) == 0 {
		return tokens
	}
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
