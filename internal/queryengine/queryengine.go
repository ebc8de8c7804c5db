// Package queryengine implements the Query Engine (C15): the final
// retrieve -> diversify -> assemble -> generate -> cite pipeline, grounded
// on the context-assembly and token-budget-fitting idiom of
// services/impl/document_context_impl.go and
// services/impl/hybrid_context.go, generalized from the teacher's
// single-strategy context builder to the spec's semantic/keyword/hybrid
// retrieval-method switch.
package queryengine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
	"github.com/docqa/ragcore/internal/embedding"
	"github.com/docqa/ragcore/internal/retrieval/hybrid"
	"github.com/docqa/ragcore/internal/retrieval/keyword"
	"github.com/docqa/ragcore/internal/retrieval/mmr"
	"github.com/docqa/ragcore/internal/retrieval/semantic"
	"github.com/docqa/ragcore/internal/store"
	"github.com/docqa/ragcore/internal/tokenizer"
	"github.com/docqa/ragcore/internal/vectorstore"

	llmpkg "github.com/docqa/ragcore/internal/llm"
)

// Method is the retrieval strategy of spec §4.15 step 2.
type Method string

const (
	MethodSemantic Method = "semantic"
	MethodKeyword  Method = "keyword"
	MethodHybrid   Method = "hybrid"
)

// FallbackAnswer is emitted when retrieval yields no usable context (spec
// §4.15 step 10 / "retrieval-empty handling").
const FallbackAnswer = "I don't have enough information to answer this question from the documents provided."

// systemTemplate is the fixed prompt template of spec §4.15 step 7.
const systemTemplate = `You are a document question-answering assistant. Answer the user's question using ONLY the context below. Every factual claim must be followed by a citation in the form [Source N] referencing the numbered context section it came from. If the context does not contain enough information to answer, respond exactly with: ` + "`" + FallbackAnswer + "`" + `

Context:
%s`

var citationRegexp = regexp.MustCompile(`\[Source (\d+)\]`)

// Config carries the retrieval/generation tuning knobs of spec §4.15/§6.
type Config struct {
	TopK             int
	MMRLambda        float64
	RRFk             int
	MaxContextTokens int
	Temperature      float64
	TokenizerName    string
	DefaultMethod    Method
}

// Opts are per-call overrides to Config (spec §4.15 step 2/5).
type Opts struct {
	Method       Method
	UploadFilter string
	TopK         int
	MMRLambda    float64
}

// contextChunk carries a selected chunk plus the source-document metadata
// needed to format and cite it.
type contextChunk struct {
	chunk    store.Chunk
	filename string
	docID    string
}

// Engine wires C10, C11, C12, C13, C14, C1, and C5 together (spec §4.15).
type Engine struct {
	repo     *store.Repository
	keywordR *keyword.Retriever
	semantic *semantic.Retriever
	embed    embedding.Provider
	vs       vectorstore.Store
	gen      llmpkg.Provider
	tok      *tokenizer.Counter
	cfg      Config
	logger   *zap.Logger
}

// New constructs an Engine.
func New(repo *store.Repository, kw *keyword.Retriever, sem *semantic.Retriever, embed embedding.Provider, vs vectorstore.Store, gen llmpkg.Provider, tok *tokenizer.Counter, cfg Config, logger *zap.Logger) *Engine {
	if cfg.DefaultMethod == "" {
		cfg.DefaultMethod = MethodHybrid
	}
	return &Engine{repo: repo, keywordR: kw, semantic: sem, embed: embed, vs: vs, gen: gen, tok: tok, cfg: cfg, logger: logger}
}

// Answer runs the spec §4.15 answer algorithm end to end.
func (e *Engine) Answer(ctx context.Context, queryText string, opts Opts) (*store.Query, error) {
	start := time.Now()

	queryText = strings.TrimSpace(queryText)
	if len(queryText) < 3 || len(queryText) > 1000 {
		return nil, &coreerrors.InvalidQueryError{Reason: fmt.Sprintf("length %d outside [3,1000]", len(queryText))}
	}

	method := opts.Method
	if method == "" {
		method = e.cfg.DefaultMethod
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	lambda := opts.MMRLambda
	if lambda == 0 {
		lambda = e.cfg.MMRLambda
	}
	fetchK := topK * 2

	retrievalStart := time.Now()
	candidates, retrievalMethod, err := e.retrieve(ctx, queryText, method, opts.UploadFilter, fetchK)
	if err != nil {
		return nil, err
	}
	retrievalMs := time.Since(retrievalStart).Milliseconds()

	if len(candidates) == 0 {
		q := &store.Query{
			QueryText:    queryText,
			UploadFilter: nullableFilter(opts.UploadFilter),
			AnswerText:   FallbackAnswer,
			Citations:    wrapCitations(nil),
			UsedChunkIDs: wrapIDs(nil),
			LatencyMs:    time.Since(start).Milliseconds(),
			RetrievalStats: wrapStats(store.RetrievalStats{
				TopK: topK, ChunksRetrieved: 0, ChunksUsed: 0, RetrievalMethod: string(retrievalMethod),
			}),
		}
		if err := e.repo.PersistQuery(ctx, q); err != nil {
			return nil, err
		}
		return q, nil
	}

	namespace := vectorstore.NamespaceForUpload(opts.UploadFilter)
	mmrCandidates, err := mmr.FetchCandidates(ctx, e.vs, namespace, candidates)
	if err != nil {
		return nil, err
	}

	var queryVec []float32
	if len(mmrCandidates) > 0 {
		qvRes, err := e.embed.Embed(ctx, []string{queryText}, embedding.TaskTypeQuery)
		if err != nil {
			return nil, err
		}
		if len(qvRes.Vectors) > 0 {
			queryVec = qvRes.Vectors[0]
		}
	}

	finalK := topK
	selectedIDs := mmr.Select(mmrCandidates, queryVec, finalK, lambda)
	if len(selectedIDs) == 0 {
		// Candidates had no retrievable vectors (e.g. keyword-only method
		// with no embeddings yet); fall back to the fused candidate order.
		selectedIDs = candidates
		if len(selectedIDs) > finalK {
			selectedIDs = selectedIDs[:finalK]
		}
	}

	chunks, err := e.repo.GetChunksByIDs(ctx, selectedIDs)
	if err != nil {
		return nil, err
	}
	ordered, err := e.hydrateOrdered(ctx, selectedIDs, chunks)
	if err != nil {
		return nil, err
	}

	contextText, used := e.buildContext(ordered)

	genStart := time.Now()
	prompt := fmt.Sprintf(systemTemplate, contextText)
	result, err := e.gen.Generate(ctx, queryText, llmpkg.Params{
		Temperature:     e.cfg.Temperature,
		MaxOutputTokens: 1024,
		SystemPrompt:    prompt,
	})
	if err != nil {
		return nil, &coreerrors.GenerationFailedError{Reason: "generation exhausted retries", Err: err}
	}
	genMs := time.Since(genStart).Milliseconds()

	citations := extractCitations(result.Text, used)
	usedIDs := make([]string, len(used))
	for i, c := range used {
		usedIDs[i] = c.chunk.ID
	}

	q := &store.Query{
		QueryText:    queryText,
		UploadFilter: nullableFilter(opts.UploadFilter),
		AnswerText:   result.Text,
		Citations:    wrapCitations(citations),
		UsedChunkIDs: wrapIDs(usedIDs),
		LatencyMs:    time.Since(start).Milliseconds(),
		RetrievalStats: wrapStats(store.RetrievalStats{
			TopK: topK, ChunksRetrieved: len(candidates), ChunksUsed: len(used), RetrievalMethod: string(retrievalMethod),
		}),
	}
	if err := e.repo.PersistQuery(ctx, q); err != nil {
		return nil, err
	}
	e.logger.Info("queryengine.answer_done",
		zap.String("query_id", q.ID), zap.Int64("latency_ms", q.LatencyMs),
		zap.Int64("retrieval_ms", retrievalMs), zap.Int64("generation_ms", genMs),
		zap.Int("chunks_used", len(used)), zap.String("method", string(retrievalMethod)))
	return q, nil
}

// retrieve dispatches to semantic, keyword, or hybrid retrieval per spec
// §4.15 step 2-3, returning fused candidate chunk ids ordered by relevance.
func (e *Engine) retrieve(ctx context.Context, queryText string, method Method, uploadFilter string, fetchK int) ([]string, Method, error) {
	namespace := vectorstore.NamespaceForUpload(uploadFilter)
	scope := keywordScope(uploadFilter)

	switch method {
	case MethodSemantic:
		matches, err := e.semantic.Search(ctx, queryText, fetchK, namespace)
		if err != nil {
			return nil, method, err
		}
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ChunkID
		}
		return ids, method, nil

	case MethodKeyword:
		matches, err := e.keywordR.Search(ctx, scope, queryText, fetchK)
		if err != nil {
			return nil, method, err
		}
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ChunkID
		}
		return ids, method, nil

	default: // hybrid
		semMatches, err := e.semantic.Search(ctx, queryText, fetchK, namespace)
		if err != nil {
			return nil, method, err
		}
		kwMatches, err := e.keywordR.Search(ctx, scope, queryText, fetchK)
		if err != nil {
			return nil, method, err
		}
		semRanked := make([]hybrid.Ranked, len(semMatches))
		for i, m := range semMatches {
			semRanked[i] = hybrid.Ranked{ChunkID: m.ChunkID}
		}
		kwRanked := make([]hybrid.Ranked, len(kwMatches))
		for i, m := range kwMatches {
			kwRanked[i] = hybrid.Ranked{ChunkID: m.ChunkID}
		}
		fused := hybrid.Fuse(semRanked, kwRanked, e.cfg.RRFk, fetchK)
		ids := make([]string, len(fused))
		for i, f := range fused {
			ids[i] = f.ChunkID
		}
		return ids, MethodHybrid, nil
	}
}

// hydrateOrdered re-attaches store.Chunk bodies (and owning document
// metadata) to the MMR-selected id order, dropping any id the bulk fetch
// didn't return (e.g. deleted between retrieval and fetch).
func (e *Engine) hydrateOrdered(ctx context.Context, order []string, chunks []store.Chunk) ([]contextChunk, error) {
	byID := make(map[string]store.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	docIDs := make(map[string]struct{})
	for _, c := range chunks {
		docIDs[c.DocumentID] = struct{}{}
	}
	docs := make(map[string]*store.Document, len(docIDs))
	for id := range docIDs {
		d, err := e.repo.GetDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		docs[id] = d
	}

	out := make([]contextChunk, 0, len(order))
	for _, id := range order {
		c, ok := byID[id]
		if !ok {
			continue
		}
		d := docs[c.DocumentID]
		filename := ""
		docID := c.DocumentID
		if d != nil {
			filename = d.Filename
		}
		out = append(out, contextChunk{chunk: c, filename: filename, docID: docID})
	}
	return out, nil
}

// buildContext assembles the prompt context under MaxContextTokens, greedy
// appending and truncating the overflowing chunk on a token boundary (spec
// §4.15 step 6).
func (e *Engine) buildContext(ordered []contextChunk) (string, []contextChunk) {
	var b strings.Builder
	used := make([]contextChunk, 0, len(ordered))
	tokensSoFar := 0

	for i, cc := range ordered {
		section := formatSection(i+1, cc)
		sectionTokens := e.tok.Count(section)

		if tokensSoFar+sectionTokens > e.cfg.MaxContextTokens {
			remaining := e.cfg.MaxContextTokens - tokensSoFar
			if remaining <= 0 {
				break
			}
			truncated := e.tok.Truncate(section, remaining)
			b.WriteString(truncated)
			b.WriteString("…\n")
			used = append(used, cc)
			break
		}

		b.WriteString(section)
		tokensSoFar += sectionTokens
		used = append(used, cc)
	}
	return b.String(), used
}

func formatSection(n int, cc contextChunk) string {
	page := "unknown"
	if cc.chunk.PageNumber != nil {
		page = fmt.Sprintf("%d", *cc.chunk.PageNumber)
	}
	return fmt.Sprintf("[Source %d]\nDocument: %s\nPage: %s\nContent: %s\n---\n", n, cc.filename, page, cc.chunk.Content)
}

// extractCitations parses `[Source N]` tags from the answer and maps each
// unique N to the Nth context chunk, extracting a <=150-character
// best-overlap snippet (spec §4.15 step 9).
func extractCitations(answer string, used []contextChunk) []store.Citation {
	matches := citationRegexp.FindAllStringSubmatch(answer, -1)
	seen := make(map[int]bool)
	var citations []store.Citation
	answerWords := wordSet(answer)

	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(used) || seen[n] {
			continue
		}
		seen[n] = true
		cc := used[n-1]
		citations = append(citations, store.Citation{
			DocumentID: cc.docID,
			PageNumber: cc.chunk.PageNumber,
			Snippet:    bestSnippet(cc.chunk.Content, answerWords),
			ChunkID:    cc.chunk.ID,
		})
	}

	return citations
}

// bestSnippet picks the sentence of content with the highest count of
// lowercased word types shared with answerWords, truncated to 150 chars.
func bestSnippet(content string, answerWords map[string]struct{}) string {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return truncateRunes(content, 150)
	}
	best := sentences[0]
	bestOverlap := -1
	for _, s := range sentences {
		overlap := 0
		for w := range wordSet(s) {
			if _, ok := answerWords[w]; ok {
				overlap++
			}
		}
		if overlap > bestOverlap {
			bestOverlap = overlap
			best = s
		}
	}
	return truncateRunes(strings.TrimSpace(best), 150)
}

var sentenceSplitRegexp = regexp.MustCompile(`(?s)[^.!?]+[.!?]*`)

func splitSentences(text string) []string {
	raw := sentenceSplitRegexp.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

var wordRegexp = regexp.MustCompile(`\p{L}[\p{L}\p{M}]*`)

func wordSet(text string) map[string]struct{} {
	words := wordRegexp.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func keywordScope(uploadFilter string) keyword.Scope {
	if uploadFilter == "" {
		return keyword.Scope{Kind: keyword.ScopeGlobal}
	}
	return keyword.Scope{Kind: keyword.ScopeUpload, ID: uploadFilter}
}

func nullableFilter(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func wrapCitations(c []store.Citation) datatypes.JSONType[[]store.Citation] {
	if c == nil {
		c = []store.Citation{}
	}
	return datatypes.NewJSONType(c)
}

func wrapIDs(ids []string) datatypes.JSONType[[]string] {
	if ids == nil {
		ids = []string{}
	}
	return datatypes.NewJSONType(ids)
}

func wrapStats(s store.RetrievalStats) datatypes.JSONType[store.RetrievalStats] {
	return datatypes.NewJSONType(s)
}
