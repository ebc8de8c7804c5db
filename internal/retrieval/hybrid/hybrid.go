// Package hybrid implements the Hybrid Retriever (C12): Reciprocal Rank
// Fusion over the Semantic (C11) and Keyword (C10) candidate lists,
// grounded on the weighted score-merge idiom of other_examples'
// sweetpotato0-ai-allin hybrid engine, generalized from its fixed-weight sum
// to the spec's rank-based RRF formula.
package hybrid

import "sort"

// Ranked is one ranked candidate from either source list.
type Ranked struct {
	ChunkID string
}

// Fused is one chunk after fusion, carrying enough of its source ranks for
// deterministic tie-breaking.
type Fused struct {
	ChunkID      string
	Score        float64
	SemanticRank int // 0-based; -1 if absent from the semantic list
	KeywordRank  int // 0-based; -1 if absent from the keyword list
}

// Fuse combines semantic and keyword candidate lists (each already sorted by
// descending relevance) via Reciprocal Rank Fusion and returns the top_k
// fused results (spec §4.12).
func Fuse(semantic, keyword []Ranked, rrfK, topK int) []Fused {
	semRank := make(map[string]int, len(semantic))
	for i, r := range semantic {
		semRank[r.ChunkID] = i
	}
	kwRank := make(map[string]int, len(keyword))
	for i, r := range keyword {
		kwRank[r.ChunkID] = i
	}

	seen := make(map[string]struct{}, len(semantic)+len(keyword))
	var ids []string
	for _, r := range semantic {
		if _, ok := seen[r.ChunkID]; !ok {
			seen[r.ChunkID] = struct{}{}
			ids = append(ids, r.ChunkID)
		}
	}
	for _, r := range keyword {
		if _, ok := seen[r.ChunkID]; !ok {
			seen[r.ChunkID] = struct{}{}
			ids = append(ids, r.ChunkID)
		}
	}

	fused := make([]Fused, 0, len(ids))
	for _, id := range ids {
		score := 0.0
		sr, hasS := semRank[id]
		if hasS {
			score += 1.0 / float64(rrfK+sr+1)
		} else {
			sr = -1
		}
		kr, hasK := kwRank[id]
		if hasK {
			score += 1.0 / float64(rrfK+kr+1)
		} else {
			kr = -1
		}
		fused = append(fused, Fused{ChunkID: id, Score: score, SemanticRank: sr, KeywordRank: kr})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		if fused[i].SemanticRank != fused[j].SemanticRank {
			return rankLess(fused[i].SemanticRank, fused[j].SemanticRank)
		}
		return rankLess(fused[i].KeywordRank, fused[j].KeywordRank)
	})

	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}

// rankLess orders ranks ascending, with "absent" (-1) sorted last.
func rankLess(a, b int) bool {
	if a == -1 {
		return false
	}
	if b == -1 {
		return true
	}
	return a < b
}
