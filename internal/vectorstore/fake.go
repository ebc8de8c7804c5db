package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
)

// Fake is an in-memory Store for tests, satisfying the real interface per
// spec §9's redesign flag requiring interface-based providers testable with
// fakes.
type Fake struct {
	mu    sync.RWMutex
	dim   int
	items map[string]map[string]Item // namespace -> id -> item
}

// NewFake builds an empty Fake store.
func NewFake() *Fake {
	return &Fake{items: make(map[string]map[string]Item)}
}

func (f *Fake) EnsureIndex(ctx context.Context, name string, dim int, metric string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dim != 0 && f.dim != dim {
		return &coreerrors.DimensionMismatchError{Actual: dim, Expected: f.dim}
	}
	f.dim = dim
	return nil
}

func (f *Fake) Upsert(ctx context.Context, namespace string, items []Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns, ok := f.items[namespace]
	if !ok {
		ns = make(map[string]Item)
		f.items[namespace] = ns
	}
	for _, it := range items {
		ns[it.ID] = it
	}
	return nil
}

func (f *Fake) DeleteByIDs(ctx context.Context, namespace string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns, ok := f.items[namespace]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(ns, id)
	}
	return nil
}

func (f *Fake) DeleteByFilter(ctx context.Context, namespace string, filter Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ns, ok := f.items[namespace]
	if !ok {
		return nil
	}
	for id, it := range ns {
		if matchesFilter(it, filter) {
			delete(ns, id)
		}
	}
	return nil
}

func (f *Fake) DeleteNamespace(ctx context.Context, namespace string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, namespace)
	return nil
}

// namespaces returns the namespace maps to search: just the one named, or
// every namespace when namespace is "" (the query engine's cross-upload
// global scope, spec §4.15).
func (f *Fake) namespaces(namespace string) []map[string]Item {
	if namespace != "" {
		if ns, ok := f.items[namespace]; ok {
			return []map[string]Item{ns}
		}
		return nil
	}
	out := make([]map[string]Item, 0, len(f.items))
	for _, ns := range f.items {
		out = append(out, ns)
	}
	return out
}

func (f *Fake) Query(ctx context.Context, namespace string, vector []float32, topK int, filter Filter) ([]Match, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var matches []Match
	for _, ns := range f.namespaces(namespace) {
		for _, it := range ns {
			if !matchesFilter(it, filter) {
				continue
			}
			matches = append(matches, Match{ID: it.ID, Score: cosine(vector, it.Vector), Metadata: it.Metadata})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (f *Fake) Stats(ctx context.Context, namespace string) (Stats, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	count := 0
	for _, ns := range f.namespaces(namespace) {
		count += len(ns)
	}
	return Stats{VectorCount: count}, nil
}

func (f *Fake) FetchVectors(ctx context.Context, namespace string, ids []string) (map[string][]float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string][]float32, len(ids))
	for _, ns := range f.namespaces(namespace) {
		for _, id := range ids {
			if it, ok := ns[id]; ok {
				out[id] = it.Vector
			}
		}
	}
	return out, nil
}

func matchesFilter(it Item, filter Filter) bool {
	for k, v := range filter {
		if it.Metadata[k] != v {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
