package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	coreerrors "github.com/docqa/ragcore/internal/core/errors"
)

// pointNamespace is a fixed UUID namespace used to derive a Qdrant-legal
// point UUID from our caller-chosen string ids ("chunk:{chunk_id}"), which
// Qdrant's point-id type otherwise rejects (it accepts only UUIDs or
// uint64s). The derivation is deterministic, preserving idempotent upserts.
var pointNamespace = uuid.MustParse("6f9619ff-8b86-d011-b42d-00cf4fc964ff")

// metricMap translates the spec's metric names to Qdrant's Distance enum.
var metricMap = map[string]qdrant.Distance{
	"cosine": qdrant.Distance_Cosine,
	"dot":    qdrant.Distance_Dot,
	"euclid": qdrant.Distance_Euclid,
}

// Qdrant implements Store against a single Qdrant collection. Namespaces
// (spec §4.7) are not modeled as separate Qdrant collections — Qdrant has no
// native namespace primitive — but as a "namespace" payload field filtered
// on every scoped operation, the idiom 54b3r-tfai-go uses for its "source"
// metadata field.
type Qdrant struct {
	client *qdrant.Client
	index  string
	dim    uint64
}

// NewQdrant connects to a Qdrant instance at host:port.
func NewQdrant(host string, port int, apiKey string, useTLS bool) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}
	return &Qdrant{client: client}, nil
}

// EnsureIndex creates the collection if absent; if present, it verifies the
// dimension matches (spec §4.7 / §4.6 startup contract).
func (q *Qdrant) EnsureIndex(ctx context.Context, name string, dim int, metric string) error {
	q.index = name
	q.dim = uint64(dim)

	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant: check collection existence: %w", err)
	}
	if exists {
		info, err := q.client.GetCollectionInfo(ctx, name)
		if err != nil {
			return fmt.Errorf("qdrant: get collection info: %w", err)
		}
		if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
			if actual := int(params.GetSize()); actual != dim {
				return &coreerrors.DimensionMismatchError{Actual: actual, Expected: dim}
			}
		}
		return nil
	}

	distance, ok := metricMap[metric]
	if !ok {
		distance = qdrant.Distance_Cosine
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: distance,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %q: %w", name, err)
	}
	return nil
}

// Upsert stores points with the namespace folded into the payload.
func (q *Qdrant) Upsert(ctx context.Context, namespace string, items []Item) error {
	points := make([]*qdrant.PointStruct, 0, len(items))
	for _, it := range items {
		payload := map[string]any{"namespace": namespace, "vector_id": it.ID}
		for k, v := range it.Metadata {
			payload[k] = v
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointUUID(it.ID)),
			Vectors: qdrant.NewVectors(it.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.index,
		Points:         points,
	})
	if err != nil {
		return &coreerrors.VectorStoreFailedError{Kind: "upsert", Err: err}
	}
	return nil
}

func (q *Qdrant) DeleteByIDs(ctx context.Context, namespace string, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(pointUUID(id)))
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.index,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return &coreerrors.VectorStoreFailedError{Kind: "delete_by_ids", Err: err}
	}
	return nil
}

func (q *Qdrant) DeleteByFilter(ctx context.Context, namespace string, filter Filter) error {
	_, err := q.client.DeleteWithFilter(ctx, q.index, namespaceFilter(namespace, filter))
	if err != nil {
		return &coreerrors.VectorStoreFailedError{Kind: "delete_by_filter", Err: err}
	}
	return nil
}

func (q *Qdrant) DeleteNamespace(ctx context.Context, namespace string) error {
	return q.DeleteByFilter(ctx, namespace, nil)
}

func (q *Qdrant) Query(ctx context.Context, namespace string, vector []float32, topK int, filter Filter) ([]Match, error) {
	limit := uint64(topK)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.index,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         namespaceFilter(namespace, filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &coreerrors.VectorStoreFailedError{Kind: "query", Err: err}
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		metadata := map[string]any{}
		var vectorID string
		for k, v := range r.GetPayload() {
			if k == "vector_id" {
				vectorID = v.GetStringValue()
				continue
			}
			if k == "namespace" {
				continue
			}
			metadata[k] = payloadToAny(v)
		}
		matches = append(matches, Match{ID: vectorID, Score: r.GetScore(), Metadata: metadata})
	}
	return matches, nil
}

func (q *Qdrant) Stats(ctx context.Context, namespace string) (Stats, error) {
	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.index,
		Filter:         namespaceFilter(namespace, nil),
	})
	if err != nil {
		return Stats{}, &coreerrors.VectorStoreFailedError{Kind: "stats", Err: err}
	}
	return Stats{VectorCount: int(count)}, nil
}

func (q *Qdrant) FetchVectors(ctx context.Context, namespace string, ids []string) (map[string][]float32, error) {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(pointUUID(id)))
	}
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.index,
		Ids:            pointIDs,
		WithVectors:    qdrant.NewWithVectorsEnable(true),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &coreerrors.VectorStoreFailedError{Kind: "fetch_vectors", Err: err}
	}
	out := make(map[string][]float32, len(points))
	for _, p := range points {
		vectorID := p.GetPayload()["vector_id"].GetStringValue()
		out[vectorID] = p.GetVectors().GetVector().GetData()
	}
	return out, nil
}

// namespaceFilter scopes a query to one namespace, or leaves it unscoped
// (cross-upload global search, spec §4.15) when namespace is "".
func namespaceFilter(namespace string, extra Filter) *qdrant.Filter {
	var conds []*qdrant.Condition
	if namespace != "" {
		conds = append(conds, qdrant.NewMatch("namespace", namespace))
	}
	for k, v := range extra {
		if s, ok := v.(string); ok {
			conds = append(conds, qdrant.NewMatch(k, s))
		}
	}
	return &qdrant.Filter{Must: conds}
}

func payloadToAny(v *qdrant.Value) any {
	switch {
	case v.GetStringValue() != "":
		return v.GetStringValue()
	case v.GetIntegerValue() != 0:
		return v.GetIntegerValue()
	default:
		return v.GetStringValue()
	}
}

// pointUUID derives a deterministic UUID from an external vector id.
func pointUUID(id string) string { return uuid.NewSHA1(pointNamespace, []byte(id)).String() }
