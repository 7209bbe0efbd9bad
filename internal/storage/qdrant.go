package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	// DefaultCollectionName is the Qdrant collection holding knowledge chunks.
	DefaultCollectionName = "medical_knowledge"

	// vectorName is the named vector every chunk is stored under.
	vectorName = "content"

	payloadDocID   = "doc_id"
	payloadContent = "content"
)

// pointNamespace derives Qdrant point UUIDs from caller ids, which may be any string.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("medrag.knowledge"))

// indexedFields get keyword payload indexes so filtered queries stay fast.
var indexedFields = []string{
	payloadDocID,
	"source",
	"title",
	"specialty",
	"revision",
}

// QdrantConfig configures the Qdrant connection.
type QdrantConfig struct {
	Host       string
	Port       int // gRPC port
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// QdrantBackend is a Backend stored in a Qdrant collection with cosine distance.
type QdrantBackend struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantBackend connects to Qdrant and waits for it to report healthy,
// retrying with exponential backoff before giving up.
func NewQdrantBackend(cfg QdrantConfig) (*QdrantBackend, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollectionName
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	b := &QdrantBackend{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
	}

	if err := b.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}

	return b, nil
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

func (b *QdrantBackend) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return b.Health(ctx)
	}, backoff.WithContext(newBackoff(), ctx))
}

// Health performs a single health check against Qdrant.
func (b *QdrantBackend) Health(ctx context.Context) error {
	result, err := b.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the collection and its payload indexes if missing.
// Idempotent.
func (b *QdrantBackend) EnsureCollection(ctx context.Context) error {
	exists, err := b.client.CollectionExists(ctx, b.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(b.dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	for _, field := range indexedFields {
		_, err := b.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: b.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// ClearCollection drops and recreates the collection.
func (b *QdrantBackend) ClearCollection(ctx context.Context) error {
	if err := b.DropCollection(ctx); err != nil {
		return err
	}
	return b.EnsureCollection(ctx)
}

// DropCollection deletes the collection and every point in it.
func (b *QdrantBackend) DropCollection(ctx context.Context) error {
	if err := b.client.DeleteCollection(ctx, b.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

// Close closes the Qdrant client connection.
func (b *QdrantBackend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

// Upsert stores docs as points, retrying transient failures.
func (b *QdrantBackend) Upsert(ctx context.Context, docs []EmbeddedDocument) error {
	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		payload := make(map[string]any, len(doc.Metadata)+2)
		for k, v := range doc.Metadata {
			payload[k] = v
		}
		payload[payloadDocID] = doc.ID
		payload[payloadContent] = doc.Content

		points[i] = &qdrant.PointStruct{
			Id: pointID(doc.ID),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				vectorName: qdrant.NewVector(doc.Vector...),
			}),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	return backoff.Retry(func() error {
		_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: b.collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	}, backoff.WithContext(newBackoff(), ctx))
}

// Query performs a cosine similarity search on the named content vector.
func (b *QdrantBackend) Query(ctx context.Context, vector []float32, limit int, threshold float64, filter Filter) ([]SearchHit, error) {
	name := vectorName
	results, err := b.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: b.collection,
		Query:          qdrant.NewQuery(vector...),
		Using:          &name,
		Filter:         buildFilter(filter),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(float32(threshold)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, result := range results {
		metadata := make(map[string]any, len(result.Payload))
		for k, v := range result.Payload {
			if k == payloadDocID || k == payloadContent {
				continue
			}
			if val := fromValue(v); val != nil {
				metadata[k] = val
			}
		}

		hits = append(hits, SearchHit{
			ID:       result.Payload[payloadDocID].GetStringValue(),
			Content:  result.Payload[payloadContent].GetStringValue(),
			Score:    float64(result.Score),
			Metadata: metadata,
		})
	}
	return hits, nil
}

// Delete removes the points for ids.
func (b *QdrantBackend) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = pointID(id)
	}

	_, err := b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: b.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (b *QdrantBackend) Count(ctx context.Context) (uint64, error) {
	count, err := b.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: b.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}

func pointID(id string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(pointNamespace, []byte(id)).String())
}

func buildFilter(filter Filter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(filter))
	for _, k := range filter.Keys() {
		must = append(must, qdrant.NewMatch(k, filter[k]))
	}
	return &qdrant.Filter{Must: must}
}

func fromValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	default:
		return nil
	}
}
