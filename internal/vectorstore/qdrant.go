package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fyrsmithlabs/supportd/internal/logging"
)

// maxGRPCMessageSize bounds Qdrant gRPC payloads (32MB).
const maxGRPCMessageSize = 32 * 1024 * 1024

// QdrantStore is the external retrieval backend over gRPC, for deployments
// with a shared knowledge base larger than one node.
type QdrantStore struct {
	client     *qdrant.Client
	embedder   Embedder
	collection string
	logger     *logging.Logger
}

// QdrantConfig configures the Qdrant connection.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	VectorSize int
}

// NewQdrantStore connects to Qdrant and ensures the collection exists.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, embedder Embedder, logger *logging.Logger) (*QdrantStore, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder required", ErrInvalidConfig)
	}
	if cfg.VectorSize <= 0 {
		cfg.VectorSize = 384
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(maxGRPCMessageSize),
				grpc.MaxCallSendMsgSize(maxGRPCMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	s := &QdrantStore{
		client:     client,
		embedder:   embedder,
		collection: cfg.Collection,
		logger:     logger,
	}

	exists, err := client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("checking collection %s: %w", cfg.Collection, err)
	}
	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(cfg.VectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("creating collection %s: %w", cfg.Collection, err)
		}
	}

	return s, nil
}

// AddDocuments implements Store.
func (s *QdrantStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	ids := make([]string, len(docs))
	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		pointID := doc.ID
		if pointID == "" {
			pointID = uuid.NewString()
		}
		ids[i] = pointID

		payload := map[string]*qdrant.Value{
			"content": qdrant.NewValueString(doc.Content),
			"id":      qdrant.NewValueString(pointID),
		}
		for k, v := range doc.Metadata {
			switch val := v.(type) {
			case string:
				payload[k] = qdrant.NewValueString(val)
			case int:
				payload[k] = qdrant.NewValueInt(int64(val))
			case int64:
				payload[k] = qdrant.NewValueInt(val)
			case float64:
				payload[k] = qdrant.NewValueDouble(val)
			case bool:
				payload[k] = qdrant.NewValueBool(val)
			}
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: payload,
		}
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	}); err != nil {
		return nil, fmt.Errorf("upserting points: %w", err)
	}

	s.logger.Debug(ctx, "upserted documents to qdrant",
		zap.String("collection", s.collection),
		zap.Int("count", len(docs)),
	)
	return ids, nil
}

// Search implements Store.
func (s *QdrantStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	return s.SearchWithFilters(ctx, query, k, nil)
}

// SearchWithFilters implements Store.
func (s *QdrantStore) SearchWithFilters(ctx context.Context, query string, k int, filters map[string]interface{}) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	var filter *qdrant.Filter
	if len(filters) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(filters))
		for key, v := range filters {
			if keyword, ok := v.(string); ok {
				conditions = append(conditions, qdrant.NewMatch(key, keyword))
			}
		}
		if len(conditions) > 0 {
			filter = &qdrant.Filter{Must: conditions}
		}
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         filter,
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", s.collection, err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, point := range results {
		result := SearchResult{
			Score:    point.GetScore(),
			Metadata: make(map[string]interface{}),
		}
		for k, v := range point.GetPayload() {
			switch kind := v.GetKind().(type) {
			case *qdrant.Value_StringValue:
				switch k {
				case "content":
					result.Content = kind.StringValue
				case "id":
					result.ID = kind.StringValue
				default:
					result.Metadata[k] = kind.StringValue
				}
			case *qdrant.Value_IntegerValue:
				result.Metadata[k] = kind.IntegerValue
			case *qdrant.Value_DoubleValue:
				result.Metadata[k] = kind.DoubleValue
			case *qdrant.Value_BoolValue:
				result.Metadata[k] = kind.BoolValue
			}
		}
		out = append(out, result)
	}
	return out, nil
}

// Close implements Store.
func (s *QdrantStore) Close() error { return s.client.Close() }
