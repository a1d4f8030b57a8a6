package vectorstore_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/supportd/internal/logging"
	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

// hashEmbedder produces deterministic unit vectors so similarity ranking
// is stable across runs. Chromem expects normalized embeddings.
type hashEmbedder struct {
	size int
}

func (e *hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e *hashEmbedder) embed(text string) []float32 {
	hash := 0
	for _, c := range text {
		hash = (hash*31 + int(c)) % 1000
	}
	v := make([]float32, e.size)
	var sumSq float64
	for i := range v {
		v[i] = float32((hash+i)%100) / 100.0
		sumSq += float64(v[i]) * float64(v[i])
	}
	norm := float32(1.0 / math.Sqrt(sumSq))
	for i := range v {
		v[i] *= norm
	}
	return v
}

func newTestStore(t *testing.T) *vectorstore.ChromemStore {
	t.Helper()
	store, err := vectorstore.NewChromemStore(
		vectorstore.ChromemConfig{Collection: "kb_test"},
		&hashEmbedder{size: 64},
		logging.NewTestLogger().Logger,
	)
	require.NoError(t, err)
	return store
}

func TestChromemStoreAddAndSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ids, err := store.AddDocuments(ctx, []vectorstore.Document{
		{ID: "doc-1", Content: "How to reset your router", Metadata: map[string]interface{}{"access_role": "customer"}},
		{ID: "doc-2", Content: "Billing cycle explained", Metadata: map[string]interface{}{"access_role": "customer"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1", "doc-2"}, ids)

	results, err := store.Search(ctx, "How to reset your router", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The exact match ranks first with identical embeddings.
	assert.Equal(t, "doc-1", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
	assert.Equal(t, "customer", results[0].Metadata["access_role"])
}

func TestChromemStoreSearchWithFilters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.AddDocuments(ctx, []vectorstore.Document{
		{ID: "pub", Content: "Public troubleshooting guide", Metadata: map[string]interface{}{"access_role": "customer"}},
		{ID: "int", Content: "Internal escalation runbook", Metadata: map[string]interface{}{"access_role": "agent"}},
	})
	require.NoError(t, err)

	results, err := store.SearchWithFilters(ctx, "troubleshooting", 1,
		map[string]interface{}{"access_role": "agent"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "int", results[0].ID)
}

func TestChromemStoreEmptyCollection(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStoreRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.AddDocuments(ctx, nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyDocuments)

	_, err = store.Search(ctx, "", 3)
	assert.Error(t, err)

	_, err = store.Search(ctx, "query", 0)
	assert.Error(t, err)
}

func TestNewChromemStoreValidation(t *testing.T) {
	_, err := vectorstore.NewChromemStore(
		vectorstore.ChromemConfig{},
		&hashEmbedder{size: 8},
		logging.NewTestLogger().Logger,
	)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)

	_, err = vectorstore.NewChromemStore(
		vectorstore.ChromemConfig{Collection: "kb"},
		nil,
		logging.NewTestLogger().Logger,
	)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}
