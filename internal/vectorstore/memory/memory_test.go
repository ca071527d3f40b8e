package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courserag/internal/vectorstore"
)

func TestUpsertPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()
	require.NoError(t, e.CreateCollection(ctx, "c"))
	require.NoError(t, e.Upsert(ctx, "c", []vectorstore.Item{
		{ID: "b", Document: "second"},
		{ID: "a", Document: "first"},
	}))
	// Re-upserting an existing id keeps its original position.
	require.NoError(t, e.Upsert(ctx, "c", []vectorstore.Item{{ID: "b", Document: "updated"}}))

	items, err := e.Get(ctx, "c", nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, "updated", items[0].Document)
	assert.Equal(t, "a", items[1].ID)

	n, err := e.Count(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestQueryRanksByCosineDistance(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()
	require.NoError(t, e.CreateCollection(ctx, "c"))
	require.NoError(t, e.Upsert(ctx, "c", []vectorstore.Item{
		{ID: "far", Document: "far", Embedding: []float64{0, 1}},
		{ID: "near", Document: "near", Embedding: []float64{1, 0}},
	}))

	res, err := e.Query(ctx, "c", []float64{1, 0}, nil, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"near", "far"}, res.IDs)
	assert.InDelta(t, 0.0, res.Distances[0], 1e-9)
	assert.InDelta(t, 1.0, res.Distances[1], 1e-9)
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()
	require.NoError(t, e.CreateCollection(ctx, "c"))
	require.NoError(t, e.Upsert(ctx, "c", []vectorstore.Item{
		{ID: "1", Embedding: []float64{1, 0}, Metadata: map[string]any{"course_title": "Go", "lesson_number": 1}},
		{ID: "2", Embedding: []float64{1, 0}, Metadata: map[string]any{"course_title": "Go", "lesson_number": 2}},
		{ID: "3", Embedding: []float64{1, 0}, Metadata: map[string]any{"course_title": "Rust", "lesson_number": 1}},
	}))
	q := []float64{1, 0}

	res, err := e.Query(ctx, "c", q, map[string]any{"course_title": "Go"}, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, res.IDs)

	// JSON round trips turn ints into float64; both sides must still match.
	res, err = e.Query(ctx, "c", q, map[string]any{"lesson_number": float64(1)}, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "3"}, res.IDs)

	res, err = e.Query(ctx, "c", q, map[string]any{"$and": []map[string]any{
		{"course_title": "Go"},
		{"lesson_number": 1},
	}}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, res.IDs)
}

func TestQueryLimit(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()
	require.NoError(t, e.CreateCollection(ctx, "c"))
	require.NoError(t, e.Upsert(ctx, "c", []vectorstore.Item{
		{ID: "1", Embedding: []float64{1, 0}},
		{ID: "2", Embedding: []float64{1, 0}},
		{ID: "3", Embedding: []float64{1, 0}},
	}))
	res, err := e.Query(ctx, "c", []float64{1, 0}, nil, 2)
	require.NoError(t, err)
	assert.Len(t, res.IDs, 2)
}

func TestUnknownCollection(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()
	_, err := e.Query(ctx, "missing", []float64{1}, nil, 1)
	assert.Error(t, err)
	_, err = e.Get(ctx, "missing", nil)
	assert.Error(t, err)
	assert.Error(t, e.Upsert(ctx, "missing", nil))
}

func TestDeleteCollection(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()
	require.NoError(t, e.CreateCollection(ctx, "c"))
	require.NoError(t, e.Upsert(ctx, "c", []vectorstore.Item{{ID: "1"}}))
	require.NoError(t, e.DeleteCollection(ctx, "c"))
	_, err := e.Count(ctx, "c")
	assert.Error(t, err)
}
