package hash

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedDeterministicAndNormalized(t *testing.T) {
	e := NewEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Vector search over course content.")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "Vector search over course content.")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.Len(t, a, 64)

	norm := 0.0
	for _, v := range a {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-9)
}

func TestEmbedSimilarTextsScoreCloser(t *testing.T) {
	e := NewEmbedder(128)
	ctx := context.Background()

	query, err := e.Embed(ctx, "embedding vectors for search")
	require.NoError(t, err)
	near, err := e.Embed(ctx, "search using embedding vectors")
	require.NoError(t, err)
	far, err := e.Embed(ctx, "chocolate cake recipe ingredients")
	require.NoError(t, err)

	assert.Greater(t, dot(query, near), dot(query, far))
}

func TestEmbedEmptyAndStopwordOnlyText(t *testing.T) {
	e := NewEmbedder(32)
	ctx := context.Background()

	vec, err := e.Embed(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 32), vec)

	vec, err = e.Embed(ctx, "the and of to in")
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 32), vec)
}

func TestDefaults(t *testing.T) {
	e := NewEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())
	assert.Equal(t, "hash", e.Name())
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	if math.IsNaN(sum) {
		return 0
	}
	return sum
}
