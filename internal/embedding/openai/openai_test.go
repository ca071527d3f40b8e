package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, dimension int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_EMBED_KEY", "test-key")
	c, err := NewClient(Config{
		BaseURL:   srv.URL,
		APIKeyEnv: "TEST_EMBED_KEY",
		Model:     "test-model",
		Dimension: dimension,
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "TEST_EMBED_KEY"})
	assert.Error(t, err)
}

func TestEmbedDecodesOpenAIShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}, 0)

	vec, err := c.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, c.Dimension())
}

func TestEmbedDecodesOllamaShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"embedding":[1,0]}`))
	}, 0)

	vec, err := c.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, vec)
}

func TestEmbedConcurrentCallsAgreeOnDimension(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":[0.5,0.5,0.5,0.5]}]}`))
	}, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vec, err := c.Embed(context.Background(), "concurrent text")
			assert.NoError(t, err)
			assert.Len(t, vec, 4)
		}()
	}
	wg.Wait()
	assert.Equal(t, 4, c.Dimension())
}

func TestEmbedConfiguredDimensionKept(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]}]}`))
	}, 1536)

	assert.Equal(t, 1536, c.Dimension())
	_, err := c.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, 1536, c.Dimension())
}

func TestEmbedRetriesOnServerError(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data":[{"embedding":[0.9]}]}`))
	}, 0)

	vec, err := c.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9}, vec)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}
