package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"courserag/internal/vectorstore"
)

// Engine is an in-memory vector engine using brute-force cosine similarity.
// Writers are serialized while readers run concurrently. Useful for tests
// and fully offline setups.
type Engine struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	order []string
	items map[string]vectorstore.Item
}

func NewEngine() *Engine {
	return &Engine{collections: make(map[string]*collection)}
}

func (e *Engine) CreateCollection(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.collections[name]; !ok {
		e.collections[name] = &collection{items: make(map[string]vectorstore.Item)}
	}
	return nil
}

func (e *Engine) DeleteCollection(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.collections, name)
	return nil
}

func (e *Engine) Upsert(_ context.Context, name string, items []vectorstore.Item) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.collections[name]
	if !ok {
		return fmt.Errorf("unknown collection %q", name)
	}
	for _, item := range items {
		if _, exists := c.items[item.ID]; !exists {
			c.order = append(c.order, item.ID)
		}
		c.items[item.ID] = item
	}
	return nil
}

func (e *Engine) Query(_ context.Context, name string, embedding []float64, filter map[string]any, n int) (vectorstore.QueryResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.collections[name]
	if !ok {
		return vectorstore.QueryResult{}, fmt.Errorf("unknown collection %q", name)
	}
	if n <= 0 {
		n = 5
	}

	type scored struct {
		id       string
		distance float64
	}
	var candidates []scored
	for _, id := range c.order {
		item := c.items[id]
		if !matchesFilter(item.Metadata, filter) {
			continue
		}
		// Vectors are L2-normalized, so 1-dot is the cosine distance.
		candidates = append(candidates, scored{id: id, distance: 1 - dot(item.Embedding, embedding)})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].distance < candidates[j].distance })
	if n > len(candidates) {
		n = len(candidates)
	}

	var res vectorstore.QueryResult
	for _, cand := range candidates[:n] {
		item := c.items[cand.id]
		res.IDs = append(res.IDs, item.ID)
		res.Documents = append(res.Documents, item.Document)
		res.Metadatas = append(res.Metadatas, item.Metadata)
		res.Distances = append(res.Distances, cand.distance)
	}
	return res, nil
}

func (e *Engine) Get(_ context.Context, name string, ids []string) ([]vectorstore.Item, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.collections[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", name)
	}
	if ids == nil {
		out := make([]vectorstore.Item, 0, len(c.order))
		for _, id := range c.order {
			out = append(out, c.items[id])
		}
		return out, nil
	}
	var out []vectorstore.Item
	for _, id := range ids {
		if item, exists := c.items[id]; exists {
			out = append(out, item)
		}
	}
	return out, nil
}

func (e *Engine) Count(_ context.Context, name string) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.collections[name]
	if !ok {
		return 0, fmt.Errorf("unknown collection %q", name)
	}
	return len(c.order), nil
}

// matchesFilter evaluates the nil / single-equality / $and filter shapes.
func matchesFilter(metadata, filter map[string]any) bool {
	if filter == nil {
		return true
	}
	if and, ok := filter["$and"]; ok {
		clauses, ok := and.([]map[string]any)
		if !ok {
			return false
		}
		for _, clause := range clauses {
			if !matchesFilter(metadata, clause) {
				return false
			}
		}
		return true
	}
	for key, want := range filter {
		if !equalValue(metadata[key], want) {
			return false
		}
	}
	return true
}

// equalValue compares metadata values, tolerating int/float64 mismatches
// from JSON round trips.
func equalValue(got, want any) bool {
	if gi, ok := asFloat(got); ok {
		if wi, ok := asFloat(want); ok {
			return gi == wi
		}
		return false
	}
	return got == want
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
