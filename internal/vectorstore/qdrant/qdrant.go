package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"courserag/internal/vectorstore"
)

// Engine is a minimal REST client to Qdrant implementing the vector engine
// boundary. It assumes cosine distance; collection creation is idempotent.
type Engine struct {
	url       string
	apiKey    string
	dimension int
	client    *http.Client
}

type Config struct {
	URL       string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant url is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("qdrant vector dimension is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Engine{
		url:       cfg.URL,
		apiKey:    cfg.APIKey,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (e *Engine) CreateCollection(ctx context.Context, name string) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     e.dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant returns 200 when the collection already exists with the same
	// schema, 409 otherwise.
	return e.putJSON(ctx, fmt.Sprintf("%s/collections/%s", e.url, name), body)
}

func (e *Engine) DeleteCollection(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", e.url, name), nil)
	if err != nil {
		return err
	}
	e.setHeaders(req)
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("qdrant DELETE collection %s failed: %s", name, resp.Status)
	}
	return nil
}

func (e *Engine) Upsert(ctx context.Context, collection string, items []vectorstore.Item) error {
	if len(items) == 0 {
		return nil
	}
	points := make([]map[string]any, len(items))
	for i, item := range items {
		payload := map[string]any{
			"__id":       item.ID,
			"__document": item.Document,
		}
		for k, v := range item.Metadata {
			payload[k] = v
		}
		points[i] = map[string]any{
			"id":      pointID(item.ID),
			"vector":  item.Embedding,
			"payload": payload,
		}
	}
	body := map[string]any{"points": points}
	return e.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", e.url, collection), body)
}

func (e *Engine) Query(ctx context.Context, collection string, embedding []float64, filter map[string]any, n int) (vectorstore.QueryResult, error) {
	if n <= 0 {
		n = 5
	}
	req := map[string]any{
		"vector":       embedding,
		"limit":        n,
		"with_payload": true,
	}
	if qf := toQdrantFilter(filter); qf != nil {
		req["filter"] = qf
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := e.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", e.url, collection), req, &resp); err != nil {
		return vectorstore.QueryResult{}, err
	}
	var out vectorstore.QueryResult
	for _, r := range resp.Result {
		item := itemFromPayload(r.Payload)
		out.IDs = append(out.IDs, item.ID)
		out.Documents = append(out.Documents, item.Document)
		out.Metadatas = append(out.Metadatas, item.Metadata)
		// Qdrant reports cosine similarity; callers expect ascending distance.
		out.Distances = append(out.Distances, 1-r.Score)
	}
	return out, nil
}

func (e *Engine) Get(ctx context.Context, collection string, ids []string) ([]vectorstore.Item, error) {
	var resp struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	req := map[string]any{
		"limit":        10000,
		"with_payload": true,
	}
	if ids != nil {
		should := make([]map[string]any, len(ids))
		for i, id := range ids {
			should[i] = map[string]any{"key": "__id", "match": map[string]any{"value": id}}
		}
		req["filter"] = map[string]any{"should": should}
	}
	if err := e.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/scroll", e.url, collection), req, &resp); err != nil {
		return nil, err
	}
	items := make([]vectorstore.Item, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		items = append(items, itemFromPayload(p.Payload))
	}
	return items, nil
}

func (e *Engine) Count(ctx context.Context, collection string) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := e.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/count", e.url, collection), map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// pointID derives a Qdrant-compatible numeric id from the row id.
func pointID(id string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(id); i++ {
		h ^= uint64(id[i])
		h *= prime64
	}
	return h
}

func itemFromPayload(payload map[string]any) vectorstore.Item {
	item := vectorstore.Item{Metadata: map[string]any{}}
	for k, v := range payload {
		switch k {
		case "__id":
			item.ID, _ = v.(string)
		case "__document":
			item.Document, _ = v.(string)
		default:
			item.Metadata[k] = v
		}
	}
	return item
}

// toQdrantFilter translates the nil / single-equality / $and filter shapes
// into Qdrant's must-clause format.
func toQdrantFilter(filter map[string]any) map[string]any {
	if filter == nil {
		return nil
	}
	var must []map[string]any
	appendClauses := func(clause map[string]any) {
		for k, v := range clause {
			must = append(must, map[string]any{"key": k, "match": map[string]any{"value": v}})
		}
	}
	if and, ok := filter["$and"].([]map[string]any); ok {
		for _, clause := range and {
			appendClauses(clause)
		}
	} else {
		appendClauses(filter)
	}
	return map[string]any{"must": must}
}

func (e *Engine) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("api-key", e.apiKey)
	}
}

func (e *Engine) putJSON(ctx context.Context, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	e.setHeaders(req)
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (e *Engine) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	e.setHeaders(req)
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
