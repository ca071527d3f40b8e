package vectorstore

import "context"

// Item is one row of a collection: a document embedded on its text plus
// arbitrary metadata, addressed by a caller-chosen id. Upserting an existing
// id replaces the row.
type Item struct {
	ID        string
	Document  string
	Metadata  map[string]any
	Embedding []float64
}

// QueryResult holds parallel arrays for the nearest neighbors of a query
// embedding, ordered by ascending distance.
type QueryResult struct {
	IDs       []string
	Documents []string
	Metadatas []map[string]any
	Distances []float64
}

// Engine is the vector-database boundary. Filters are nil, a single
// {field: value} equality, or {"$and": [eq, eq]}; no other shapes occur.
// Implementations must serialize concurrent writers while allowing
// concurrent readers.
type Engine interface {
	CreateCollection(ctx context.Context, name string) error
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, items []Item) error
	Query(ctx context.Context, collection string, embedding []float64, filter map[string]any, n int) (QueryResult, error)
	// Get returns rows by id in insertion order; nil ids returns all rows.
	Get(ctx context.Context, collection string, ids []string) ([]Item, error)
	Count(ctx context.Context, collection string) (int, error)
}
