// Package vectorstore defines the similarity-search index used by the
// memory server. Vectors for the SQL-backed servers live in the database
// itself and never pass through here.
package vectorstore

import (
	"context"
)

// Vector is a single dense embedding vector.
type Vector []float32

// Item represents a vectorized record with metadata for filtering.
type Item struct {
	// ID is the caller-provided unique identifier for the item.
	ID string
	// Namespace groups items logically (e.g., by dataset or collection).
	Namespace string
	// Vector is the dense embedding.
	Vector Vector
	// Metadata carries arbitrary attributes for filtering (e.g., user_id, run_id).
	Metadata map[string]any
}

// Match is a search result with similarity score and original item.
type Match struct {
	Item  Item
	Score float32 // higher is more similar
}

// VectorStore defines upsert, similarity query and delete operations.
type VectorStore interface {
	// Upsert inserts or replaces items by ID within a namespace.
	Upsert(ctx context.Context, items []Item) error
	// Query returns top-k most similar items to the query vector, optionally
	// filtered by namespace and metadata.
	Query(ctx context.Context, query Vector, k int, filter Filter) ([]Match, error)
	// Delete removes items by ID across all namespaces. Unknown ids are
	// ignored.
	Delete(ctx context.Context, ids ...string) error
}

// Filter constrains query results.
type Filter struct {
	Namespace string
	// Equals matches exact key/value pairs in metadata (AND semantics across keys).
	Equals map[string]any
}
