// Package vectordb stores knowledge-base chunks with their embeddings and
// retrieves the ones closest to a question.
package vectordb

import "context"

// VectorStore stores and searches documents by embedding.
type VectorStore interface {
	// AddDocuments adds or replaces documents by ID.
	AddDocuments(ctx context.Context, docs []Document) error

	// Search returns up to limit documents closest to query.
	Search(ctx context.Context, query string, limit int, filter *SearchFilter) ([]SearchResult, error)

	// Persist writes the store under dir.
	Persist(ctx context.Context, dir string) error

	// Load replaces the store's content with what Persist wrote under dir.
	Load(ctx context.Context, dir string) error

	// Count returns the number of stored documents.
	Count() int
}
