package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ecomarket/ecobot/internal/embeddings"
)

const (
	// DefaultCollection is the collection the knowledge base lives in.
	DefaultCollection = "ecomarket_rag_data"
	// PersistFile is the file name Persist writes under its directory.
	PersistFile = "knowledge.gob.gz"
	// ManifestFile records what the persisted index was built with.
	ManifestFile = "manifest.json"
)

// ErrEmbedderMismatch is returned by Load when the index on disk was built
// with a different embedding model; its vectors are not comparable.
var ErrEmbedderMismatch = errors.New("index built with a different embedder")

// Manifest describes a persisted index.
type Manifest struct {
	Embedder   string    `json:"embedder"`
	Collection string    `json:"collection"`
	Documents  int       `json:"documents"`
	BuiltAt    time.Time `json:"built_at"`
}

// ChromemStore implements VectorStore on chromem-go.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	embedder   string
	embedFunc  chromem.EmbeddingFunc
	now        func() time.Time
}

// NewChromemStore creates an empty in-memory store. An empty collection
// name selects DefaultCollection.
func NewChromemStore(embedder embeddings.Embedder, collection string) (*ChromemStore, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collection, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &ChromemStore{
		db:         db,
		collection: col,
		name:       collection,
		embedder:   embedder.Name(),
		embedFunc:  ef,
		now:        time.Now,
	}, nil
}

func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromDocs[i] = chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: metadataToMap(doc.Metadata),
		}
	}
	return s.collection.AddDocuments(ctx, chromDocs, runtime.NumCPU())
}

func (s *ChromemStore) Search(ctx context.Context, query string, limit int, filter *SearchFilter) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	limit = min(limit, count)

	results, err := s.collection.Query(ctx, query, limit, buildWhereClause(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: mapToMetadata(r.Metadata),
			},
			Similarity: r.Similarity,
		}
	}
	return out, nil
}

// Persist writes the collection and its manifest under dir.
func (s *ChromemStore) Persist(_ context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create persist dir: %w", err)
	}
	if err := s.db.ExportToFile(filepath.Join(dir, PersistFile), true, ""); err != nil {
		return fmt.Errorf("export to file: %w", err)
	}
	m := Manifest{
		Embedder:   s.embedder,
		Collection: s.name,
		Documents:  s.collection.Count(),
		BuiltAt:    s.now().UTC(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Load replaces the store's content with an index Persist wrote under dir.
// An index without a manifest is accepted; one built with another
// embedder is refused with ErrEmbedderMismatch.
func (s *ChromemStore) Load(_ context.Context, dir string) error {
	m, err := ReadManifest(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return err
	case m.Embedder != s.embedder:
		return fmt.Errorf("%w: %s, want %s", ErrEmbedderMismatch, m.Embedder, s.embedder)
	}

	path := filepath.Join(dir, PersistFile)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := s.db.ImportFromFile(path, ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(s.name, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", s.name)
	}
	s.collection = col
	return nil
}

// ReadManifest reads the manifest under dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

func metadataToMap(m DocumentMetadata) map[string]string {
	return map[string]string{
		"source":       m.Source,
		"type":         string(m.Type),
		"chunk":        strconv.Itoa(m.Chunk),
		"content_hash": m.ContentHash,
		"last_updated": m.LastUpdated.Format(time.RFC3339),
	}
}

func mapToMetadata(m map[string]string) DocumentMetadata {
	chunk, _ := strconv.Atoi(m["chunk"])
	lastUpdated, _ := time.Parse(time.RFC3339, m["last_updated"])
	return DocumentMetadata{
		Source:      m["source"],
		Type:        DocumentType(m["type"]),
		Chunk:       chunk,
		ContentHash: m["content_hash"],
		LastUpdated: lastUpdated,
	}
}

func buildWhereClause(filter *SearchFilter) map[string]string {
	if filter == nil {
		return nil
	}
	where := make(map[string]string)
	if filter.Type != nil {
		where["type"] = string(*filter.Type)
	}
	if filter.Source != nil {
		where["source"] = *filter.Source
	}
	if len(where) == 0 {
		return nil
	}
	return where
}
