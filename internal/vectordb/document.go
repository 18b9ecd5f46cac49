package vectordb

import "time"

// DocumentType tells which kind of knowledge source a chunk came from.
type DocumentType string

const (
	DocTypeFAQ    DocumentType = "faq"
	DocTypePolicy DocumentType = "policy"
	DocTypeTerms  DocumentType = "terms"
	DocTypeGuide  DocumentType = "guide"
	DocTypeText   DocumentType = "text"
)

// Document is one retrievable chunk of the knowledge base.
type Document struct {
	ID       string
	Content  string
	Metadata DocumentMetadata
}

// DocumentMetadata describes where a chunk came from.
type DocumentMetadata struct {
	Source      string // file name of the source document
	Type        DocumentType
	Chunk       int
	ContentHash string
	LastUpdated time.Time
}

// SearchResult pairs a document with its similarity score.
type SearchResult struct {
	Document   Document
	Similarity float32
}

// SearchFilter narrows a search by metadata.
type SearchFilter struct {
	Type   *DocumentType
	Source *string
}
