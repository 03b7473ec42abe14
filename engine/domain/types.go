// Package domain defines the core document search types, the error taxonomy
// shared by every pipeline stage, and validation at the query entry point.
package domain

// Document is a named unit of extracted source text.
type Document struct {
	Name    string `json:"name"`
	RawText string `json:"raw_text"`
}

// Chunk is a contiguous substring of a Document's text.
type Chunk struct {
	ID         string `json:"id"`
	SourceName string `json:"source_name"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
}

// IndexedDocument is the unit persisted in the vector index.
type IndexedDocument struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	SourceFile string    `json:"source_file"`
	Embedding  []float32 `json:"-"`
}

// SearchResult is a single ranked hit returned to a query caller.
type SearchResult struct {
	ID         string  `json:"id,omitempty"`
	Score      float32 `json:"score"`
	Content    string  `json:"content"`
	SourceFile string  `json:"source_file"`
}

// Index field names shared by the indexer and the query engine.
const (
	FieldID         = "id"
	FieldContent    = "content"
	FieldSourceFile = "source_file"
	FieldEmbedding  = "embedding"
)
