package semantic

import "github.com/WessleyAI/docsearch/engine/domain"

// HNSWProfile names the nearest-neighbor search profile of the vector field.
type HNSWProfile struct {
	Name        string
	Algorithm   string
	M           uint64
	EfConstruct uint64
}

// Schema describes the index layout. The key field (domain.FieldID) is
// always present; Searchable fields get a full-text payload index and
// Filterable fields a keyword index.
type Schema struct {
	VectorField string
	Dimensions  int
	Profile     HNSWProfile
	Searchable  []string
	Filterable  []string
}

// DefaultSchema is the document search layout: id, content (searchable),
// source_file (filterable) and a cosine embedding vector of dims dimensions.
func DefaultSchema(dims int) Schema {
	return Schema{
		VectorField: domain.FieldEmbedding,
		Dimensions:  dims,
		Profile: HNSWProfile{
			Name:        "hnsw-profile",
			Algorithm:   "hnsw",
			M:           16,
			EfConstruct: 100,
		},
		Searchable: []string{domain.FieldContent},
		Filterable: []string{domain.FieldID, domain.FieldSourceFile},
	}
}

// Hit is a single scored point with the requested payload fields.
type Hit struct {
	PointID string
	Score   float32
	Fields  map[string]string
}
