package knowledge

import "context"

// Result is one scored chunk returned by the vector-retrieval service.
type Result struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	// Source is the citation URI for the chunk's origin document.
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Retriever is the vector-retrieval contract the pipeline consumes: a query
// string in, scored chunks with source URIs out. Implementations enforce
// their own minimum-score filter.
type Retriever interface {
	Retrieve(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Document is a knowledge-base entry indexed for retrieval.
type Document struct {
	ID      string
	Title   string
	Content string
}
