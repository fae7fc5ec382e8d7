package rag

// Document is the unit stored and searched by a VectorStore: text content,
// its embedding, and arbitrary metadata carried through to search results.
type Document struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Embedding []float64              `json:"embedding,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
