package vectorstore

// Result is one similarity match.
type Result struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	// Score is cosine similarity clamped to [0, 1]; higher is more similar.
	Score float64 `json:"score"`
}

// Source returns the result's source identifier.
func (r Result) Source() string {
	s, _ := r.Metadata["source"].(string)
	return s
}

// Page returns the page number if the result carries one.
func (r Result) Page() (int, bool) {
	p, ok := r.Metadata["page"].(int)
	return p, ok
}

// Stats describes a collection.
type Stats struct {
	// Name is the configured collection name.
	Name string `json:"name"`
	// Collection is the physical collection, namespaced by embedding model.
	Collection string `json:"collection"`
	Count      int    `json:"count"`
	Dimension  int    `json:"dimension"`
	Model      string `json:"model"`
}
