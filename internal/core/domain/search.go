package domain

// SearchOptions configures a similarity query.
type SearchOptions struct {
	// Limit is the maximum number of results.
	// Zero means the configured default.
	Limit int

	// Threshold is the minimum similarity score, in [-1, 1].
	// Nil means the configured default.
	Threshold *float64

	// IncludeVector echoes the stored vector on each result.
	IncludeVector bool
}

// WithThreshold returns a copy of the options with Threshold set.
func (o SearchOptions) WithThreshold(t float64) SearchOptions {
	o.Threshold = &t
	return o
}

// SearchResult represents a single similarity hit.
type SearchResult struct {
	// ContentID is the matched record.
	ContentID string `json:"content_id"`

	// ContentType is the matched record's type.
	ContentType ContentType `json:"content_type"`

	// SimilarityScore is the cosine similarity to the query, in [-1, 1].
	SimilarityScore float64 `json:"similarity_score"`

	// Metadata is a snapshot of the record's metadata.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Vector is set only when SearchOptions.IncludeVector is true.
	Vector []float32 `json:"vector,omitempty"`
}
