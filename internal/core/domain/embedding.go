package domain

import (
	"fmt"
	"time"
)

// RecordKey uniquely identifies an embedding record.
type RecordKey struct {
	ContentID   string      `json:"content_id"`
	ContentType ContentType `json:"content_type"`
}

// String returns "type/id", used in logs and as the index key.
func (k RecordKey) String() string {
	return string(k.ContentType) + "/" + k.ContentID
}

// Validate checks the key is usable.
func (k RecordKey) Validate() error {
	if k.ContentID == "" {
		return fmt.Errorf("%w: content id is required", ErrInvalidInput)
	}
	if !k.ContentType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidContentType, k.ContentType)
	}
	return nil
}

// EmbeddingRecord is the stored source of truth for one embedding.
type EmbeddingRecord struct {
	// ContentID identifies the content within its type.
	ContentID string `json:"content_id"`

	// ContentType is the partition this record belongs to.
	ContentType ContentType `json:"content_type"`

	// Vector is the embedding. Its length equals the configured
	// dimension for ContentType.
	Vector []float32 `json:"vector"`

	// Metadata is stored alongside the vector and returned with results.
	// The engine never interprets it.
	Metadata map[string]any `json:"metadata,omitempty"`

	// ModelVersion names the model that produced Vector.
	ModelVersion string `json:"model_version,omitempty"`

	// CreatedAt is set by the store on first insert.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is set by the store on every write.
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the record's unique key.
func (r *EmbeddingRecord) Key() RecordKey {
	return RecordKey{ContentID: r.ContentID, ContentType: r.ContentType}
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (r *EmbeddingRecord) Clone() *EmbeddingRecord {
	c := *r
	c.Vector = append([]float32(nil), r.Vector...)
	if r.Metadata != nil {
		c.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// IndexEntry is the index's view of a record.
type IndexEntry struct {
	// Key is the record's content ID. The index is per content type.
	Key string

	// Vector is the record's embedding.
	Vector []float32
}
