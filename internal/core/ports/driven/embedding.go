package driven

import "context"

// EmbeddingService turns text into vectors. Adapters exist for Ollama and
// OpenAI-compatible APIs, optionally behind a cache.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the length of every vector the model returns. Records
	// of a content type only match queries of the same length.
	Dimensions() int

	ModelName() string

	// Ping checks the provider answers without running inference.
	Ping(ctx context.Context) error

	Close() error
}
