package driving

import (
	"context"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// SearchService provides similarity search to external actors.
type SearchService interface {
	// Search ranks records of a content type by cosine similarity to query.
	Search(ctx context.Context, query []float32, contentType domain.ContentType, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// Match searches target records using the stored vector of source.
	// Returns domain.ErrNotFound if source does not exist.
	Match(ctx context.Context, source domain.RecordKey, target domain.ContentType, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// SemanticSearch embeds text and searches with the resulting vector.
	// Returns domain.ErrEmbeddingUnavailable without an embedding service.
	SemanticSearch(ctx context.Context, text string, contentType domain.ContentType, opts domain.SearchOptions) ([]domain.SearchResult, error)
}

// SearchDefaults changes the defaults applied to queries that omit a
// threshold or limit. Running searches keep the values they started with.
type SearchDefaults interface {
	// Defaults returns the current defaults.
	Defaults() domain.SearchSettings

	// SetDefaults replaces the default threshold and result limit.
	SetDefaults(threshold float64, defaultLimit int) error
}
