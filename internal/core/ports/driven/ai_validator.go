package driven

import "github.com/custodia-labs/simmatch/internal/core/domain"

// AIConfigValidator checks embedding settings against the live provider.
type AIConfigValidator interface {
	// ValidateEmbedding returns nil when config is unset or the provider answers.
	ValidateEmbedding(config *domain.EmbeddingSettings) error
}
