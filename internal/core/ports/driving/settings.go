package driving

import "github.com/custodia-labs/simmatch/internal/core/domain"

// SettingsService manages engine settings.
type SettingsService interface {
	// Get reads the current settings over the defaults and validates them.
	Get() (*domain.EngineSettings, error)

	// Save persists engine settings.
	Save(settings *domain.EngineSettings) error

	// SetSearchDefaults updates the default threshold and result limit.
	SetSearchDefaults(threshold float64, defaultLimit int) error

	// SetIndexKind selects the ANN index variant.
	SetIndexKind(kind domain.IndexKind) error

	// SetDimension sets the vector length for one content type.
	SetDimension(contentType domain.ContentType, dimension int) error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// Reset removes a stored key so its default applies again.
	Reset(key string) error

	// GetDefaults returns default settings.
	GetDefaults() domain.EngineSettings

	// GetSchedulerConfig returns the scheduler configuration.
	GetSchedulerConfig() domain.ScheduleConfig

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error
}
