package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// IndexKind selects the ANN index variant.
type IndexKind string

// Available index variants.
const (
	// IndexKindHNSW is a hierarchical navigable small world graph.
	IndexKindHNSW IndexKind = "hnsw"

	// IndexKindIVF is an inverted file over k-means partitions.
	IndexKindIVF IndexKind = "ivf"
)

// IsValid returns true if the index kind is recognised.
func (k IndexKind) IsValid() bool {
	switch k {
	case IndexKindHNSW, IndexKindIVF:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k IndexKind) String() string {
	return string(k)
}

// Description returns a human-readable description of the index kind.
func (k IndexKind) Description() string {
	switch k {
	case IndexKindHNSW:
		return "HNSW (graph-based)"
	case IndexKindIVF:
		return "IVF (k-means partitions)"
	default:
		return unknownDescription
	}
}

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// StorageSettings configures the durable record store.
type StorageSettings struct {
	// DSN selects the backend. Empty means SQLite in the data directory,
	// postgres:// or postgresql:// selects PostgreSQL, "memory" is ephemeral.
	DSN string

	// PoolSize bounds concurrent connections. Callers beyond it queue.
	PoolSize int
}

// SearchSettings holds query defaults.
type SearchSettings struct {
	// Threshold is the default minimum similarity score.
	Threshold float64

	// DefaultLimit is used when a query omits its limit.
	DefaultLimit int

	// MaxLimit caps every query's limit.
	MaxLimit int

	// CandidateMultiplier scales how many index candidates are fetched
	// per requested result before exact re-ranking.
	CandidateMultiplier int
}

// IndexSettings configures the ANN index.
type IndexSettings struct {
	// Kind is the index variant.
	Kind IndexKind

	// M is the HNSW neighbour count per node.
	M int

	// EFConstruction is the HNSW candidate list size during insert.
	EFConstruction int

	// EFSearch is the HNSW candidate list size during query.
	EFSearch int

	// Lists is the IVF partition count. Zero picks sqrt(n).
	Lists int

	// Probes is the number of IVF partitions scanned per query.
	Probes int

	// Seed makes builds reproducible.
	Seed int64

	// WarmOnStart builds every index when the engine starts.
	WarmOnStart bool
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// CacheTTL is how long generated embeddings are reused. Zero disables the cache.
	CacheTTL time.Duration

	// CacheSize bounds the number of cached embeddings.
	CacheSize int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// EngineSettings holds all engine settings.
type EngineSettings struct {
	Storage StorageSettings

	// DefaultDimension applies to content types without an override.
	DefaultDimension int

	// Dimensions holds per content type overrides.
	Dimensions map[ContentType]int

	Search SearchSettings
	Index  IndexSettings

	// OperationTimeout bounds operations whose context has no deadline.
	OperationTimeout time.Duration

	// CleanupMaxAge is the default age for the cleanup operation.
	CleanupMaxAge time.Duration

	Scheduler ScheduleConfig
	Embedding EmbeddingSettings
}

// Dimension returns the configured vector length for a content type.
func (s *EngineSettings) Dimension(ct ContentType) int {
	if d, ok := s.Dimensions[ct]; ok && d > 0 {
		return d
	}
	return s.DefaultDimension
}

// CheckDimension returns a DimensionMismatchError if vec has the wrong length.
func (s *EngineSettings) CheckDimension(ct ContentType, vec []float32) error {
	if want := s.Dimension(ct); len(vec) != want {
		return &DimensionMismatchError{ContentType: ct, Expected: want, Actual: len(vec)}
	}
	return nil
}

// Validate checks the settings are usable.
func (s *EngineSettings) Validate() error {
	if s.DefaultDimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidInput)
	}
	for ct, d := range s.Dimensions {
		if !ct.IsValid() {
			return fmt.Errorf("%w: dimension override for %q", ErrInvalidContentType, ct)
		}
		if d <= 0 {
			return fmt.Errorf("%w: dimension for %s must be positive", ErrInvalidInput, ct)
		}
	}
	if s.Search.Threshold < -1 || s.Search.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside [-1, 1]", ErrInvalidInput, s.Search.Threshold)
	}
	if s.Search.DefaultLimit <= 0 || s.Search.MaxLimit < s.Search.DefaultLimit {
		return fmt.Errorf("%w: limits must satisfy 0 < default <= max", ErrInvalidInput)
	}
	if s.Search.CandidateMultiplier < 1 {
		return fmt.Errorf("%w: candidate multiplier must be at least 1", ErrInvalidInput)
	}
	if !s.Index.Kind.IsValid() {
		return fmt.Errorf("%w: index kind %q", ErrInvalidInput, s.Index.Kind)
	}
	if s.Storage.PoolSize <= 0 {
		return fmt.Errorf("%w: pool size must be positive", ErrInvalidInput)
	}
	return nil
}

// DefaultEngineSettings returns settings with sensible defaults.
// Embedding is left unconfigured; callers supply vectors themselves.
func DefaultEngineSettings() EngineSettings {
	return EngineSettings{
		Storage: StorageSettings{
			PoolSize: 20,
		},
		DefaultDimension: 1536, // text-embedding-ada-002
		Dimensions:       map[ContentType]int{},
		Search: SearchSettings{
			Threshold:           0.7,
			DefaultLimit:        10,
			MaxLimit:            100,
			CandidateMultiplier: 4,
		},
		Index: IndexSettings{
			Kind:           IndexKindHNSW,
			M:              16,
			EFConstruction: 200,
			EFSearch:       64,
			Probes:         8,
			Seed:           42,
			WarmOnStart:    true,
		},
		OperationTimeout: 30 * time.Second,
		CleanupMaxAge:    30 * 24 * time.Hour,
		Scheduler:        DefaultScheduleConfig(),
		Embedding: EmbeddingSettings{
			CacheTTL:  time.Hour,
			CacheSize: 1024,
		},
	}
}

// AllIndexKinds returns all available index variants.
func AllIndexKinds() []IndexKind {
	return []IndexKind{IndexKindHNSW, IndexKindIVF}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-ada-002",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
