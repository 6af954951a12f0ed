package services

import (
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
	"github.com/custodia-labs/simmatch/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyStorageDSN          = "storage.dsn"
	keyStoragePoolSize     = "storage.pool_size"
	keyDimension           = "vector.dimension"
	keyDimensionsPrefix    = "vector.dimensions."
	keyThreshold           = "search.similarity_threshold"
	keyDefaultLimit        = "search.default_limit"
	keyMaxLimit            = "search.max_limit"
	keyCandidateMultiplier = "search.candidate_multiplier"
	keyIndexKind           = "index.kind"
	keyIndexM              = "index.m"
	keyIndexEFConstruction = "index.ef_construction"
	keyIndexEFSearch       = "index.ef_search"
	keyIndexLists          = "index.ivf_lists"
	keyIndexProbes         = "index.ivf_probes"
	keyIndexSeed           = "index.seed"
	keyIndexWarm           = "index.warm_on_start"
	keyOperationTimeout    = "engine.operation_timeout"
	keyCleanupMaxAge       = "maintenance.max_age"
	keySchedulerEnabled    = "scheduler.enabled"
	keyEmbedProvider       = "embedding.provider"
	keyEmbedModel          = "embedding.model"
	keyEmbedBaseURL        = "embedding.base_url"
	keyEmbedAPIKey         = "embedding.api_key"
	keyEmbedCacheTTL       = "embedding.cache_ttl"
	keyEmbedCacheSize      = "embedding.cache_size"
)

// jobKeys maps each job to its config table under "scheduler.".
var jobKeys = map[domain.Job]string{
	domain.JobRebuild: "index_rebuild",
	domain.JobCleanup: "embedding_cleanup",
}

// SettingsService reads and writes engine settings through a ConfigStore.
// Missing keys fall back to domain.DefaultEngineSettings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
// The validator is optional (can be nil).
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// LoadEngineSettings reads and validates engine settings from configStore.
func LoadEngineSettings(configStore driven.ConfigStore) (domain.EngineSettings, error) {
	settings, err := NewSettingsService(configStore, nil).Get()
	if err != nil {
		return domain.EngineSettings{}, err
	}
	return *settings, nil
}

// Get reads the current settings over the defaults and validates them.
func (s *SettingsService) Get() (*domain.EngineSettings, error) {
	d := domain.DefaultEngineSettings()

	settings := &domain.EngineSettings{
		Storage: domain.StorageSettings{
			DSN:      s.configStore.GetString(keyStorageDSN),
			PoolSize: s.getInt(keyStoragePoolSize, d.Storage.PoolSize),
		},
		DefaultDimension: s.getInt(keyDimension, d.DefaultDimension),
		Dimensions:       s.getDimensions(),
		Search: domain.SearchSettings{
			Threshold:           s.getFloat(keyThreshold, d.Search.Threshold),
			DefaultLimit:        s.getInt(keyDefaultLimit, d.Search.DefaultLimit),
			MaxLimit:            s.getInt(keyMaxLimit, d.Search.MaxLimit),
			CandidateMultiplier: s.getInt(keyCandidateMultiplier, d.Search.CandidateMultiplier),
		},
		Index: domain.IndexSettings{
			Kind:           s.getIndexKind(d.Index.Kind),
			M:              s.getInt(keyIndexM, d.Index.M),
			EFConstruction: s.getInt(keyIndexEFConstruction, d.Index.EFConstruction),
			EFSearch:       s.getInt(keyIndexEFSearch, d.Index.EFSearch),
			Lists:          s.getInt(keyIndexLists, d.Index.Lists),
			Probes:         s.getInt(keyIndexProbes, d.Index.Probes),
			Seed:           int64(s.getInt(keyIndexSeed, int(d.Index.Seed))),
			WarmOnStart:    s.getBool(keyIndexWarm, d.Index.WarmOnStart),
		},
		Scheduler: s.GetSchedulerConfig(),
		Embedding: domain.EmbeddingSettings{
			Provider:  domain.AIProvider(s.configStore.GetString(keyEmbedProvider)),
			Model:     s.configStore.GetString(keyEmbedModel),
			BaseURL:   s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:    s.configStore.GetString(keyEmbedAPIKey),
			CacheSize: s.getInt(keyEmbedCacheSize, d.Embedding.CacheSize),
		},
	}

	var err error
	if settings.OperationTimeout, err = s.getDuration(keyOperationTimeout, d.OperationTimeout); err != nil {
		return nil, err
	}
	if settings.CleanupMaxAge, err = s.getDuration(keyCleanupMaxAge, d.CleanupMaxAge); err != nil {
		return nil, err
	}
	if settings.Embedding.CacheTTL, err = s.getDuration(keyEmbedCacheTTL, d.Embedding.CacheTTL); err != nil {
		return nil, err
	}
	if settings.Embedding.Provider.IsValid() && settings.Embedding.Model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", s.configStore.Path(), err)
	}
	return settings, nil
}

// Save persists engine settings.
func (s *SettingsService) Save(settings *domain.EngineSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	values := []struct {
		key   string
		value any
	}{
		{keyStorageDSN, settings.Storage.DSN},
		{keyStoragePoolSize, settings.Storage.PoolSize},
		{keyDimension, settings.DefaultDimension},
		{keyThreshold, settings.Search.Threshold},
		{keyDefaultLimit, settings.Search.DefaultLimit},
		{keyMaxLimit, settings.Search.MaxLimit},
		{keyCandidateMultiplier, settings.Search.CandidateMultiplier},
		{keyIndexKind, settings.Index.Kind.String()},
		{keyIndexM, settings.Index.M},
		{keyIndexEFConstruction, settings.Index.EFConstruction},
		{keyIndexEFSearch, settings.Index.EFSearch},
		{keyIndexLists, settings.Index.Lists},
		{keyIndexProbes, settings.Index.Probes},
		{keyIndexSeed, settings.Index.Seed},
		{keyIndexWarm, settings.Index.WarmOnStart},
		{keyOperationTimeout, settings.OperationTimeout.String()},
		{keyCleanupMaxAge, settings.CleanupMaxAge.String()},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedAPIKey, settings.Embedding.APIKey},
		{keyEmbedCacheTTL, settings.Embedding.CacheTTL.String()},
		{keyEmbedCacheSize, settings.Embedding.CacheSize},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("saving %s: %w", v.key, err)
		}
	}
	for ct, dim := range settings.Dimensions {
		if err := s.configStore.Set(keyDimensionsPrefix+ct.String(), dim); err != nil {
			return fmt.Errorf("saving dimension for %s: %w", ct, err)
		}
	}
	return nil
}

// SetSearchDefaults updates the default threshold and result limit.
func (s *SettingsService) SetSearchDefaults(threshold float64, defaultLimit int) error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Search.Threshold = threshold
	settings.Search.DefaultLimit = defaultLimit
	return s.Save(settings)
}

// SetIndexKind selects the ANN index variant.
func (s *SettingsService) SetIndexKind(kind domain.IndexKind) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: index kind %q", domain.ErrInvalidInput, kind)
	}
	return s.configStore.Set(keyIndexKind, kind.String())
}

// SetDimension sets the vector length for one content type.
func (s *SettingsService) SetDimension(contentType domain.ContentType, dimension int) error {
	if !contentType.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidContentType, contentType)
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	return s.configStore.Set(keyDimensionsPrefix+contentType.String(), dimension)
}

// SetEmbeddingProvider configures the embedding provider.
// An empty model selects the provider's default model.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: %s requires an API key", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}
	settings.Embedding.Provider = provider
	settings.Embedding.Model = model
	settings.Embedding.APIKey = apiKey
	if provider != domain.AIProviderOllama {
		// Cloud providers don't need a custom base URL
		settings.Embedding.BaseURL = ""
	}
	if dims, ok := domain.EmbeddingDimensions()[model]; ok {
		settings.DefaultDimension = dims
	}
	return s.Save(settings)
}

// Reset removes a stored key so its default applies again. The key must
// be one the engine reads.
func (s *SettingsService) Reset(key string) error {
	if !knownKey(key) {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	return s.configStore.Unset(key)
}

func knownKey(key string) bool {
	switch key {
	case keyStorageDSN, keyStoragePoolSize, keyDimension, keyThreshold,
		keyDefaultLimit, keyMaxLimit, keyCandidateMultiplier, keyIndexKind,
		keyIndexM, keyIndexEFConstruction, keyIndexEFSearch, keyIndexLists,
		keyIndexProbes, keyIndexSeed, keyIndexWarm, keyOperationTimeout,
		keyCleanupMaxAge, keyEmbedProvider, keyEmbedModel, keyEmbedBaseURL,
		keyEmbedAPIKey, keyEmbedCacheTTL, keyEmbedCacheSize, keySchedulerEnabled:
		return true
	}
	if ct, ok := strings.CutPrefix(key, keyDimensionsPrefix); ok {
		return domain.ContentType(ct).IsValid()
	}
	for _, name := range jobKeys {
		if key == "scheduler."+name+".enabled" || key == "scheduler."+name+".interval" {
			return true
		}
	}
	return false
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.EngineSettings {
	return domain.DefaultEngineSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// GetSchedulerConfig reads the scheduler section. Each job has a table
// such as [scheduler.index_rebuild] with enabled and interval keys; an
// unparsable interval keeps the default.
func (s *SettingsService) GetSchedulerConfig() domain.ScheduleConfig {
	cfg := domain.DefaultScheduleConfig()
	cfg.Enabled = s.getBool(keySchedulerEnabled, cfg.Enabled)
	cfg.Rebuild = s.jobConfig(domain.JobRebuild, cfg.Rebuild)
	cfg.Cleanup = s.jobConfig(domain.JobCleanup, cfg.Cleanup)
	return cfg
}

func (s *SettingsService) jobConfig(job domain.Job, def domain.JobConfig) domain.JobConfig {
	prefix := "scheduler." + jobKeys[job] + "."
	def.Enabled = s.getBool(prefix+"enabled", def.Enabled)
	if d, err := time.ParseDuration(s.configStore.GetString(prefix + "interval")); err == nil && d > 0 {
		def.Every = d
	}
	return def
}

// Helper methods for reading config with defaults. TOML decodes
// integers as int64 and floats as float64, while values set at runtime
// keep their Go type, so both forms are accepted.

func (s *SettingsService) getInt(key string, defaultVal int) int {
	v, ok := s.configStore.Lookup(key)
	if !ok {
		return defaultVal
	}
	if n, ok := toInt(v); ok {
		return n
	}
	return defaultVal
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	v, ok := s.configStore.Lookup(key)
	if !ok {
		return defaultVal
	}
	switch f := v.(type) {
	case float64:
		return f
	case float32:
		return float64(f)
	}
	if n, ok := toInt(v); ok {
		return float64(n)
	}
	return defaultVal
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	v, ok := s.configStore.Lookup(key)
	if !ok {
		return defaultVal
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(n)
		return parsed, err == nil
	}
	return 0, false
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	return d, nil
}

func (s *SettingsService) getIndexKind(defaultVal domain.IndexKind) domain.IndexKind {
	kind := domain.IndexKind(strings.ToLower(s.configStore.GetString(keyIndexKind)))
	if !kind.IsValid() {
		return defaultVal
	}
	return kind
}

func (s *SettingsService) getDimensions() map[domain.ContentType]int {
	dims := maps.Clone(domain.DefaultEngineSettings().Dimensions)
	for _, ct := range domain.AllContentTypes() {
		if d := s.getInt(keyDimensionsPrefix+ct.String(), 0); d != 0 {
			dims[ct] = d
		}
	}
	return dims
}
