// Package ai builds embedding service adapters from settings.
package ai

import (
	"context"
	"fmt"

	"github.com/custodia-labs/simmatch/internal/adapters/driven/embedding/cache"
	"github.com/custodia-labs/simmatch/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/simmatch/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
)

type constructor func(*domain.EmbeddingSettings) (driven.EmbeddingService, error)

var providers = map[domain.AIProvider]constructor{
	domain.AIProviderOllama: func(s *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    s.BaseURL,
			Model:      s.Model,
			Dimensions: domain.EmbeddingDimensions()[s.Model],
		}), nil
	},
	domain.AIProviderOpenAI: func(s *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
		return openai.NewEmbeddingService(openai.Config{
			APIKey:  s.APIKey,
			BaseURL: s.BaseURL,
			Model:   s.Model,
		})
	},
}

// CreateEmbeddingService returns the embedder for settings, behind a cache
// when CacheTTL is positive. It returns nil, nil when no provider is set.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := newProvider(settings)
	if err != nil || svc == nil {
		return nil, err
	}
	if settings.CacheTTL > 0 {
		svc = cache.New(svc, cache.Options{TTL: settings.CacheTTL, MaxEntries: settings.CacheSize})
	}
	return svc, nil
}

// Probe builds the provider for settings and pings it once.
func Probe(ctx context.Context, settings *domain.EmbeddingSettings) error {
	svc, err := newProvider(settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()
	return svc.Ping(ctx)
}

func newProvider(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	build, ok := providers[settings.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", domain.ErrInvalidInput, settings.Provider)
	}
	return build(settings)
}
