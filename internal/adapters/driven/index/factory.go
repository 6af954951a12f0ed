// Package index selects an ANN index implementation from settings.
package index

import (
	"fmt"

	"github.com/custodia-labs/simmatch/internal/adapters/driven/index/hnsw"
	"github.com/custodia-labs/simmatch/internal/adapters/driven/index/ivf"
	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
)

// NewBuilder returns the index builder for settings.Kind.
func NewBuilder(settings domain.IndexSettings) (driven.IndexBuilder, error) {
	switch settings.Kind {
	case domain.IndexKindHNSW:
		return hnsw.NewBuilder(hnsw.Options{
			M:              settings.M,
			EFConstruction: settings.EFConstruction,
			EFSearch:       settings.EFSearch,
			Seed:           settings.Seed,
		}), nil
	case domain.IndexKindIVF:
		return ivf.NewBuilder(ivf.Options{
			Lists:  settings.Lists,
			Probes: settings.Probes,
			Seed:   settings.Seed,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unsupported index kind %q", domain.ErrInvalidInput, settings.Kind)
	}
}
