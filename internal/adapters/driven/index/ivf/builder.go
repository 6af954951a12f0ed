package ivf

import (
	"context"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
)

// Ensure Builder implements the interface.
var _ driven.IndexBuilder = (*Builder)(nil)

// Builder constructs IVF indexes with fixed options.
type Builder struct {
	opts Options
}

// NewBuilder returns a builder using opts for every index it creates.
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts.withDefaults()}
}

// Build trains partitions over entries and returns the filled index.
func (b *Builder) Build(ctx context.Context, dim int, entries []domain.IndexEntry) (driven.VectorIndex, error) {
	idx, err := build(ctx, dim, entries, b.opts)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Kind reports the variant this builder produces.
func (b *Builder) Kind() domain.IndexKind {
	return domain.IndexKindIVF
}
