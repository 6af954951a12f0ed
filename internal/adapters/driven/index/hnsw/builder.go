package hnsw

import (
	"context"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
)

// Ensure Builder implements the interface.
var _ driven.IndexBuilder = (*Builder)(nil)

// Builder constructs HNSW indexes with fixed options.
type Builder struct {
	opts Options
}

// NewBuilder returns a builder using opts for every index it creates.
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts.withDefaults()}
}

// Build inserts entries in order into a fresh graph.
// Later entries replace earlier ones with the same key.
func (b *Builder) Build(ctx context.Context, dim int, entries []domain.IndexEntry) (driven.VectorIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, err := New(dim, b.opts)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if err := idx.Upsert(ctx, e.Key, e.Vector); err != nil {
			_ = idx.Close()
			return nil, err
		}
	}
	return idx, nil
}

// Kind reports the variant this builder produces.
func (b *Builder) Kind() domain.IndexKind {
	return domain.IndexKindHNSW
}
