package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// MaintenanceService rebuilds indexes, ages out records and reports stats.
type MaintenanceService interface {
	// Rebuild recomputes the index for one content type and swaps it in.
	Rebuild(ctx context.Context, contentType domain.ContentType) error

	// RebuildAll rebuilds every content type.
	RebuildAll(ctx context.Context) error

	// Cleanup removes records not updated within maxAge and rebuilds the
	// affected indexes before returning. Returns the number removed.
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)

	// Stats aggregates store and index statistics.
	Stats(ctx context.Context) (*domain.EngineStats, error)
}
