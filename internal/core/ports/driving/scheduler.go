package driving

import (
	"context"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// Scheduler runs the maintenance jobs (index rebuild, record cleanup) on
// their configured cadence.
type Scheduler interface {
	// Start runs due jobs until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop ends the loop and waits for running jobs to finish.
	Stop() error

	// Jobs reports every built-in job with its schedule and recent runs.
	Jobs(ctx context.Context) ([]domain.JobStatus, error)

	// RunNow runs job immediately and waits for it. A failing job is
	// reported in the returned run, not as an error.
	RunNow(ctx context.Context, job domain.Job) (*domain.JobRun, error)
}
