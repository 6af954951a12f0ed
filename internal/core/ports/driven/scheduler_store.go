package driven

import (
	"context"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

// SchedulerStore keeps job schedules and run history so maintenance
// cadence survives a restart.
type SchedulerStore interface {
	// Schedule returns the saved schedule of job, or nil when none was saved.
	Schedule(ctx context.Context, job domain.Job) (*domain.JobSchedule, error)

	// Schedules returns every saved schedule.
	Schedules(ctx context.Context) ([]domain.JobSchedule, error)

	// PutSchedule inserts or replaces the schedule keyed by its job.
	PutSchedule(ctx context.Context, s *domain.JobSchedule) error

	// AppendRun adds a finished run to the history.
	AppendRun(ctx context.Context, run *domain.JobRun) error

	// Runs returns up to limit runs of job, newest first.
	Runs(ctx context.Context, job domain.Job, limit int) ([]domain.JobRun, error)

	// TrimRuns keeps the newest keep runs of each job and drops the rest.
	TrimRuns(ctx context.Context, keep int) error
}
