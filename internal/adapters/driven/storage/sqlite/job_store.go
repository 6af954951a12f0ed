package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
)

// jobStore keeps maintenance job schedules and runs next to the embeddings.
// Times are Unix nanoseconds with 0 standing for the zero time.
type jobStore struct {
	db *sql.DB
}

var _ driven.SchedulerStore = (*jobStore)(nil)

const scheduleColumns = "job, every_ns, paused, due_at, last_run, last_ok, last_error, failures"

func (s *jobStore) Schedule(ctx context.Context, job domain.Job) (*domain.JobSchedule, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+scheduleColumns+" FROM job_schedules WHERE job = ?", string(job))
	sched, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapStorageError("reading job schedule", err)
	}
	return sched, nil
}

func (s *jobStore) Schedules(ctx context.Context) ([]domain.JobSchedule, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+scheduleColumns+" FROM job_schedules ORDER BY job")
	if err != nil {
		return nil, domain.WrapStorageError("listing job schedules", err)
	}
	defer rows.Close()

	var out []domain.JobSchedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, domain.WrapStorageError("scanning job schedule", err)
		}
		out = append(out, *sched)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStorageError("listing job schedules", err)
	}
	return out, nil
}

func (s *jobStore) PutSchedule(ctx context.Context, sched *domain.JobSchedule) error {
	if sched == nil || sched.Job == "" {
		return domain.ErrInvalidInput
	}
	paused := 0
	if sched.Paused {
		paused = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_schedules (`+scheduleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job) DO UPDATE SET
			every_ns = excluded.every_ns,
			paused = excluded.paused,
			due_at = excluded.due_at,
			last_run = excluded.last_run,
			last_ok = excluded.last_ok,
			last_error = excluded.last_error,
			failures = excluded.failures
	`, string(sched.Job), int64(sched.Every), paused,
		toNanos(sched.Due), toNanos(sched.LastRun), toNanos(sched.LastOK),
		sched.LastErr, sched.Failures)
	if err != nil {
		return domain.WrapStorageError("saving job schedule", err)
	}
	return nil
}

func (s *jobStore) AppendRun(ctx context.Context, run *domain.JobRun) error {
	if run == nil || run.Job == "" {
		return domain.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO job_runs (job, started_at, finished_at, affected, error) VALUES (?, ?, ?, ?, ?)",
		string(run.Job), toNanos(run.Started), toNanos(run.Finished), run.Affected, run.Err)
	if err != nil {
		return domain.WrapStorageError("recording job run", err)
	}
	return nil
}

func (s *jobStore) Runs(ctx context.Context, job domain.Job, limit int) ([]domain.JobRun, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT started_at, finished_at, affected, error
		FROM job_runs WHERE job = ?
		ORDER BY seq DESC LIMIT ?
	`, string(job), limit)
	if err != nil {
		return nil, domain.WrapStorageError("listing job runs", err)
	}
	defer rows.Close()

	runs := make([]domain.JobRun, 0, limit)
	for rows.Next() {
		run := domain.JobRun{Job: job}
		var started, finished int64
		if err := rows.Scan(&started, &finished, &run.Affected, &run.Err); err != nil {
			return nil, domain.WrapStorageError("scanning job run", err)
		}
		run.Started = fromNanos(started)
		run.Finished = fromNanos(finished)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStorageError("listing job runs", err)
	}
	return runs, nil
}

func (s *jobStore) TrimRuns(ctx context.Context, keep int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM job_runs WHERE seq IN (
			SELECT seq FROM (
				SELECT seq, ROW_NUMBER() OVER (PARTITION BY job ORDER BY seq DESC) AS pos
				FROM job_runs
			) WHERE pos > ?
		)
	`, max(keep, 0))
	if err != nil {
		return domain.WrapStorageError("trimming job runs", err)
	}
	return nil
}

func scanSchedule(row rowScanner) (*domain.JobSchedule, error) {
	var (
		sched                domain.JobSchedule
		job                  string
		every                int64
		paused               int
		due, lastRun, lastOK int64
	)
	if err := row.Scan(&job, &every, &paused, &due, &lastRun, &lastOK, &sched.LastErr, &sched.Failures); err != nil {
		return nil, err
	}
	sched.Job = domain.Job(job)
	sched.Every = time.Duration(every)
	sched.Paused = paused != 0
	sched.Due = fromNanos(due)
	sched.LastRun = fromNanos(lastRun)
	sched.LastOK = fromNanos(lastOK)
	return &sched, nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
