package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
)

// jobStore keeps maintenance job schedules in the same database as the
// embeddings. The cadence is an INTERVAL column read back as microseconds.
type jobStore struct {
	db *sql.DB
}

var _ driven.SchedulerStore = (*jobStore)(nil)

const scheduleSelect = `SELECT job, (EXTRACT(EPOCH FROM every) * 1000000)::BIGINT,
	paused, due_at, last_run, last_ok, last_error, failures FROM job_schedules`

func (s *jobStore) Schedule(ctx context.Context, job domain.Job) (*domain.JobSchedule, error) {
	sched, err := scanSchedule(s.db.QueryRowContext(ctx, scheduleSelect+" WHERE job = $1", string(job)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapStorageError("reading job schedule", err)
	}
	return sched, nil
}

func (s *jobStore) Schedules(ctx context.Context) ([]domain.JobSchedule, error) {
	rows, err := s.db.QueryContext(ctx, scheduleSelect+" ORDER BY job")
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_schedules (job, every, paused, due_at, last_run, last_ok, last_error, failures)
		VALUES ($1, make_interval(secs => $2::DOUBLE PRECISION / 1000000), $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job) DO UPDATE SET
			every = EXCLUDED.every,
			paused = EXCLUDED.paused,
			due_at = EXCLUDED.due_at,
			last_run = EXCLUDED.last_run,
			last_ok = EXCLUDED.last_ok,
			last_error = EXCLUDED.last_error,
			failures = EXCLUDED.failures
	`, string(sched.Job), sched.Every.Microseconds(), sched.Paused,
		nullTime(sched.Due), nullTime(sched.LastRun), nullTime(sched.LastOK),
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
		"INSERT INTO job_runs (job, started_at, finished_at, affected, error) VALUES ($1, $2, $3, $4, $5)",
		string(run.Job), run.Started.UTC(), run.Finished.UTC(), run.Affected, run.Err)
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
		FROM job_runs WHERE job = $1
		ORDER BY seq DESC LIMIT $2
	`, string(job), limit)
	if err != nil {
		return nil, domain.WrapStorageError("listing job runs", err)
	}
	defer rows.Close()

	runs := make([]domain.JobRun, 0, limit)
	for rows.Next() {
		run := domain.JobRun{Job: job}
		if err := rows.Scan(&run.Started, &run.Finished, &run.Affected, &run.Err); err != nil {
			return nil, domain.WrapStorageError("scanning job run", err)
		}
		run.Started = run.Started.UTC()
		run.Finished = run.Finished.UTC()
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
			) ranked WHERE pos > $1
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
		everyMicros          int64
		due, lastRun, lastOK sql.NullTime
	)
	if err := row.Scan(&job, &everyMicros, &sched.Paused, &due, &lastRun, &lastOK,
		&sched.LastErr, &sched.Failures); err != nil {
		return nil, err
	}
	sched.Job = domain.Job(job)
	sched.Every = time.Duration(everyMicros) * time.Microsecond
	sched.Due = fromNullTime(due)
	sched.LastRun = fromNullTime(lastRun)
	sched.LastOK = fromNullTime(lastOK)
	return &sched, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}
