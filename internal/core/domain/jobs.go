package domain

import (
	"fmt"
	"time"
)

// Job names a periodic maintenance pass run by the scheduler.
type Job string

// Built-in maintenance jobs.
const (
	// JobRebuild rebuilds the index of every content type.
	JobRebuild Job = "index-rebuild"

	// JobCleanup deletes records older than the configured maximum age.
	JobCleanup Job = "embedding-cleanup"
)

// AllJobs lists the built-in jobs in run order.
func AllJobs() []Job {
	return []Job{JobRebuild, JobCleanup}
}

// ParseJob accepts a job name as printed by the CLI.
func ParseJob(s string) (Job, error) {
	for _, j := range AllJobs() {
		if string(j) == s {
			return j, nil
		}
	}
	return "", fmt.Errorf("%w: unknown job %q", ErrInvalidInput, s)
}

// Label is the display name of the job.
func (j Job) Label() string {
	switch j {
	case JobRebuild:
		return "Index rebuild"
	case JobCleanup:
		return "Embedding cleanup"
	default:
		return string(j)
	}
}

// JobRun is one execution of a job.
type JobRun struct {
	Job      Job
	Started  time.Time
	Finished time.Time

	// Affected counts what the run touched: indexes rebuilt or records removed.
	Affected int

	// Err is empty when the run succeeded.
	Err string
}

// OK reports whether the run succeeded.
func (r JobRun) OK() bool { return r.Err == "" }

// Took is the wall time of the run.
func (r JobRun) Took() time.Duration {
	if r.Finished.Before(r.Started) {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// JobSchedule is the persisted state of a job between process restarts.
type JobSchedule struct {
	Job    Job
	Every  time.Duration
	Paused bool

	// Due is when the job next becomes runnable.
	Due time.Time

	LastRun time.Time
	LastOK  time.Time
	LastErr string

	// Failures counts consecutive failed runs. A success resets it.
	Failures int
}

// IsDue reports whether the job should run at now.
func (s *JobSchedule) IsDue(now time.Time) bool {
	return !s.Paused && !s.Due.After(now)
}

// Record folds a finished run into the schedule and pushes Due forward.
func (s *JobSchedule) Record(run JobRun) {
	s.LastRun = run.Started
	if run.OK() {
		s.LastOK = run.Finished
		s.LastErr = ""
		s.Failures = 0
	} else {
		s.LastErr = run.Err
		s.Failures++
	}
	s.Due = run.Finished.Add(s.Every)
}

// JobStatus pairs a schedule with its most recent runs, newest first.
type JobStatus struct {
	Schedule JobSchedule
	Recent   []JobRun
}

// JobConfig is the configured cadence of one job.
type JobConfig struct {
	Enabled bool
	Every   time.Duration
}

// Active reports whether the job should be scheduled at all.
func (c JobConfig) Active() bool {
	return c.Enabled && c.Every > 0
}

// ScheduleConfig is the scheduler section of the engine settings.
type ScheduleConfig struct {
	// Enabled is the master switch. When false no job runs on its own.
	Enabled bool

	Rebuild JobConfig
	Cleanup JobConfig
}

// For returns the configuration of job. Unknown jobs are inactive.
func (c ScheduleConfig) For(job Job) JobConfig {
	switch job {
	case JobRebuild:
		return c.Rebuild
	case JobCleanup:
		return c.Cleanup
	default:
		return JobConfig{}
	}
}

// DefaultScheduleConfig rebuilds hourly and cleans up daily.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		Enabled: true,
		Rebuild: JobConfig{Enabled: true, Every: time.Hour},
		Cleanup: JobConfig{Enabled: true, Every: 24 * time.Hour},
	}
}
