package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
	"github.com/custodia-labs/simmatch/internal/core/ports/driving"
	"github.com/custodia-labs/simmatch/internal/logger"
)

var _ driving.Scheduler = (*Scheduler)(nil)

const (
	// defaultTick is how often the scheduler looks for due jobs.
	defaultTick = time.Minute

	// runRetention is the number of runs kept per job.
	runRetention = 100

	// recentRuns is how many runs Jobs reports per job.
	recentRuns = 5
)

// Scheduler runs index rebuilds and record cleanup on an interval.
// Schedules live in the scheduler store so cadence survives restarts.
type Scheduler struct {
	store  driven.SchedulerStore
	config domain.ScheduleConfig
	maint  driving.MaintenanceService
	maxAge time.Duration
	tick   time.Duration
	now    func() time.Time
	log    *logger.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	busy    map[domain.Job]bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. Cleanup removes records not updated
// within maxAge.
func NewScheduler(
	cfg domain.ScheduleConfig,
	store driven.SchedulerStore,
	maint driving.MaintenanceService,
	maxAge time.Duration,
) *Scheduler {
	return &Scheduler{
		store:  store,
		config: cfg,
		maint:  maint,
		maxAge: maxAge,
		tick:   defaultTick,
		now:    time.Now,
		log:    logger.For("scheduler"),
		busy:   make(map[domain.Job]bool),
	}
}

// SetTick changes how often due jobs are checked. Call before Start.
func (s *Scheduler) SetTick(d time.Duration) {
	if d > 0 {
		s.tick = d
	}
}

// Start syncs the stored schedules with the configuration, then runs due
// jobs until ctx is cancelled or Stop is called. It returns at once when
// the scheduler is disabled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.log.Info("disabled")
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.syncSchedules(ctx); err != nil {
		s.log.Error("failed to sync schedules: %v", err)
	}

	s.dispatch(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.dispatch(ctx)
		}
	}
}

// Stop ends the loop and waits for running jobs.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Jobs reports every built-in job. Jobs never saved show their configured
// cadence, paused when inactive.
func (s *Scheduler) Jobs(ctx context.Context) ([]domain.JobStatus, error) {
	out := make([]domain.JobStatus, 0, len(domain.AllJobs()))
	for _, job := range domain.AllJobs() {
		sched, err := s.store.Schedule(ctx, job)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", job, err)
		}
		if sched == nil {
			cfg := s.config.For(job)
			sched = &domain.JobSchedule{Job: job, Every: cfg.Every, Paused: !s.config.Enabled || !cfg.Active()}
		}
		runs, err := s.store.Runs(ctx, job, recentRuns)
		if err != nil {
			return nil, fmt.Errorf("loading %s runs: %w", job, err)
		}
		out = append(out, domain.JobStatus{Schedule: *sched, Recent: runs})
	}
	return out, nil
}

// RunNow runs job in the caller's goroutine. It fails when the job is
// unknown or already running.
func (s *Scheduler) RunNow(ctx context.Context, job domain.Job) (*domain.JobRun, error) {
	if _, err := domain.ParseJob(string(job)); err != nil {
		return nil, err
	}
	if !s.claim(job) {
		return nil, fmt.Errorf("%w: %s is already running", domain.ErrInvalidInput, job)
	}
	defer s.release(job)

	sched, err := s.store.Schedule(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", job, err)
	}
	if sched == nil {
		cfg := s.config.For(job)
		sched = &domain.JobSchedule{Job: job, Every: cfg.Every, Paused: !cfg.Active()}
	}

	run := s.execute(ctx, job)
	s.finish(ctx, sched, run)
	return &run, nil
}

// syncSchedules makes the stored schedules match the configuration. A
// changed cadence restarts the countdown from now.
func (s *Scheduler) syncSchedules(ctx context.Context) error {
	now := s.now()
	for _, job := range domain.AllJobs() {
		cfg := s.config.For(job)
		sched, err := s.store.Schedule(ctx, job)
		if err != nil {
			return fmt.Errorf("%s: %w", job, err)
		}

		switch {
		case sched == nil && !cfg.Active():
			continue
		case sched == nil:
			sched = &domain.JobSchedule{Job: job, Every: cfg.Every, Due: now.Add(cfg.Every)}
		case cfg.Active() && sched.Every != cfg.Every:
			sched.Every = cfg.Every
			sched.Due = now.Add(cfg.Every)
		}
		sched.Paused = !cfg.Active()

		s.log.Debug("%s every %v paused=%t due %s", job, sched.Every, sched.Paused, sched.Due.Format(time.RFC3339))
		if err := s.store.PutSchedule(ctx, sched); err != nil {
			return fmt.Errorf("%s: %w", job, err)
		}
	}
	return nil
}

// dispatch starts every due job that is not already running.
func (s *Scheduler) dispatch(ctx context.Context) {
	scheds, err := s.store.Schedules(ctx)
	if err != nil {
		s.log.Error("failed to list schedules: %v", err)
		return
	}

	now := s.now()
	for i := range scheds {
		sched := scheds[i]
		if !sched.IsDue(now) {
			continue
		}
		if !s.claim(sched.Job) {
			s.log.Debug("%s still running, skipping", sched.Job)
			continue
		}
		go func() {
			defer s.release(sched.Job)
			s.finish(ctx, &sched, s.execute(ctx, sched.Job))
		}()
	}
}

// claim marks job busy. The wait group covers the job until release.
func (s *Scheduler) claim(job domain.Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[job] {
		return false
	}
	s.busy[job] = true
	s.wg.Add(1)
	return true
}

func (s *Scheduler) release(job domain.Job) {
	s.mu.Lock()
	delete(s.busy, job)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Scheduler) execute(ctx context.Context, job domain.Job) domain.JobRun {
	run := domain.JobRun{Job: job, Started: s.now()}

	var err error
	switch job {
	case domain.JobRebuild:
		err = s.maint.RebuildAll(ctx)
		if err == nil {
			run.Affected = len(domain.AllContentTypes())
		}
	case domain.JobCleanup:
		run.Affected, err = s.maint.Cleanup(ctx, s.maxAge)
	default:
		err = fmt.Errorf("%w: unknown job %q", domain.ErrInvalidInput, job)
	}

	run.Finished = s.now()
	if err != nil {
		run.Err = err.Error()
		s.log.Error("%s failed: %v", job, err)
	} else {
		s.log.Info("%s done in %v (%d affected)", job, run.Took().Round(time.Millisecond), run.Affected)
	}
	return run
}

// finish stores the run and the advanced schedule. It uses a context that
// outlives cancellation so an interrupted run is still recorded.
func (s *Scheduler) finish(ctx context.Context, sched *domain.JobSchedule, run domain.JobRun) {
	sched.Record(run)
	ctx = context.WithoutCancel(ctx)
	if err := s.store.PutSchedule(ctx, sched); err != nil {
		s.log.Error("failed to save %s schedule: %v", sched.Job, err)
	}
	if err := s.store.AppendRun(ctx, &run); err != nil {
		s.log.Error("failed to record %s run: %v", sched.Job, err)
	}
	if err := s.store.TrimRuns(ctx, runRetention); err != nil {
		s.log.Error("failed to trim run history: %v", err)
	}
}
