package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/ports/driven"
)

var _ driven.SchedulerStore = (*SchedulerStore)(nil)

// SchedulerStore keeps job schedules and runs in memory. Runs are held per
// job in the order they were appended.
type SchedulerStore struct {
	mu        sync.RWMutex
	schedules map[domain.Job]domain.JobSchedule
	runs      map[domain.Job][]domain.JobRun
}

// NewSchedulerStore creates an empty store.
func NewSchedulerStore() *SchedulerStore {
	return &SchedulerStore{
		schedules: make(map[domain.Job]domain.JobSchedule),
		runs:      make(map[domain.Job][]domain.JobRun),
	}
}

func (s *SchedulerStore) Schedule(_ context.Context, job domain.Job) (*domain.JobSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, ok := s.schedules[job]
	if !ok {
		return nil, nil
	}
	return &sched, nil
}

// Schedules returns every schedule ordered by job name.
func (s *SchedulerStore) Schedules(_ context.Context) ([]domain.JobSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.JobSchedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, sched)
	}
	slices.SortFunc(out, func(a, b domain.JobSchedule) int {
		switch {
		case a.Job < b.Job:
			return -1
		case a.Job > b.Job:
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *SchedulerStore) PutSchedule(_ context.Context, sched *domain.JobSchedule) error {
	if sched == nil || sched.Job == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	s.schedules[sched.Job] = *sched
	s.mu.Unlock()
	return nil
}

func (s *SchedulerStore) AppendRun(_ context.Context, run *domain.JobRun) error {
	if run == nil || run.Job == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	s.runs[run.Job] = append(s.runs[run.Job], *run)
	s.mu.Unlock()
	return nil
}

func (s *SchedulerStore) Runs(_ context.Context, job domain.Job, limit int) ([]domain.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.runs[job]
	n := min(limit, len(all))
	if n <= 0 {
		return nil, nil
	}
	out := make([]domain.JobRun, n)
	for i := range n {
		out[i] = all[len(all)-1-i]
	}
	return out, nil
}

func (s *SchedulerStore) TrimRuns(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for job, runs := range s.runs {
		if len(runs) > keep {
			s.runs[job] = slices.Clone(runs[len(runs)-max(keep, 0):])
		}
	}
	return nil
}
