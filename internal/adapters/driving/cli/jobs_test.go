package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/simmatch/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/simmatch/internal/core/domain"
	"github.com/custodia-labs/simmatch/internal/core/services"
)

func installScheduler(t *testing.T, env *testEnv) {
	t.Helper()
	settings, err := env.settings.Get()
	require.NoError(t, err)
	schedulerService = services.NewScheduler(settings.Scheduler, memory.NewSchedulerStore(),
		env.engine.Maintenance, settings.CleanupMaxAge)
}

func TestJobsCmd_ListsJobs(t *testing.T) {
	env := setupTestServices(t)
	installScheduler(t, env)

	out, err := execute(t, "jobs")

	require.NoError(t, err)
	assert.Contains(t, out, "[index-rebuild] Index rebuild")
	assert.Contains(t, out, "[embedding-cleanup] Embedding cleanup")
	assert.Contains(t, out, "every 1h0m0s, not yet scheduled")
	assert.Contains(t, out, "No runs yet")
}

func TestJobsRunCmd_RecordsRun(t *testing.T) {
	env := setupTestServices(t)
	seedJobs(t, env)
	installScheduler(t, env)

	out, err := execute(t, "jobs", "run", "index-rebuild")
	require.NoError(t, err)
	assert.Contains(t, out, "Index rebuild: rebuilt 4 indexes")

	out, err = execute(t, "jobs")
	require.NoError(t, err)
	assert.Contains(t, out, "Recent runs:")
	assert.Contains(t, out, "rebuilt 4 indexes")
	assert.Contains(t, out, "next ")
}

func TestJobsRunCmd_Cleanup(t *testing.T) {
	env := setupTestServices(t)
	installScheduler(t, env)

	out, err := execute(t, "jobs", "run", "embedding-cleanup")

	require.NoError(t, err)
	assert.Contains(t, out, "removed 0 records")
}

func TestJobsRunCmd_UnknownJob(t *testing.T) {
	env := setupTestServices(t)
	installScheduler(t, env)

	_, err := execute(t, "jobs", "run", "vacuum")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestJobsCmd_NoScheduler(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "jobs")
	assert.EqualError(t, err, "scheduler service not configured")
}

func TestDescribeRun(t *testing.T) {
	start := time.Now()
	assert.Equal(t, "removed 3 records in 2s",
		describeRun(domain.JobRun{Job: domain.JobCleanup, Started: start, Finished: start.Add(2 * time.Second), Affected: 3}))
	assert.Equal(t, "failed after 0s: boom",
		describeRun(domain.JobRun{Job: domain.JobRebuild, Started: start, Finished: start, Err: "boom"}))
}
