package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/simmatch/internal/core/domain"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Show scheduled maintenance jobs",
	Long: `Lists the background jobs run by "simmatch serve" with their cadence,
next due time and most recent runs.`,
	Args: cobra.NoArgs,
	RunE: runJobs,
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Run a maintenance job now",
	Long: `Runs index-rebuild or embedding-cleanup immediately and records the run
in the job history. The next scheduled run is pushed back by one interval.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(domain.JobRebuild), string(domain.JobCleanup)},
	RunE:      runJobNow,
}

func init() {
	jobsCmd.AddCommand(jobsRunCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, _ []string) error {
	if schedulerService == nil {
		return errNotConfigured("scheduler")
	}

	jobs, err := schedulerService.Jobs(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	for i, status := range jobs {
		if i > 0 {
			cmd.Println()
		}
		s := status.Schedule
		cmd.Printf("[%s] %s\n", s.Job, s.Job.Label())
		switch {
		case s.Paused:
			cmd.Println("  Schedule: paused")
		case s.Due.IsZero():
			cmd.Printf("  Schedule: every %v, not yet scheduled\n", s.Every)
		default:
			cmd.Printf("  Schedule: every %v, next %s\n", s.Every, s.Due.Local().Format(time.RFC3339))
		}
		if s.Failures > 0 {
			cmd.Printf("  Failing: %d in a row, last error: %s\n", s.Failures, s.LastErr)
		}
		if len(status.Recent) == 0 {
			cmd.Println("  No runs yet")
			continue
		}
		cmd.Println("  Recent runs:")
		for _, run := range status.Recent {
			cmd.Printf("    %s  %s\n", run.Started.Local().Format(time.RFC3339), describeRun(run))
		}
	}
	return nil
}

func runJobNow(cmd *cobra.Command, args []string) error {
	if schedulerService == nil {
		return errNotConfigured("scheduler")
	}
	job, err := domain.ParseJob(args[0])
	if err != nil {
		return err
	}

	run, err := schedulerService.RunNow(cmd.Context(), job)
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", job, err)
	}
	if !run.OK() {
		return fmt.Errorf("%s failed: %s", job, run.Err)
	}
	cmd.Printf("%s: %s\n", job.Label(), describeRun(*run))
	return nil
}

func describeRun(run domain.JobRun) string {
	took := run.Took().Round(time.Millisecond)
	if !run.OK() {
		return fmt.Sprintf("failed after %v: %s", took, run.Err)
	}
	switch run.Job {
	case domain.JobRebuild:
		return fmt.Sprintf("rebuilt %d indexes in %v", run.Affected, took)
	case domain.JobCleanup:
		return fmt.Sprintf("removed %d records in %v", run.Affected, took)
	default:
		return fmt.Sprintf("done in %v", took)
	}
}
