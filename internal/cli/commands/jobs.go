package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/citymind/urbanlink/internal/cli/ui"
	"github.com/citymind/urbanlink/internal/service"
	"github.com/citymind/urbanlink/internal/web/jobs"
	"github.com/citymind/urbanlink/internal/web/server"
)

// staleJobTimeout is how long a job may stay locked before a restarted
// worker process takes it back
const staleJobTimeout = 15 * time.Minute

func newJobsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run and inspect background jobs",
		Long: `Background jobs close RFPs past their deadline and remind applicants
about upcoming funding deadlines. "citymind serve" runs them in-process
unless started with --no-workers; "citymind jobs run" runs them alone.`,
	}
	cmd.AddCommand(newJobsRunCommand(opts))
	cmd.AddCommand(newJobsEnqueueCommand(opts))
	cmd.AddCommand(newJobsStatsCommand(opts))
	cmd.AddCommand(newJobsPurgeCommand(opts))
	return cmd
}

func newJobsRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run job workers and the recurring scheduler until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := server.SignalContext(cmd.Context())
			defer stop()

			a, err := openApp(ctx, cfg, logger, appOptions{Remote: true})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			if n, err := jobs.NewQueue(a.db).RequeueStale(ctx, staleJobTimeout); err != nil {
				logger.Warn("requeue stale jobs", zap.Error(err))
			} else if n > 0 {
				logger.Info("requeued stale jobs", zap.Int64("count", n))
			}

			pool, scheduler, err := a.workers()
			if err != nil {
				return err
			}
			pool.Start(ctx)
			scheduler.Start(ctx)
			logger.Info("job workers running", zap.Int("workers", cfg.Jobs.Workers))

			<-ctx.Done()
			scheduler.Stop()
			pool.Stop()
			logger.Info("job workers stopped")
			return nil
		},
	}
}

func newJobsEnqueueCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <type>",
		Short: "Queue one run of a recurring job now",
		Long:  "Queue one run of a recurring job. Known types: " + strings.Join(jobTypes(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobType, err := parseJobType(args[0])
			if err != nil {
				return err
			}
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			job, err := jobs.NewJob(jobs.DefaultQueue, jobType, nil)
			if err != nil {
				return err
			}
			queued, err := jobs.NewQueue(a.db).EnqueueUnique(cmd.Context(), job)
			if err != nil {
				return err
			}
			if !queued {
				ui.Warn(cmd.OutOrStdout(), opts.noColor, "%s is already pending or running", jobType)
				return nil
			}
			ui.Success(cmd.OutOrStdout(), opts.noColor, "Queued %s (%s)", jobType, job.ID)
			return nil
		},
	}
}

func newJobsStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count jobs by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			stats, err := jobs.NewQueue(a.db).Stats(cmd.Context(), jobs.DefaultQueue)
			if err != nil {
				return err
			}
			table := ui.NewTable(cmd.OutOrStdout(), opts.noColor, "QUEUE", "PENDING", "RUNNING", "COMPLETED", "FAILED")
			table.AddRow(stats.Queue,
				strconv.Itoa(stats.Pending),
				strconv.Itoa(stats.Running),
				strconv.Itoa(stats.Completed),
				strconv.Itoa(stats.Failed))
			table.Render()
			return nil
		},
	}
}

func newJobsPurgeCommand(opts *rootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete completed jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			n, err := jobs.NewQueue(a.db).PurgeCompleted(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			ui.Success(cmd.OutOrStdout(), opts.noColor, "Purged %d completed job(s)", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Only jobs completed at least this long ago")
	return cmd
}

func jobTypes() []string {
	var types []string
	for _, s := range service.JobSchedules() {
		types = append(types, s.Type)
	}
	return types
}

func parseJobType(raw string) (string, error) {
	known := jobTypes()
	for _, t := range known {
		if raw == t {
			return t, nil
		}
	}
	if s := ui.Suggest(raw, known, 1); len(s) > 0 {
		return "", fmt.Errorf("unknown job type %q, did you mean %q?", raw, s[0])
	}
	return "", fmt.Errorf("unknown job type %q (one of %s)", raw, strings.Join(known, ", "))
}
