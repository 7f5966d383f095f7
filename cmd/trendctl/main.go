// Package main provides trendctl, the operator CLI for the trend pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/anonto42/trendpulse/backend/internal/app"
	"github.com/anonto42/trendpulse/backend/internal/logging"
	"github.com/anonto42/trendpulse/backend/internal/tasks"
	"github.com/anonto42/trendpulse/backend/pkg/config"
)

var version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the root command for trendctl.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "trendctl",
		Short:         "Operate the TrendPulse ingestion pipeline",
		Long:          "trendctl runs fetches, retention and the staleness check synchronously against the configured database.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnv()
			logging.InitLogger(os.Getenv("LOG_LEVEL"))
		},
	}

	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newCleanupCmd())
	rootCmd.AddCommand(newWatchdogCmd())
	rootCmd.AddCommand(newScheduleCmd())

	return rootCmd
}

// withApp opens the pipeline for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) (interface{}, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	return runApp(ctx, cmd.OutOrStdout(), a, fn)
}

// runApp prints fn's result. Work fn leaves on an in-process queue would die
// with the process, so it runs here before returning.
func runApp(ctx context.Context, w io.Writer, a *app.App, fn func(ctx context.Context, a *app.App) (interface{}, error)) error {
	out, err := fn(ctx, a)
	if out != nil {
		if encErr := printJSON(w, out); encErr != nil {
			return encErr
		}
	}
	if err != nil || !a.InProcess() {
		return err
	}

	executed, runErr := a.RunPending(ctx)
	if len(executed) > 0 {
		if encErr := printJSON(w, map[string]interface{}{"executed": executed}); encErr != nil {
			return encErr
		}
	}
	if runErr != nil {
		return fmt.Errorf("run queued tasks: %w", runErr)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newFetchCmd creates the fetch subcommand.
func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "fetch <youtube|reddit|all>",
		Short:     "Fetch trends from a platform now",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"youtube", "reddit", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				switch args[0] {
				case "youtube":
					return a.YouTube.Fetch(ctx), nil
				case "reddit":
					return a.Reddit.Fetch(ctx), nil
				default:
					return map[string]interface{}{
						"youtube": a.YouTube.Fetch(ctx),
						"reddit":  a.Reddit.Fetch(ctx),
					}, nil
				}
			})
		},
	}
}

// newCleanupCmd creates the cleanup subcommand.
func newCleanupCmd() *cobra.Command {
	var maxAgeDays, maxRecords int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete trends past the age and per-platform limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			retention := config.Load().Retention
			if !cmd.Flags().Changed("max-age-days") {
				maxAgeDays = retention.MaxAgeDays
			}
			if !cmd.Flags().Changed("max-records") {
				maxRecords = retention.MaxRecordsPerPlatform
			}
			if maxAgeDays < 1 || maxRecords < 1 {
				return fmt.Errorf("--max-age-days and --max-records must be at least 1")
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				report := a.Cleaner.Cleanup(ctx, maxAgeDays, maxRecords)
				if report.Error != "" {
					return report, fmt.Errorf("cleanup failed: %s", report.Error)
				}
				return report, nil
			})
		},
	}

	cmd.Flags().IntVar(&maxAgeDays, "max-age-days", 0, "Delete trends older than this many days (default from RETENTION_MAX_AGE_DAYS)")
	cmd.Flags().IntVar(&maxRecords, "max-records", 0, "Keep at most this many trends per platform (default from RETENTION_MAX_RECORDS)")

	return cmd
}

// newWatchdogCmd creates the watchdog subcommand.
func newWatchdogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watchdog",
		Short: "Queue a full fetch if stored trends are missing or stale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				report := a.Orchestrator.CheckMissed(ctx)
				if report.Error != "" {
					return report, fmt.Errorf("watchdog failed: %s", report.Error)
				}
				return report, nil
			})
		},
	}
}

// newScheduleCmd creates the schedule subcommand.
func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Print the periodic task table with next run times (UTC)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printSchedule(cmd.OutOrStdout(), tasks.DefaultSchedule(config.Load().Retention), time.Now().UTC())
		},
	}
}

func printSchedule(w io.Writer, entries []tasks.ScheduleEntry, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSCHEDULE\tTASK\tNEXT RUN")
	for _, e := range entries {
		sched, err := cron.ParseStandard("CRON_TZ=UTC " + e.Spec)
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.Name, err)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Spec, e.Task, sched.Next(now).Format(time.RFC3339))
	}
	return tw.Flush()
}
