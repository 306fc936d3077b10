package main

import (
	"errors"
	"fmt"
	"io"

	"video_pipeline_service/internal/pipeline/app"
	"video_pipeline_service/internal/pipeline/domain"

	"github.com/spf13/cobra"
)

func newReapCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Delete non-terminal jobs older than stale_after (processing included), with their raw uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			reaper, err := ctx.reaper(cmd.Context())
			if err != nil {
				return err
			}
			report, err := reaper.Sweep(cmd.Context())
			if done := busy(cmd.OutOrStdout(), err); done {
				return nil
			}
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), "stale", report)
			return nil
		},
	}
}

func newReclaimCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reclaim",
		Short: "Requeue processing jobs whose worker went silent",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			reaper, err := ctx.reaper(cmd.Context())
			if err != nil {
				return err
			}
			n, err := reaper.ReclaimStuck(cmd.Context())
			if done := busy(cmd.OutOrStdout(), err); done {
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requeued: %d\n", n)
			return nil
		},
	}
}

func newPurgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete done and failed jobs older than terminal_retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			reaper, err := ctx.reaper(cmd.Context())
			if err != nil {
				return err
			}
			report, err := reaper.PurgeTerminal(cmd.Context())
			if done := busy(cmd.OutOrStdout(), err); done {
				return nil
			}
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), "terminal", report)
			return nil
		},
	}
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the pipeline tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			repo, err := ctx.jobRepo()
			if err != nil {
				return err
			}
			if err := repo.AutoMigrate(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migration complete")
			return nil
		},
	}
}

// busy a concurrent run holds the lock, not an error for a scheduled job
func busy(out io.Writer, err error) bool {
	if errors.Is(err, app.ErrReaperBusy) {
		fmt.Fprintln(out, "Another maintenance run is in progress, skipping")
		return true
	}
	return false
}

func printReport(out io.Writer, kind string, r domain.ReapReport) {
	fmt.Fprintf(out, "Sweep:    %s\n", kind)
	fmt.Fprintf(out, "Scanned:  %d\n", r.Scanned)
	fmt.Fprintf(out, "Deleted:  %d\n", r.Deleted)
	fmt.Fprintf(out, "Objects:  %d\n", r.ObjectsDeleted)
	fmt.Fprintf(out, "Errors:   %d\n", r.Errors)
}
