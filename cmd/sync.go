package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/paulschiretz/pgl-sync/pkg/buildinfo"
	"github.com/paulschiretz/pgl-sync/pkg/config"
	"github.com/paulschiretz/pgl-sync/pkg/lockfile"
	"github.com/paulschiretz/pgl-sync/pkg/pathsync"
	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/preflight"
	"github.com/paulschiretz/pgl-sync/pkg/report"
)

// ErrCompletedWithErrors is returned when a sync ran to the end but some
// operations failed. The failures have already been listed.
var ErrCompletedWithErrors = errors.New("sync completed with errors")

// RunSync handles the logic for a sync from src to dst.
func RunSync(ctx context.Context, cmd *cobra.Command, src, dst string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	loadedConfig, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	runConfig, err := config.ApplyFlags(loadedConfig, cmd.Flags())
	if err != nil {
		return err
	}
	if runConfig.Source, err = filepath.Abs(src); err != nil {
		return fmt.Errorf("failed to resolve source path %s: %w", src, err)
	}
	if runConfig.Destination, err = filepath.Abs(dst); err != nil {
		return fmt.Errorf("failed to resolve destination path %s: %w", dst, err)
	}
	if err := runConfig.Validate(); err != nil {
		return err
	}

	plog.SetLevel(plog.LevelFromString(runConfig.Logging.Level))
	plog.SetQuiet(runConfig.Logging.Quiet)
	runConfig.LogSummary()

	// The lock lives in the destination root, so the root has to exist
	// before the sync engine would create it.
	if !runConfig.Sync.DryRun {
		if err := preflight.CheckSourceAccessible(runConfig.Source); err != nil {
			return err
		}
		if err := preflight.CheckPathNesting(runConfig.Source, runConfig.Destination); err != nil {
			return err
		}
		if err := preflight.CheckTargetAccessible(runConfig.Destination); err != nil {
			return err
		}
		if err := preflight.EnsureTargetRoot(runConfig.Destination); err != nil {
			return err
		}
		lock, err := lockfile.Acquire(ctx, runConfig.Destination, buildinfo.Name)
		if err != nil {
			return fmt.Errorf("failed to lock destination %s: %w", runConfig.Destination, err)
		}
		defer lock.Release()
	}

	run, err := pathsync.NewSyncer().Start(ctx, runConfig.Source, runConfig.Destination, runConfig.Plan())
	if err != nil {
		return err
	}
	waitErr := run.Wait()

	records := run.Errors()
	if len(records) > 0 {
		printErrors(cmd, records)
	}

	if runConfig.Report.Path != "" {
		if err := report.Write(runConfig.Report.Path, run.Summary()); err != nil {
			plog.Warn("Failed to write run report", "path", runConfig.Report.Path, "error", err)
		} else {
			plog.Info("Run report written", "path", runConfig.Report.Path)
		}
	}

	if waitErr != nil {
		return fmt.Errorf("sync did not complete: %w", waitErr)
	}
	if len(records) > 0 {
		return fmt.Errorf("%w: %d failed operations", ErrCompletedWithErrors, len(records))
	}
	plog.Info(buildinfo.Name+" finished successfully.", "duration", run.Duration().Round(time.Millisecond))
	return nil
}

func printErrors(cmd *cobra.Command, records []pathsync.ErrorRecord) {
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "\n%d errors occurred:\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(w, "  [%s] %s (%s): %v\n", rec.Kind, rec.Path, rec.Reason, rec.Err)
	}
}
