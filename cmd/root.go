package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/paulschiretz/pgl-sync/pkg/buildinfo"
	"github.com/paulschiretz/pgl-sync/pkg/config"
)

// NewRootCommand builds the pgl-sync command tree. Running the root command
// with SOURCE and DEST performs a sync.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pgl-sync [flags] SOURCE DEST",
		Short: "Synchronize a destination directory with a source directory",
		Long: buildinfo.Name + ` makes DEST match SOURCE: new and newer files are copied,
directories are created, and with --delete everything that exists only in
DEST is removed. Copies run on a pool of concurrent workers.

Unless --no-default-excludes is given, these patterns are never synced and
matching files in DEST survive --delete: ` + defaultExcludesText() + `.`,
		Args:          cobra.ExactArgs(2),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunSync(cmd.Context(), cmd, args[0], args[1])
		},
	}

	// --- Flag Design ---
	// Flags only override the config file when they are given explicitly,
	// so their defaults here are for help output only.
	flags := root.Flags()
	flags.BoolP("delete", "d", false, "Delete destination files and directories that do not exist in the source.")
	flags.BoolP("overwrite", "o", false, "Copy files whose modification times are equal.")
	flags.BoolP("force", "f", false, "Copy files even if the destination is newer. Implies --overwrite.")
	flags.BoolP("move", "m", false, "Move files instead of copying them.")
	flags.IntP("workers", "p", 0, "Number of concurrent transfer workers (default: number of CPUs).")
	flags.Int("diff-workers", 0, "Number of concurrent diff workers (default 4).")
	flags.Int("buffer-size-kb", 0, "Largest I/O buffer per copy in kilobytes (default 256).")
	flags.StringArray("exclude", nil, "Glob pattern to exclude, may be repeated. Supports '**'; a trailing '/' matches directories only. Added to the built-in excludes ("+defaultExcludesText()+").")
	flags.Bool("no-default-excludes", false, "Sync files matching the built-in excludes ("+defaultExcludesText()+") too.")
	flags.Int("retry-count", 0, "Number of retries for failed file copies.")
	flags.Duration("retry-wait", time.Second, "Time to wait between copy retries.")
	flags.Duration("mod-time-window", 0, "Treat modification times within this window as equal (0 = exact).")
	flags.Bool("dry-run", false, "Show what would be done without making any changes.")
	flags.String("report", "", "Write a JSON run report to this file (.gz or .zst to compress).")
	flags.String("config", "", "Path to a YAML config file.")
	flags.String("log-level", "info", "Logging level: 'debug', 'notice', 'info', 'warn', 'error'.")
	flags.BoolP("quiet", "q", false, "Only log warnings and errors.")
	flags.Duration("progress-interval", 0, "Log progress at this interval (0 = off).")

	root.AddCommand(NewVersionCommand())
	return root
}

func defaultExcludesText() string {
	return strings.Join(config.NewDefault().Sync.DefaultExcludes, ", ")
}
