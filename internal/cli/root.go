// Package cli implements the plugman command-line interface.
//
// The CLI exposes plugin lifecycle management under the `plugin` namespace:
// install, uninstall, update, and list. All commands support --verbose (-v)
// for debug-level logging; loggers travel through context.Context.
package cli

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version string // semantic version (e.g., "v1.2.3")
	commit  string // git commit SHA
	date    string // build timestamp
)

// SetVersion sets the version information displayed by --version.
// Typically called by the main package with values injected via ldflags.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the plugman CLI and returns an error if any command fails.
func Execute(ctx context.Context) error {
	var verbose bool

	root := &cobra.Command{
		Use:          "plugman",
		Short:        "plugman installs and manages local plugin packages",
		Long:         `plugman is a local plugin package manager: it fetches plugin trees from GitHub shorthands, git URLs, SSH remotes, or local paths at a specific revision and keeps a crash-safe registry of what is installed where.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("plugman %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newPluginCmd())

	return root.ExecuteContext(ctx)
}
