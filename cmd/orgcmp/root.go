package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/colorprofile"
	"github.com/spf13/cobra"

	"github.com/raphi011/orgcmp/internal/config"
	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/output"
	"github.com/raphi011/orgcmp/internal/ui/styles"
)

// Command group IDs for organizing help output
const (
	GroupCore    = "core"
	GroupCompare = "compare"
	GroupOrgs    = "orgs"
	GroupUtility = "utility"
	GroupConfig  = "config"
)

// newRootCmd builds the command tree. Execute calls it once; tests build a
// fresh tree per invocation.
func newRootCmd() *cobra.Command {
	var (
		verbose bool
		quiet   bool
	)

	rootCmd := &cobra.Command{
		Use:   "orgcmp",
		Short: "Browse and compare source files across Salesforce orgs",
		Long: `orgcmp retrieves the Apex, Visualforce and Lightning source of registered
orgs, caches it locally and compares the same file across two to ten orgs.

Expanding an org shows its cached files instantly; only 'orgcmp refresh'
talks to the org.`,
		SilenceUsage:               true,
		SilenceErrors:              true,
		SuggestionsMinimumDistance: 2, // Enable typo suggestions
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			// Diagnostics on stderr, primary data on stdout. The writer
			// downsamples colors when stdout is not a terminal.
			ctx = log.WithLogger(ctx, log.New(cmd.ErrOrStderr(), verbose, quiet))
			ctx = output.WithPrinter(ctx, colorprofile.NewWriter(cmd.OutOrStdout(), os.Environ()))

			cfg := config.FromContext(ctx)
			if cfg == nil {
				d := config.Default()
				cfg = &d
				ctx = config.WithConfig(ctx, cfg)
			}
			cmd.SetContext(ctx)

			// Skip theme setup for completion and help commands
			if cmd.Name() == "completion" || cmd.Name() == "__complete" || cmd.Name() == "help" {
				return nil
			}
			styles.Init(cfg.Theme)
			return nil
		},
		// Run is not set - shows help when no subcommand provided
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show external commands and debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all log output")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	// Version flag
	rootCmd.Version = versionString()
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	// Add command groups for organized help output
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupCore, Title: "Core Commands:"},
		&cobra.Group{ID: GroupCompare, Title: "Compare Commands:"},
		&cobra.Group{ID: GroupOrgs, Title: "Org Commands:"},
		&cobra.Group{ID: GroupUtility, Title: "Utility Commands:"},
		&cobra.Group{ID: GroupConfig, Title: "Configuration Commands:"},
	)

	// Core commands
	rootCmd.AddCommand(newExpandCmd())
	rootCmd.AddCommand(newCollapseCmd())
	rootCmd.AddCommand(newTreeCmd())
	rootCmd.AddCommand(newRefreshCmd())

	// Compare commands
	rootCmd.AddCommand(newSelectCmd())
	rootCmd.AddCommand(newSelectionCmd())
	rootCmd.AddCommand(newCompareCmd())
	rootCmd.AddCommand(newFindCmd())

	// Org commands
	rootCmd.AddCommand(newOrgCmd())

	// Utility commands
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newDoctorCmd())

	// Config commands
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	// Load config
	loadedCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	// Ctrl-C cancels in-flight retrievals; the org returns to its previous state.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctx = config.WithConfig(ctx, &loadedCfg)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Run 'orgcmp -h' for help")
		cancel()
		os.Exit(1)
	}
}
