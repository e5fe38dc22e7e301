package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphi011/orgcmp/internal/config"
	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/output"
	"github.com/raphi011/orgcmp/internal/ui/styles"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Manage configuration",
		Aliases: []string{"cfg"},
		GroupID: GroupConfig,
		Long: `Manage orgcmp configuration.

Config file: ~/.config/orgcmp/config.toml
ORGCMP_CACHE_DIR, ORGCMP_WORK_DIR, ORGCMP_CLI, ORGCMP_THEME and
ORGCMP_THEME_MODE override the file.`,
		Example: `  orgcmp config init     # Create default config
  orgcmp config show     # Show effective config
  orgcmp config path     # Print the config file path
  orgcmp config themes   # List theme presets`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigThemesCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force  bool
		stdout bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create default config file",
		Args:  cobra.NoArgs,
		Long: `Create the default config file at ~/.config/orgcmp/config.toml.

Every setting is present but commented out, so the file documents the
defaults.`,
		Example: `  orgcmp config init      # Create config
  orgcmp config init -f   # Overwrite existing config
  orgcmp config init -s   # Print config to stdout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if stdout {
				output.FromContext(ctx).Print(config.DefaultConfig())
				return nil
			}

			path, err := config.Init(force)
			if err != nil {
				if errors.Is(err, config.ErrExists) {
					return fmt.Errorf("%w (use -f to overwrite)", err)
				}
				return err
			}

			log.FromContext(ctx).Printf("Created config file: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing config")
	cmd.Flags().BoolVarP(&stdout, "stdout", "s", false, "Print config to stdout")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Args:  cobra.NoArgs,
		Long: `Show the effective configuration: defaults, overridden by the config file,
overridden by the environment.`,
		Example: `  orgcmp config show                # Show config
  orgcmp config show --format json  # Output as JSON`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFromContext(ctx)
			out := output.FromContext(ctx)

			if format != output.FormatText {
				return out.Encode(format, cfg)
			}

			path, _ := config.Path()
			out.Printf("Config file: %s\n\n", path)
			out.Printf("cache_dir: %s\n", cfg.CacheDir)
			out.Printf("work_dir: %s\n", cfg.WorkDir)
			out.Printf("max_files: %d\n", cfg.MaxFiles)
			out.Printf("cli: %s\n", cfg.CLI)
			out.Printf("retrieve_timeout: %s\n", cfg.RetrieveTimeout.Duration)
			out.Printf("metadata: %s\n", strings.Join(cfg.Metadata, ", "))
			out.Printf("include_meta_files: %v\n", cfg.IncludeMetaFiles)
			out.Printf("refresh_concurrency: %d\n", cfg.RefreshConcurrency)
			out.Printf("fetch_concurrency: %d\n", cfg.FetchConcurrency)
			out.Printf("theme.name: %s\n", cfg.Theme.Name)
			out.Printf("theme.mode: %s\n", cfg.Theme.Mode)
			out.Printf("theme.nerdfont: %v\n", cfg.Theme.Nerdfont)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", output.FormatText, "Output format: text, json, yaml")
	cmd.RegisterFlagCompletionFunc("format", completeFormats)

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Path()
			if err != nil {
				return err
			}
			output.FromContext(cmd.Context()).Println(path)
			return nil
		},
	}
}

func newConfigThemesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List theme presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFromContext(ctx)
			out := output.FromContext(ctx)

			for _, name := range styles.PresetNames() {
				marker := " "
				if name == cfg.Theme.Name {
					marker = "*"
				}
				out.Printf("%s %s\n", marker, name)
			}
			return nil
		},
	}
}
