package main

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphi011/orgcmp/internal/cache"
	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/output"
	"github.com/raphi011/orgcmp/internal/registry"
	"github.com/raphi011/orgcmp/internal/ui/prompt"
	"github.com/raphi011/orgcmp/internal/ui/static"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cache",
		Short:   "Inspect and clear the file tree cache",
		GroupID: GroupUtility,
		Long: `Inspect and clear the per-org file tree cache.

The cache holds the tree built by the last successful refresh of each org,
so expanding an org never has to contact it.`,
		Example: `  orgcmp cache stats         # Totals and location
  orgcmp cache list          # One line per cached org
  orgcmp cache clear dev     # Drop dev's cached tree
  orgcmp cache clear --yes   # Drop everything without asking`,
	}

	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheListCmd())
	cmd.AddCommand(newCacheClearCmd())

	return cmd
}

func openStore(cmd *cobra.Command) (*cache.Store, error) {
	return cache.NewStore(configFromContext(cmd.Context()).CacheDir)
}

func newCacheStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			stats := store.Stats()

			if format != output.FormatText {
				return out.Encode(format, struct {
					Dir string `json:"dir" yaml:"dir"`
					cache.Stats `yaml:",inline"`
				}{store.Dir(), stats})
			}

			out.Print(static.RenderTable([]string{"LOCATION", "ORGS", "FILES", "SIZE"}, [][]string{{
				store.Dir(),
				fmt.Sprint(stats.TotalOrgs),
				fmt.Sprint(stats.TotalFiles),
				static.FormatBytes(stats.TotalBytes),
			}}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", output.FormatText, "Output format: text, json, yaml")
	cmd.RegisterFlagCompletionFunc("format", completeFormats)

	return cmd
}

func newCacheListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List cached orgs",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			reg, err := loadRegistry(cmd.Context())
			if err != nil {
				return err
			}

			entries := store.Entries()
			ids := store.ListIDs()
			metas := make([]cache.Metadata, len(ids))
			for i, id := range ids {
				metas[i] = entries[id]
			}

			if format != output.FormatText {
				return out.Encode(format, metas)
			}

			if len(metas) == 0 {
				out.Println("Cache is empty.")
				return nil
			}

			now := time.Now()
			var rows [][]string
			for _, m := range metas {
				name := m.Alias
				if org, ok := reg.Get(m.OrgID); ok {
					name = org.DisplayName()
				} else {
					name += " (unregistered)"
				}
				rows = append(rows, []string{m.OrgID, name, fmt.Sprint(m.FileCount), static.FormatAge(m.LastRefreshed, now)})
			}
			out.Print(static.RenderTable([]string{"ORG ID", "NAME", "FILES", "REFRESHED"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", output.FormatText, "Output format: text, json, yaml")
	cmd.RegisterFlagCompletionFunc("format", completeFormats)

	return cmd
}

func newCacheClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear [org...]",
		Short: "Remove cached trees",
		Long: `Remove the cached trees of the given orgs, or of all orgs.

Cleared orgs show a placeholder until they are refreshed again. Asks for
confirmation unless --yes is given.`,
		ValidArgsFunction: completeOrgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := log.FromContext(ctx)

			store, err := openStore(cmd)
			if err != nil {
				return err
			}

			var ids []string
			if len(args) > 0 {
				reg, err := loadRegistry(ctx)
				if err != nil {
					return err
				}
				for _, ref := range args {
					id, err := cachedOrgID(reg, store, ref)
					if err != nil {
						return err
					}
					ids = append(ids, id)
				}
			}

			what := "the entire cache"
			affected := ids
			if len(ids) > 0 {
				what = fmt.Sprintf("the cache of %d org(s)", len(ids))
			} else {
				affected = store.ListIDs()
			}
			if !yes {
				if !interactive() {
					return errors.New("refusing to clear the cache without --yes when not on a terminal")
				}
				entries := store.Entries()
				lines := make([]string, len(affected))
				for i, id := range affected {
					lines[i] = fmt.Sprintf("%s (%d files)", id, entries[id].FileCount)
				}
				res, err := prompt.Confirm(fmt.Sprintf("Clear %s?", what), lines...)
				if err != nil {
					return err
				}
				if !res.Confirmed {
					l.Println("Aborted")
					return nil
				}
			}

			if len(ids) == 0 {
				if err := store.Clear(ctx); err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				l.Println("Cache cleared")
				return nil
			}

			for _, id := range ids {
				if err := store.Remove(ctx, id); err != nil {
					return fmt.Errorf("clear cache of %s: %w", id, err)
				}
				l.Printf("Cleared %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

// cachedOrgID resolves ref against the registry, falling back to raw IDs
// of cached orgs that are no longer registered.
func cachedOrgID(reg *registry.Registry, store *cache.Store, ref string) (string, error) {
	if org, err := reg.Find(ref); err == nil {
		return org.ID, nil
	}
	if slices.Contains(store.ListIDs(), ref) {
		return ref, nil
	}
	return "", fmt.Errorf("org not found: %s", ref)
}
