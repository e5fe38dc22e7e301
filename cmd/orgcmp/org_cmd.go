package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphi011/orgcmp/internal/cache"
	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/output"
	"github.com/raphi011/orgcmp/internal/registry"
	"github.com/raphi011/orgcmp/internal/ui/static"
)

func newOrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "org",
		Short:   "Manage registered orgs",
		Aliases: []string{"orgs", "o"},
		GroupID: GroupOrgs,
		Long: `Manage the orgs orgcmp knows about.

Registered orgs are stored in ~/.orgcmp/orgs.json. Each org is identified by
its org ID and retrieved with its username; the alias is a short name to
use on the command line.`,
		Example: `  orgcmp org list                                   # Show registered orgs
  orgcmp org add 00D5g000004ABCD dev@acme.com -a dev   # Register an org
  orgcmp org import                                 # Register every org the CLI knows
  orgcmp org remove dev                             # Unregister an org`,
	}

	cmd.AddCommand(newOrgListCmd())
	cmd.AddCommand(newOrgAddCmd())
	cmd.AddCommand(newOrgRemoveCmd())
	cmd.AddCommand(newOrgImportCmd())

	return cmd
}

// orgInfo is one row of 'org list'.
type orgInfo struct {
	registry.Org `yaml:",inline"`
	Files        int        `json:"files" yaml:"files"`
	Refreshed    *time.Time `json:"refreshed,omitempty" yaml:"refreshed,omitempty"`
}

func newOrgListCmd() *cobra.Command {
	var (
		label  string
		format string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List registered orgs",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		Example: `  orgcmp org list                # All orgs
  orgcmp org list -l sandbox     # Filter by label
  orgcmp org list --format json  # Output as JSON`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)

			reg, err := loadRegistry(ctx)
			if err != nil {
				return err
			}

			orgs := reg.List()
			if label != "" {
				orgs = reg.FindByLabel(label)
			}

			store, err := cache.NewStore(configFromContext(ctx).CacheDir)
			if err != nil {
				return err
			}
			entries := store.Entries()

			infos := make([]orgInfo, len(orgs))
			for i, org := range orgs {
				infos[i].Org = org
				if meta, ok := entries[org.ID]; ok {
					ts := meta.LastRefreshed
					infos[i].Files = meta.FileCount
					infos[i].Refreshed = &ts
				}
			}

			if format != output.FormatText {
				return out.Encode(format, infos)
			}

			if len(infos) == 0 {
				out.Println("No orgs registered. Use 'orgcmp org add' or 'orgcmp org import'.")
				return nil
			}

			now := time.Now()
			headers := []string{"ID", "ALIAS", "USERNAME", "FILES", "REFRESHED", "LABELS"}
			var rows [][]string
			for _, info := range infos {
				alias, files, refreshed := "-", "-", "never"
				if info.Alias != "" {
					alias = info.Alias
				}
				if info.Refreshed != nil {
					files = fmt.Sprint(info.Files)
					refreshed = static.FormatAge(*info.Refreshed, now)
				}
				rows = append(rows, []string{info.ID, alias, info.Username, files, refreshed, static.JoinLabels(info.Labels)})
			}
			out.Print(static.RenderTable(headers, rows))
			return nil
		},
	}

	cmd.Flags().StringVarP(&label, "label", "l", "", "Filter by label")
	cmd.Flags().StringVarP(&format, "format", "f", output.FormatText, "Output format: text, json, yaml")

	cmd.RegisterFlagCompletionFunc("label", completeLabels)
	cmd.RegisterFlagCompletionFunc("format", completeFormats)

	return cmd
}

func newOrgAddCmd() *cobra.Command {
	var (
		alias       string
		instanceURL string
		labels      []string
	)

	cmd := &cobra.Command{
		Use:   "add <org-id> <username>",
		Short: "Register an org",
		Long: `Register an org by its ID and the username the CLI is authenticated as.

Adding an org that is already registered replaces its entry, e.g. after
re-authenticating with a different user.`,
		Example: `  orgcmp org add 00D5g000004ABCD dev@acme.com --alias dev
  orgcmp org add 00D5g000004WXYZ admin@acme.com.uat -a uat -l sandbox`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := log.FromContext(ctx)

			reg, err := loadRegistry(ctx)
			if err != nil {
				return err
			}

			org := registry.Org{
				ID:          args[0],
				Username:    args[1],
				Alias:       alias,
				InstanceURL: instanceURL,
				Labels:      labels,
			}
			replaced, err := reg.Add(org)
			if err != nil {
				return err
			}
			if err := reg.Save(); err != nil {
				return err
			}

			if replaced {
				l.Printf("Updated %s (%s)\n", org.DisplayName(), org.ID)
			} else {
				l.Printf("Added %s (%s)\n", org.DisplayName(), org.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&alias, "alias", "a", "", "Short name for the org")
	cmd.Flags().StringVar(&instanceURL, "instance-url", "", "Instance URL")
	cmd.Flags().StringSliceVarP(&labels, "label", "l", nil, "Label for grouping (repeatable)")

	cmd.RegisterFlagCompletionFunc("label", completeLabels)

	return cmd
}

func newOrgRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove <org>...",
		Short:   "Unregister orgs",
		Aliases: []string{"rm"},
		Long: `Unregister orgs and delete their cached trees and retrieved source.

Selected files of removed orgs are deselected.`,
		Example: `  orgcmp org remove dev
  orgcmp org remove 00D5g000004ABCD uat`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeOrgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := log.FromContext(ctx)

			a, err := openApp(ctx)
			if err != nil {
				return err
			}

			var removed []registry.Org
			for _, ref := range args {
				org, err := a.reg.Remove(ref)
				if err != nil {
					return err
				}
				removed = append(removed, org)
			}
			if err := a.reg.Save(); err != nil {
				return err
			}

			for _, org := range removed {
				if err := a.cache.Invalidate(ctx, org.ID); err != nil {
					l.Warn("could not clear cache of %s: %v", org.ID, err)
				}
				if err := a.backend.RemoveOrg(org.ID); err != nil {
					l.Warn("could not remove retrieved source of %s: %v", org.ID, err)
				}
				a.engine.Forget(org.ID)
				for _, f := range a.sel.Files() {
					if f.OrgID == org.ID {
						a.sel.Remove(f.ID)
					}
				}
				l.Printf("Removed %s (%s)\n", org.DisplayName(), org.ID)
			}

			return a.save()
		},
	}

	return cmd
}

func newOrgImportCmd() *cobra.Command {
	var (
		dryRun bool
		labels []string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Register the orgs the platform CLI is logged in to",
		Long: `Register every org listed by 'sf org list'.

Orgs that are already registered are updated with the CLI's username, alias
and instance URL; their labels are kept. Orgs whose alias is taken by
another registered org are skipped.`,
		Example: `  orgcmp org import            # Import all authenticated orgs
  orgcmp org import --dry-run  # Show what would be imported
  orgcmp org import -l team    # Label the imported orgs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := log.FromContext(ctx)
			out := output.FromContext(ctx)
			cfg := configFromContext(ctx)

			reg, err := loadRegistry(ctx)
			if err != nil {
				return err
			}

			found, err := newBackend(ctx, cfg).ListOrgs(ctx)
			if err != nil {
				return fmt.Errorf("list orgs: %w", err)
			}
			if len(found) == 0 {
				l.Println("The CLI is not logged in to any org.")
				return nil
			}

			var rows [][]string
			for _, org := range found {
				action := "added"
				if existing, ok := reg.Get(org.ID); ok {
					action = "updated"
					org.Labels = existing.Labels
				}
				for _, lbl := range labels {
					if !slices.Contains(org.Labels, lbl) {
						org.Labels = append(org.Labels, lbl)
					}
				}
				if _, err := reg.Add(org); err != nil {
					l.Warn("skipping %s: %v", org.ID, err)
					continue
				}
				alias := org.Alias
				if alias == "" {
					alias = "-"
				}
				rows = append(rows, []string{org.ID, alias, org.Username, action})
			}

			if !dryRun {
				if err := reg.Save(); err != nil {
					return err
				}
			}

			out.Print(static.RenderTable([]string{"ID", "ALIAS", "USERNAME", "RESULT"}, rows))
			if dryRun {
				l.Println("Dry run: nothing was saved.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would be imported without saving")
	cmd.Flags().StringSliceVarP(&labels, "label", "l", nil, "Label to add to imported orgs (repeatable)")

	cmd.RegisterFlagCompletionFunc("label", completeLabels)

	return cmd
}
