package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/raphi011/orgcmp/internal/output"
	"github.com/raphi011/orgcmp/internal/registry"
	"github.com/raphi011/orgcmp/internal/tree"
	"github.com/raphi011/orgcmp/internal/ui/static"
)

// orgView is the machine-readable form of one org in the tree view.
type orgView struct {
	ID        string      `json:"id" yaml:"id"`
	Name      string      `json:"name" yaml:"name"`
	State     string      `json:"state" yaml:"state"`
	Refreshed *time.Time  `json:"refreshed,omitempty" yaml:"refreshed,omitempty"`
	Folders   []string    `json:"expandedFolders,omitempty" yaml:"expandedFolders,omitempty"`
	Nodes     []tree.Node `json:"nodes,omitempty" yaml:"nodes,omitempty"`
}

func newTreeCmd() *cobra.Command {
	var (
		allFolders bool
		showIDs    bool
		format     string
	)

	cmd := &cobra.Command{
		Use:     "tree [org...]",
		Short:   "Show the org tree",
		Aliases: []string{"t", "ls"},
		GroupID: GroupCore,
		Long: `Show registered orgs with their expanded folders and files.

Collapsed orgs show only their name; collapsed folders show their file count.
Selected files are marked. Use --ids to print the file IDs accepted by
'orgcmp select'.`,
		Example: `  orgcmp tree                # All orgs
  orgcmp tree dev prod       # Only dev and prod
  orgcmp tree --all --ids    # Open every folder and show file IDs
  orgcmp tree --format json  # Machine-readable`,
		ValidArgsFunction: completeOrgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)

			a, err := openApp(ctx)
			if err != nil {
				return err
			}

			orgs := a.reg.List()
			if len(args) > 0 {
				orgs = nil
				for _, ref := range args {
					org, err := a.findOrg(ref)
					if err != nil {
						return err
					}
					orgs = append(orgs, org)
				}
			}

			if len(orgs) == 0 {
				out.Println("No orgs registered. Use 'orgcmp org add' or 'orgcmp org import'.")
				return nil
			}

			trees := make([]static.OrgTree, len(orgs))
			for i, org := range orgs {
				trees[i] = a.orgTree(org)
			}

			if format != output.FormatText {
				return out.Encode(format, orgViews(a, orgs, trees))
			}

			out.Print(static.RenderTree(trees, static.TreeOptions{
				AllFolders: allFolders,
				ShowIDs:    showIDs,
				Selected:   a.isSelected,
			}))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&allFolders, "all", "a", false, "Show every folder open")
	cmd.Flags().BoolVar(&showIDs, "ids", false, "Show file IDs")
	cmd.Flags().StringVarP(&format, "format", "f", output.FormatText, "Output format: text, json, yaml")

	cmd.RegisterFlagCompletionFunc("format", completeFormats)

	return cmd
}

func orgViews(a *app, orgs []registry.Org, trees []static.OrgTree) []orgView {
	views := make([]orgView, len(orgs))
	for i, org := range orgs {
		v := orgView{
			ID:    org.ID,
			Name:  org.DisplayName(),
			State: a.engine.State(org.ID).String(),
		}
		if trees[i].Expanded {
			v.Nodes = trees[i].Nodes
			v.Folders = a.engine.ExpandedFolders(org.ID)
			if ts, ok := a.cache.LastRefreshed(org.ID); ok {
				v.Refreshed = &ts
			}
		}
		views[i] = v
	}
	return views
}
