package main

import (
	"github.com/spf13/cobra"

	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/output"
	"github.com/raphi011/orgcmp/internal/registry"
	"github.com/raphi011/orgcmp/internal/tree"
	"github.com/raphi011/orgcmp/internal/ui/static"
)

func newExpandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "expand <org> [folder...]",
		Short:   "Show an org's cached files",
		Aliases: []string{"x"},
		GroupID: GroupCore,
		Args:    cobra.MinimumNArgs(1),
		Long: `Expand an org and optionally some of its folders.

Expanding never contacts the org. If the org has been retrieved before, its
cached tree is shown as it was; otherwise a placeholder is shown until you
run 'orgcmp refresh'.

Folders are given as paths relative to the retrieved package directory
(e.g. "classes", "lwc/accountList") or as folder IDs.`,
		Example: `  orgcmp expand dev                 # Show dev's top-level folders
  orgcmp expand dev classes         # Also open the classes folder
  orgcmp expand dev lwc lwc/card    # Open nested folders`,
		ValidArgsFunction: completeOrgThenFolders,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := log.FromContext(ctx)
			out := output.FromContext(ctx)

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			org, err := a.findOrg(args[0])
			if err != nil {
				return err
			}

			nodes, err := a.engine.Expand(ctx, org.ID)
			if err != nil {
				return err
			}

			for _, arg := range args[1:] {
				id, err := folderID(org.ID, arg)
				if err != nil {
					return err
				}
				if _, err := a.engine.ExpandFolder(org.ID, id); err != nil {
					return err
				}
			}

			if err := a.save(); err != nil {
				return err
			}

			out.Print(static.RenderTree([]static.OrgTree{a.orgTree(org)}, static.TreeOptions{Selected: a.isSelected}))
			if tree.IsPlaceholder(nodes) {
				l.Printf("Run 'orgcmp refresh %s' to retrieve its source.\n", orgArg(org))
			}
			return nil
		},
	}

	return cmd
}

func newCollapseCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:     "collapse [org] [folder...]",
		Short:   "Hide an org or some of its folders",
		GroupID: GroupCore,
		Long: `Collapse an org, or only the given folders of it.

Collapsing an org keeps its folder state: expanding it again reopens the
same folders. Collapsing never deletes cached data.`,
		Example: `  orgcmp collapse dev            # Hide dev
  orgcmp collapse dev classes    # Close only the classes folder
  orgcmp collapse --all          # Hide every org`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		ValidArgsFunction: completeOrgThenFolders,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := log.FromContext(ctx)

			a, err := openApp(ctx)
			if err != nil {
				return err
			}

			if all {
				for _, id := range a.engine.Expanded() {
					if err := a.engine.Collapse(id); err != nil {
						return err
					}
				}
				return a.save()
			}

			org, err := a.findOrg(args[0])
			if err != nil {
				return err
			}

			if len(args) == 1 {
				if err := a.engine.Collapse(org.ID); err != nil {
					return err
				}
				l.Printf("Collapsed %s\n", org.DisplayName())
				return a.save()
			}

			for _, arg := range args[1:] {
				id, err := folderID(org.ID, arg)
				if err != nil {
					return err
				}
				a.engine.CollapseFolder(org.ID, id)
			}
			return a.save()
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Collapse every expanded org")

	return cmd
}

// orgArg returns the shortest way to name org on the command line.
func orgArg(org registry.Org) string {
	if org.Alias != "" {
		return org.Alias
	}
	return org.ID
}
