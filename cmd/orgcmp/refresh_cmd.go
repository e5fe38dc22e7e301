package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/output"
	"github.com/raphi011/orgcmp/internal/retrieve"
	"github.com/raphi011/orgcmp/internal/tree"
	"github.com/raphi011/orgcmp/internal/treesync"
	"github.com/raphi011/orgcmp/internal/ui/progress"
	"github.com/raphi011/orgcmp/internal/ui/static"
)

// errNothingExpanded is returned by refresh without arguments when no org
// is expanded.
var errNothingExpanded = errors.New("no org is expanded; run 'orgcmp expand <org>' or name the orgs to refresh")

func newRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "refresh [org...]",
		Short:   "Retrieve fresh source from orgs",
		Aliases: []string{"r"},
		GroupID: GroupCore,
		Long: `Retrieve the source of orgs and replace their cached trees.

Without arguments every expanded org is refreshed; named orgs are expanded
first. A failed retrieval leaves the previous cache untouched and collapses
the org. Pressing Ctrl-C cancels the refresh and restores the previous view.

Orgs are retrieved one at a time unless refresh_concurrency is raised in
the config.`,
		Example: `  orgcmp refresh             # Refresh all expanded orgs
  orgcmp refresh dev prod    # Refresh dev and prod`,
		ValidArgsFunction: completeOrgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := log.FromContext(ctx)
			out := output.FromContext(ctx)

			a, err := openApp(ctx)
			if err != nil {
				return err
			}

			ids := a.engine.Expanded()
			if len(args) > 0 {
				ids = nil
				for _, ref := range args {
					org, err := a.findOrg(ref)
					if err != nil {
						return err
					}
					ids = append(ids, org.ID)
				}
			}
			if len(ids) == 0 {
				return errNothingExpanded
			}

			if err := a.backend.CheckCLI(); err != nil {
				if errors.Is(err, retrieve.ErrCLINotFound) {
					return fmt.Errorf("%w: install it or set 'cli' in the config (see 'orgcmp config path')", err)
				}
				return err
			}

			reporter := progress.NewStepReporter(l, len(ids), treesync.TotalSteps)
			var outcomes []treesync.Outcome
			if len(args) == 0 {
				outcomes = a.engine.RefreshExpanded(ctx, reporter.Report)
			} else {
				outcomes = refreshOrgs(cmd, a, ids, reporter.Report)
			}
			reporter.Stop()

			// Failed orgs are collapsed now; remember that too.
			if err := a.save(); err != nil {
				return err
			}

			out.Print(static.RenderTable([]string{"ORG", "FILES", "RESULT"}, outcomeRows(a, outcomes)))

			if err := ctx.Err(); err != nil {
				return fmt.Errorf("refresh cancelled: %w", err)
			}
			failed := 0
			for _, o := range outcomes {
				if o.Err != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d orgs failed to refresh", failed, len(outcomes))
			}
			return nil
		},
	}

	return cmd
}

// refreshOrgs refreshes the named orgs with the configured concurrency.
func refreshOrgs(cmd *cobra.Command, a *app, ids []string, report treesync.ProgressFunc) []treesync.Outcome {
	ctx := cmd.Context()
	outcomes := make([]treesync.Outcome, len(ids))

	var g errgroup.Group
	g.SetLimit(max(1, a.cfg.RefreshConcurrency))
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = treesync.Outcome{OrgID: id, Err: &treesync.RefreshError{OrgID: id, Step: treesync.StepRetrieve, Err: err}}
				return nil
			}
			nodes, err := a.engine.Refresh(ctx, id, report)
			outcomes[i] = treesync.Outcome{OrgID: id, Files: tree.CountFiles(nodes), Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func outcomeRows(a *app, outcomes []treesync.Outcome) [][]string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		result := "refreshed"
		files := fmt.Sprint(o.Files)
		if o.Err != nil {
			files = "-"
			result = o.Err.Error()
			var rerr *treesync.RefreshError
			if errors.As(o.Err, &rerr) {
				result = fmt.Sprintf("failed at %s: %v", rerr.Step, rerr.Err)
			}
		}
		rows = append(rows, []string{a.orgName(o.OrgID), files, result})
	}
	return rows
}
