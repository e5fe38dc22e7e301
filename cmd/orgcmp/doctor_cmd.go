package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphi011/orgcmp/internal/cache"
	"github.com/raphi011/orgcmp/internal/doctor"
)

func newDoctorCmd() *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:     "doctor",
		Short:   "Diagnose and repair cache issues",
		GroupID: GroupUtility,
		Args:    cobra.NoArgs,
		Long: `Check the orgcmp setup for problems.

Checks that the retrieval CLI is installed, that every cache index entry
has readable blobs matching its file count, that no blobs are orphaned by
an interrupted write, and that neither the cache nor the staging directory
holds data of orgs that are no longer registered.

Without --fix nothing is changed.`,
		Example: `  orgcmp doctor        # Report issues
  orgcmp doctor --fix  # Repair what can be repaired`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFromContext(ctx)

			reg, err := loadRegistry(ctx)
			if err != nil {
				return err
			}
			// Not a cache.Manager: loading it would evict stale entries
			// before they could be reported.
			store, err := cache.NewStore(cfg.CacheDir)
			if err != nil {
				return err
			}
			b := newBackend(ctx, cfg)

			report, err := doctor.Run(ctx, doctor.Options{
				Store:    store,
				KnownIDs: reg.IDs(),
				WorkDir:  cfg.WorkDir,
				CLI:      b,
				Staging:  b,
			}, fix)
			if err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d issue(s) could not be fixed", report.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Repair issues")

	return cmd
}
