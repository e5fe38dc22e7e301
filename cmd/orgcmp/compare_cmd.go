package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/raphi011/orgcmp/internal/compare"
	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/output"
	"github.com/raphi011/orgcmp/internal/selection"
	"github.com/raphi011/orgcmp/internal/tree"
	"github.com/raphi011/orgcmp/internal/ui/progress"
	"github.com/raphi011/orgcmp/internal/ui/static"
)

func newCompareCmd() *cobra.Command {
	var (
		format       string
		unified      bool
		contextLines int
		changedOnly  bool
		copyOut      bool
	)

	cmd := &cobra.Command{
		Use:     "compare",
		Short:   "Compare the selected files",
		Aliases: []string{"diff", "c"},
		GroupID: GroupCompare,
		Args:    cobra.NoArgs,
		Long: `Compare the selected files line by line.

Every line of every file is classified by position against the same line
of the other files: unchanged (identical everywhere), added (the others
have nothing there), removed (this file ends before the others) or
modified. Two to ten files can be compared at once.

Content is read from the last retrieval; files without a local copy are
fetched from their org. --unified prints a unified patch of the first
file against each other file instead.`,
		Example: `  orgcmp compare                  # Classified side-by-side listing
  orgcmp compare --changed-only   # Hide unchanged lines
  orgcmp compare --unified        # Unified patch(es)
  orgcmp compare --format json    # Machine-readable result
  orgcmp compare --unified --copy # Copy the patch to the clipboard`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := log.FromContext(ctx)
			out := output.FromContext(ctx)

			a, err := openApp(ctx)
			if err != nil {
				return err
			}

			files := a.sel.Files()
			if len(files) < selection.MinFiles {
				return fmt.Errorf("%w (%d selected, see 'orgcmp select')", selection.ErrNotEnoughFiles, len(files))
			}
			refs := a.current(ctx, files)

			resolver := compare.NewResolver(a.backend, a.reg, a.cfg.FetchConcurrency)
			engine := compare.NewEngine(resolver)

			var text string
			switch {
			case unified:
				stop := showFetches(ctx, a, resolver, refs)
				inputs, err := engine.Inputs(ctx, refs)
				stop()
				if err != nil {
					return err
				}
				text, err = unifiedPatches(inputs, contextLines)
				if err != nil {
					return err
				}
				out.Print(text)

			default:
				stop := showFetches(ctx, a, resolver, refs)
				result, err := engine.Compare(ctx, refs)
				stop()
				if err != nil {
					return err
				}
				if format != output.FormatText {
					return out.Encode(format, result)
				}
				text = static.RenderComparison(result, static.CompareOptions{
					Labels:      fileLabels(a, refs),
					ChangedOnly: changedOnly,
				})
				out.Print(text)
			}

			if copyOut {
				if err := clipboard.WriteAll(ansi.Strip(text)); err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
				l.Println("Copied to clipboard")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", output.FormatText, "Output format: text, json, yaml")
	cmd.Flags().BoolVarP(&unified, "unified", "u", false, "Print unified patches against the first file")
	cmd.Flags().IntVarP(&contextLines, "context", "U", compare.DefaultContext, "Context lines for --unified")
	cmd.Flags().BoolVar(&changedOnly, "changed-only", false, "Hide unchanged lines")
	cmd.Flags().BoolVar(&copyOut, "copy", false, "Copy the output to the clipboard")
	cmd.MarkFlagsMutuallyExclusive("unified", "format")

	cmd.RegisterFlagCompletionFunc("format", completeFormats)

	return cmd
}

// unifiedPatches renders the first input against each of the others.
func unifiedPatches(inputs []compare.Input, contextLines int) (string, error) {
	var b strings.Builder
	for _, in := range inputs[1:] {
		patch, err := compare.Unified(inputs[0], in, contextLines)
		if err != nil {
			return "", err
		}
		if patch == "" {
			fmt.Fprintf(&b, "%s and %s are identical\n", inputs[0].File.ID, in.File.ID)
			continue
		}
		b.WriteString(patch)
	}
	return b.String(), nil
}

// fileLabels names each file by org and path.
func fileLabels(a *app, refs []tree.FileRef) []string {
	labels := make([]string, len(refs))
	for i, ref := range refs {
		_, rel, _ := strings.Cut(ref.ID, ":")
		labels[i] = a.orgName(ref.OrgID) + " " + rel
	}
	return labels
}

// showFetches shows a spinner on a terminal while files without a local
// copy are fetched through r. The returned func stops it.
func showFetches(ctx context.Context, a *app, r *compare.Resolver, refs []tree.FileRef) (stop func()) {
	remote := 0
	for _, ref := range refs {
		if !hasLocalCopy(ref) {
			remote++
		}
	}
	if remote == 0 || log.FromContext(ctx).Quiet() || !isatty.IsTerminal(os.Stderr.Fd()) {
		return func() {}
	}

	sp := progress.NewFetchSpinner(os.Stderr, "Fetching from orgs", remote)
	r.OnFetched = func(ref tree.FileRef) {
		sp.Fetched(a.orgName(ref.OrgID) + " " + ref.Name)
	}
	sp.Start()
	return sp.Stop
}

func hasLocalCopy(ref tree.FileRef) bool {
	if ref.LocalPath == "" {
		return false
	}
	_, err := os.Stat(ref.LocalPath)
	return err == nil
}
