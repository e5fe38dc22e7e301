package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/output"
	"github.com/raphi011/orgcmp/internal/resolve"
	"github.com/raphi011/orgcmp/internal/selection"
	"github.com/raphi011/orgcmp/internal/tree"
	"github.com/raphi011/orgcmp/internal/ui/prompt"
	"github.com/raphi011/orgcmp/internal/ui/static"
)

func newSelectCmd() *cobra.Command {
	var (
		clearAll bool
		maxFiles int
	)

	cmd := &cobra.Command{
		Use:     "select [file|query...]",
		Short:   "Toggle files in the comparison selection",
		Aliases: []string{"s"},
		GroupID: GroupCompare,
		Long: `Add files to the selection, or remove them if already selected.

A file can be named by its ID ("<orgID>:classes/Foo.cls"), by org and path
("dev:classes/Foo.cls"), by path or API name within a single org, or by any
fuzzy query over "<org> <path>". Ambiguous queries prompt for a choice on a
terminal and list the candidates otherwise.

The selection holds at most max files (4 by default, 10 at most). Adding a
file to a full selection drops the oldest one.`,
		Example: `  orgcmp select dev:classes/AccountService.cls prod:classes/AccountService.cls
  orgcmp select "prod accsvc"       # Fuzzy query
  orgcmp select --max 3             # Allow a three-way comparison
  orgcmp select --clear             # Start over`,
		Args: func(cmd *cobra.Command, args []string) error {
			if clearAll || cmd.Flags().Changed("max") {
				return nil
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		ValidArgsFunction: completeFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := log.FromContext(ctx)
			out := output.FromContext(ctx)

			a, err := openApp(ctx)
			if err != nil {
				return err
			}

			if clearAll {
				a.sel.Clear()
			}
			if cmd.Flags().Changed("max") {
				if err := a.sel.SetMax(maxFiles); err != nil {
					return err
				}
			}

			idx := a.index(ctx)
			for _, query := range args {
				ref, err := a.resolveFile(idx, query)
				if err != nil {
					return err
				}
				if ref.ID == "" {
					continue // prompt cancelled
				}

				before := a.sel.Files()
				if a.sel.Toggle(ref) {
					l.Printf("Selected %s %s\n", a.orgName(ref.OrgID), ref.Name)
					for _, f := range evicted(before, a.sel.Files(), ref.ID) {
						l.Printf("Dropped %s %s (max %d files)\n", a.orgName(f.OrgID), f.Name, a.sel.Max())
					}
				} else {
					l.Printf("Deselected %s %s\n", a.orgName(ref.OrgID), ref.Name)
				}
			}

			if err := a.save(); err != nil {
				return err
			}

			printSelection(out, a)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearAll, "clear", false, "Deselect all files first")
	cmd.Flags().IntVarP(&maxFiles, "max", "m", selection.DefaultMaxFiles,
		fmt.Sprintf("Maximum number of selected files (%d-%d)", selection.MinFiles, selection.HardMaxFiles))

	return cmd
}

func newSelectionCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "selection",
		Short:   "Show the selected files",
		Aliases: []string{"sel"},
		GroupID: GroupCompare,
		Args:    cobra.NoArgs,
		Example: `  orgcmp selection
  orgcmp selection --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)

			a, err := openApp(ctx)
			if err != nil {
				return err
			}

			if format != output.FormatText {
				return out.Encode(format, struct {
					Max         int            `json:"max" yaml:"max"`
					CompareType string         `json:"compareType,omitempty" yaml:"compareType,omitempty"`
					Files       []tree.FileRef `json:"files" yaml:"files"`
				}{a.sel.Max(), a.sel.CompareType(), a.sel.Files()})
			}

			printSelection(out, a)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", output.FormatText, "Output format: text, json, yaml")
	cmd.RegisterFlagCompletionFunc("format", completeFormats)

	return cmd
}

func printSelection(out *output.Printer, a *app) {
	files := a.sel.Files()
	if len(files) == 0 {
		out.Printf("No files selected (max %d).\n", a.sel.Max())
		return
	}
	out.Print(static.RenderFileList(files, a.orgName))

	summary := fmt.Sprintf("%d of %d selected", len(files), a.sel.Max())
	if a.sel.CanCompare() {
		summary += ", " + a.sel.CompareType() + " comparison"
	}
	out.Println(summary)
}

// resolveFile resolves a query to a single cached file. Ambiguous queries
// prompt on a terminal; a cancelled prompt yields the zero FileRef.
func (a *app) resolveFile(idx *resolve.Index, query string) (tree.FileRef, error) {
	ref, err := idx.Resolve(query)
	if err == nil {
		return ref, nil
	}
	if errors.Is(err, resolve.ErrNoMatch) {
		if idx.Len() == 0 {
			return tree.FileRef{}, fmt.Errorf("%w; nothing is cached yet, run 'orgcmp refresh <org>'", err)
		}
		return tree.FileRef{}, fmt.Errorf("%w (try 'orgcmp find %s')", err, query)
	}

	var amb *resolve.AmbiguousError
	if !errors.As(err, &amb) {
		return tree.FileRef{}, err
	}

	if !interactive() {
		var b strings.Builder
		fmt.Fprintf(&b, "%v; be more specific:", amb)
		for _, f := range amb.Matches {
			b.WriteString("\n  " + f.ID)
		}
		return tree.FileRef{}, errors.New(b.String())
	}

	choices := make([]prompt.Choice, len(amb.Matches))
	for i, f := range amb.Matches {
		choices[i] = prompt.Choice{Title: a.orgName(f.OrgID) + " " + strings.TrimPrefix(f.ID, f.OrgID+":"), Detail: f.ID}
	}
	res, err := prompt.Pick(fmt.Sprintf("%q matches several files", query), choices)
	if err != nil {
		return tree.FileRef{}, err
	}
	if res.Cancelled {
		return tree.FileRef{}, nil
	}
	return amb.Matches[res.Index], nil
}

// evicted returns the files of before that are missing from after, other
// than the toggled one.
func evicted(before, after []tree.FileRef, toggled string) []tree.FileRef {
	kept := make(map[string]bool, len(after))
	for _, f := range after {
		kept[f.ID] = true
	}
	var gone []tree.FileRef
	for _, f := range before {
		if f.ID != toggled && !kept[f.ID] {
			gone = append(gone, f)
		}
	}
	return gone
}

// interactive reports whether prompts can be shown.
func interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stderr.Fd())
}
