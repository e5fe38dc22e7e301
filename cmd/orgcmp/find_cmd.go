package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphi011/orgcmp/internal/output"
	"github.com/raphi011/orgcmp/internal/resolve"
	"github.com/raphi011/orgcmp/internal/tree"
	"github.com/raphi011/orgcmp/internal/ui/styles"
)

type findResult struct {
	Org   string       `json:"org" yaml:"org"`
	File  tree.FileRef `json:"file" yaml:"file"`
	Score int          `json:"score" yaml:"score"`
}

func newFindCmd() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:     "find <query>",
		Short:   "Fuzzy search cached files",
		Aliases: []string{"f"},
		GroupID: GroupCompare,
		Args:    cobra.MinimumNArgs(1),
		Long: `Fuzzy search the cached files of all orgs.

The query is matched against "<org> <path>", so "prod accsvc" finds
prod's AccountService.cls. Only cached files are searched; nothing is
retrieved. Pass a result's ID to 'orgcmp select'.`,
		Example: `  orgcmp find AccountService
  orgcmp find "dev trigger" --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)

			a, err := openApp(ctx)
			if err != nil {
				return err
			}

			idx := a.index(ctx)
			matches := idx.Search(strings.Join(args, " "), limit)

			if format != output.FormatText {
				results := make([]findResult, len(matches))
				for i, m := range matches {
					results[i] = findResult{Org: a.orgName(m.File.OrgID), File: m.File, Score: m.Score}
				}
				return out.Encode(format, results)
			}

			if idx.Len() == 0 {
				out.Println("Nothing cached yet. Run 'orgcmp refresh <org>' first.")
				return nil
			}
			if len(matches) == 0 {
				out.Println("No matches.")
				return nil
			}
			for _, m := range matches {
				marker := " "
				if a.isSelected(m.File.ID) {
					marker = styles.CurrentSymbols().Selected
				}
				out.Printf("%s %s  %s\n", marker, highlight(m), styles.MutedStyle.Render(m.File.ID))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results (0 for all)")
	cmd.Flags().StringVarP(&format, "format", "f", output.FormatText, "Output format: text, json, yaml")
	cmd.RegisterFlagCompletionFunc("format", completeFormats)

	return cmd
}

// highlight renders the matched text with the matched characters emphasized.
func highlight(m resolve.Match) string {
	matched := make(map[int]bool, len(m.MatchedIndexes))
	for _, i := range m.MatchedIndexes {
		matched[i] = true
	}

	var b strings.Builder
	for i, r := range m.Text {
		s := string(r)
		if matched[i] {
			s = styles.HighlightStyle.Render(s)
		}
		b.WriteString(s)
	}
	return b.String()
}
