package static

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/raphi011/orgcmp/internal/compare"
	"github.com/raphi011/orgcmp/internal/ui/styles"
)

// CompareOptions controls RenderComparison.
type CompareOptions struct {
	// Labels names each file, e.g. "Dev classes/Foo.cls". Missing labels
	// fall back to the file ID.
	Labels []string

	// ChangedOnly hides unchanged lines.
	ChangedOnly bool
}

var markers = map[compare.Classification]string{
	compare.Unchanged: " ",
	compare.Added:     "+",
	compare.Removed:   "-",
	compare.Modified:  "~",
}

func lineStyle(c compare.Classification) lipgloss.Style {
	switch c {
	case compare.Added:
		return styles.AddedStyle
	case compare.Removed:
		return styles.RemovedStyle
	case compare.Modified:
		return styles.ModifiedStyle
	default:
		return styles.UnchangedStyle
	}
}

// RenderComparison renders every file of r with its classified lines,
// followed by the overall statistics.
func RenderComparison(r *compare.Result, opts CompareOptions) string {
	var b strings.Builder

	for i, f := range r.Files {
		label := f.File.ID
		if i < len(opts.Labels) && opts.Labels[i] != "" {
			label = opts.Labels[i]
		}
		fmt.Fprintf(&b, "%s %s\n",
			styles.Bold.Render(fmt.Sprintf("[%d] %s", i+1, label)),
			styles.MutedStyle.Render(f.Stats.Summary()),
		)

		width := len(fmt.Sprint(len(f.Lines)))
		for _, line := range f.Lines {
			if opts.ChangedOnly && line.Classification == compare.Unchanged {
				continue
			}
			text := fmt.Sprintf("%*d %s %s", width, line.LineNumber, markers[line.Classification], line.Content)
			b.WriteString(lineStyle(line.Classification).Render(strings.TrimRight(text, " ")))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s %s\n", styles.AccentStyle.Render(r.CompareType), r.Stats.Summary())
	return b.String()
}
