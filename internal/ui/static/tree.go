package static

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	ltree "charm.land/lipgloss/v2/tree"

	"github.com/raphi011/orgcmp/internal/tree"
	"github.com/raphi011/orgcmp/internal/ui/styles"
)

// OrgTree is one org as shown by the tree view.
type OrgTree struct {
	ID        string
	Name      string
	State     string // expansion state, e.g. "cached" or "live"
	Expanded  bool
	Refreshed time.Time
	Nodes     []tree.Node
	Folders   map[string]bool // expanded folder IDs
}

// TreeOptions controls RenderTree.
type TreeOptions struct {
	AllFolders bool                 // ignore folder state and show everything
	ShowIDs    bool                 // append file IDs for use with "select"
	Selected   func(id string) bool // marks selected files
	Now        time.Time
}

// RenderTree renders orgs as a forest. Collapsed orgs show only their
// header line; collapsed folders show their file count instead of children.
func RenderTree(orgs []OrgTree, opts TreeOptions) string {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var b strings.Builder
	for _, o := range orgs {
		t := ltree.Root(orgLabel(o, opts)).
			Enumerator(ltree.RoundedEnumerator).
			EnumeratorStyle(styles.MutedStyle)
		if o.Expanded {
			addNodes(t, o.Nodes, o, opts)
		}
		b.WriteString(t.String())
		b.WriteString("\n")
	}
	return b.String()
}

func orgLabel(o OrgTree, opts TreeOptions) string {
	sym := styles.CurrentSymbols()
	name := o.Name
	if name == "" {
		name = o.ID
	}

	label := styles.PrimaryStyle.Bold(true).Render(sym.Org + " " + name)
	if !o.Expanded {
		return label + " " + styles.MutedStyle.Render("(collapsed)")
	}

	var marker string
	switch o.State {
	case "live":
		marker = styles.SuccessStyle.Render(sym.Live)
	case "placeholder":
		marker = styles.MutedStyle.Render(sym.Placeholder)
	default:
		marker = styles.InfoStyle.Render(sym.Cached)
	}
	detail := fmt.Sprintf("%s, refreshed %s", o.State, FormatAge(o.Refreshed, opts.Now))
	return fmt.Sprintf("%s %s %s", label, marker, styles.MutedStyle.Render(detail))
}

func addNodes(t *ltree.Tree, nodes []tree.Node, o OrgTree, opts TreeOptions) {
	sym := styles.CurrentSymbols()

	for _, n := range nodes {
		switch n.Kind {
		case tree.KindPlaceholder:
			t.Child(styles.MutedStyle.Render(sym.Placeholder + " " + n.Name))

		case tree.KindFolder, tree.KindOrg:
			open := opts.AllFolders || o.Folders[n.ID]
			label := sym.Folder + " " + n.Name
			if !open {
				label += " " + styles.MutedStyle.Render(fmt.Sprintf("(%d files)", tree.CountFiles(n.Children)))
				t.Child(label)
				continue
			}
			sub := ltree.Root(label).
				Enumerator(ltree.RoundedEnumerator).
				EnumeratorStyle(styles.MutedStyle)
			addNodes(sub, n.Children, o, opts)
			t.Child(sub)

		default:
			t.Child(fileLabel(n, opts))
		}
	}
}

func fileLabel(n tree.Node, opts TreeOptions) string {
	sym := styles.CurrentSymbols()

	label := sym.File + " " + n.Name
	style := styles.NormalStyle
	if opts.Selected != nil && opts.Selected(n.ID) {
		label = sym.Selected + " " + n.Name
		style = styles.AccentStyle
	}
	label = style.Render(label)

	var extra []string
	if n.File != nil && n.File.MetadataType != "" {
		extra = append(extra, n.File.MetadataType)
	}
	if opts.ShowIDs {
		extra = append(extra, n.ID)
	}
	if len(extra) > 0 {
		label += "  " + styles.MutedStyle.Render(strings.Join(extra, "  "))
	}
	return label
}

// RenderFileList renders file refs one per line with an index, as used by
// the selection listing and fuzzy search results.
func RenderFileList(files []tree.FileRef, orgName func(id string) string) string {
	if len(files) == 0 {
		return ""
	}

	var b strings.Builder
	width := len(fmt.Sprint(len(files)))
	for i, f := range files {
		org := f.OrgID
		if orgName != nil {
			org = orgName(f.OrgID)
		}
		fmt.Fprintf(&b, "%*d  %s %s  %s\n",
			width, i+1,
			styles.PrimaryStyle.Render(org),
			lipgloss.NewStyle().Bold(true).Render(f.Name),
			styles.MutedStyle.Render(f.ID),
		)
	}
	return b.String()
}
