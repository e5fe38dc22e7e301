package doctor

import (
	"context"

	"github.com/raphi011/orgcmp/internal/cache"
	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/output"
)

// CLIChecker reports whether the retrieval CLI is usable.
type CLIChecker interface {
	CheckCLI() error
}

// Staging removes the retrieval staging directories of an org.
type Staging interface {
	RemoveOrg(orgID string) error
}

// Options configures a doctor run.
type Options struct {
	Store    *cache.Store
	KnownIDs []string // registered org IDs
	WorkDir  string   // retrieval staging root; empty skips staging checks
	CLI      CLIChecker
	Staging  Staging
}

// Run performs diagnostic checks and, with fix, repairs what it can.
// Progress and results are printed to the context's printer.
func Run(ctx context.Context, opts Options, fix bool) (*Report, error) {
	out := output.FromContext(ctx)
	l := log.FromContext(ctx)

	known := make(map[string]bool, len(opts.KnownIDs))
	for _, id := range opts.KnownIDs {
		known[id] = true
	}

	report := &Report{}

	// Category 1: CLI
	out.Println("Checking retrieval CLI...")
	cliIssues := checkCLI(opts.CLI)
	report.Stats.CLIMissing = len(cliIssues) > 0
	report.Issues = append(report.Issues, cliIssues...)

	// Category 2: Cache integrity
	out.Println("Checking cache integrity...")
	cacheIssues := checkCacheIssues(opts.Store, known)
	report.Issues = append(report.Issues, cacheIssues...)
	report.Stats.CacheIssues = len(cacheIssues)
	for _, id := range opts.Store.ListIDs() {
		if known[id] {
			report.Stats.CacheValid++
		}
	}
	report.Stats.CacheValid -= report.Stats.CacheIssues

	// Category 3: Orphans
	out.Println("Checking for orphaned blobs...")
	orphanIssues, err := checkOrphanIssues(opts.Store)
	if err != nil {
		return nil, err
	}
	report.Issues = append(report.Issues, orphanIssues...)
	report.Stats.Orphans = len(orphanIssues)

	// Category 4: Stale orgs
	out.Println("Checking for unregistered orgs...")
	staleIssues, err := checkStaleIssues(opts.Store, opts.WorkDir, known)
	if err != nil {
		return nil, err
	}
	report.Issues = append(report.Issues, staleIssues...)
	for _, issue := range staleIssues {
		if issue.FixAction == FixRemoveStaging {
			report.Stats.StaleStaging++
		} else {
			report.Stats.StaleEntries++
		}
	}

	printSummary(out, report.Stats)

	if len(report.Issues) == 0 {
		out.Println("\n✓ No issues found")
		return report, nil
	}

	out.Printf("\nFound %d issues:\n", len(report.Issues))
	printIssuesByCategory(out, report.Issues)

	if !fix {
		if fixable(report.Issues) {
			out.Println("\nRun 'orgcmp doctor --fix' to repair.")
		}
		return report, nil
	}

	out.Println("\nFixing issues...")
	report.Fixed, report.Failed = fixAllIssues(ctx, opts, report.Issues)
	l.Debug("doctor fixed issues", "fixed", report.Fixed, "failed", report.Failed)
	return report, nil
}

func fixable(issues []Issue) bool {
	for _, issue := range issues {
		if issue.FixAction != FixNone {
			return true
		}
	}
	return false
}

// printSummary prints a categorized summary.
func printSummary(out *output.Printer, stats IssueStats) {
	out.Println()

	if stats.CLIMissing {
		out.Println("  ✗ retrieval CLI not found")
	} else {
		out.Println("  ✓ retrieval CLI found")
	}

	out.Printf("  ✓ %d cache entries valid\n", stats.CacheValid)
	if stats.CacheIssues > 0 {
		out.Printf("  ⚠ %d cache issues\n", stats.CacheIssues)
	}
	if stats.Orphans > 0 {
		out.Printf("  ⚠ %d orphaned blob sets\n", stats.Orphans)
	}
	if stats.StaleEntries > 0 {
		out.Printf("  ⚠ %d cache entries of unregistered orgs\n", stats.StaleEntries)
	}
	if stats.StaleStaging > 0 {
		out.Printf("  ⚠ %d staging directories of unregistered orgs\n", stats.StaleStaging)
	}
}

// printIssuesByCategory groups and prints issues.
func printIssuesByCategory(out *output.Printer, issues []Issue) {
	byCategory := make(map[IssueCategory][]Issue)
	for _, issue := range issues {
		byCategory[issue.Category] = append(byCategory[issue.Category], issue)
	}

	categoryNames := map[IssueCategory]string{
		CategoryCLI:    "CLI issues",
		CategoryCache:  "Cache issues",
		CategoryOrphan: "Orphan issues",
		CategoryStale:  "Unregistered orgs",
	}

	for _, cat := range []IssueCategory{CategoryCLI, CategoryCache, CategoryOrphan, CategoryStale} {
		catIssues := byCategory[cat]
		if len(catIssues) == 0 {
			continue
		}

		out.Printf("\n%s:\n", categoryNames[cat])
		for _, issue := range catIssues {
			out.Printf("  • %s: %s\n", issue.Key, issue.Description)
		}
	}
}
