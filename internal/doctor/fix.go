package doctor

import (
	"context"
	"fmt"

	"github.com/raphi011/orgcmp/internal/output"
)

// fixAllIssues applies the fix of every issue that has one.
// It returns the number of fixed and failed issues.
func fixAllIssues(ctx context.Context, opts Options, issues []Issue) (fixed, failed int) {
	out := output.FromContext(ctx)

	for _, issue := range issues {
		var err error
		switch issue.FixAction {
		case FixEvict, FixRemoveBlobs:
			// Remove drops the index entry if present and both blobs.
			err = opts.Store.Remove(ctx, issue.Key)
		case FixRemoveStaging:
			if opts.Staging == nil {
				continue
			}
			err = opts.Staging.RemoveOrg(issue.Key)
		default:
			continue
		}

		if err != nil {
			out.Printf("  ✗ Failed to fix %q: %v\n", issue.Key, err)
			failed++
			continue
		}
		out.Printf("  ✓ %s %q\n", fixedVerb(issue.FixAction), issue.Key)
		fixed++
	}

	return fixed, failed
}

func fixedVerb(a FixAction) string {
	switch a {
	case FixEvict:
		return "Evicted cache entry"
	case FixRemoveBlobs:
		return "Removed orphaned blobs of"
	case FixRemoveStaging:
		return "Removed staging directory of"
	default:
		return fmt.Sprintf("Applied %s to", a)
	}
}
