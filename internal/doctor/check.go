package doctor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/raphi011/orgcmp/internal/cache"
	"github.com/raphi011/orgcmp/internal/storage"
	"github.com/raphi011/orgcmp/internal/tree"
)

// checkCLI reports a missing retrieval CLI.
func checkCLI(c CLIChecker) []Issue {
	if c == nil {
		return nil
	}
	if err := c.CheckCLI(); err != nil {
		return []Issue{{
			Key:         "cli",
			Description: err.Error(),
			Category:    CategoryCLI,
		}}
	}
	return nil
}

// checkCacheIssues inspects every index entry of an org in known. Entries
// of unknown orgs are reported by checkStaleIssues instead.
func checkCacheIssues(s *cache.Store, known map[string]bool) []Issue {
	var issues []Issue
	entries := s.Entries()

	for _, id := range s.ListIDs() {
		if !known[id] {
			continue
		}
		if desc := inspectEntry(s, id, entries[id]); desc != "" {
			issues = append(issues, Issue{
				Key:         id,
				Description: desc,
				FixAction:   FixEvict,
				Category:    CategoryCache,
			})
		}
	}
	return issues
}

// inspectEntry returns a description of what is wrong with an entry,
// or "" if it is healthy. Blobs are read directly: going through the
// store would heal the entry before it could be reported.
func inspectEntry(s *cache.Store, id string, meta cache.Metadata) string {
	if err := cache.ValidateOrgID(id); err != nil {
		return err.Error()
	}

	var nodes []tree.Node
	if err := storage.LoadJSON(s.FilesPath(id), &nodes); err != nil {
		return blobProblem("tree", err)
	}

	var stored cache.Metadata
	if err := storage.LoadJSON(s.MetadataPath(id), &stored); err != nil {
		return blobProblem("metadata", err)
	}

	if n := tree.CountFiles(nodes); n != meta.FileCount {
		return fmt.Sprintf("index lists %d files, tree blob has %d", meta.FileCount, n)
	}
	return ""
}

func blobProblem(kind string, err error) string {
	if errors.Is(err, fs.ErrNotExist) {
		return kind + " blob missing"
	}
	return fmt.Sprintf("%s blob unreadable: %v", kind, err)
}

// checkOrphanIssues reports blob files that no index entry refers to.
func checkOrphanIssues(s *cache.Store) ([]Issue, error) {
	orphans, err := s.Orphans()
	if err != nil {
		return nil, err
	}

	issues := make([]Issue, 0, len(orphans))
	for _, id := range orphans {
		issues = append(issues, Issue{
			Key:         id,
			Description: "blob files without index entry",
			FixAction:   FixRemoveBlobs,
			Category:    CategoryOrphan,
		})
	}
	return issues, nil
}

// checkStaleIssues reports cache entries and staging directories of orgs
// that are not in known.
func checkStaleIssues(s *cache.Store, workDir string, known map[string]bool) ([]Issue, error) {
	var issues []Issue

	for _, id := range s.ListIDs() {
		if known[id] {
			continue
		}
		issues = append(issues, Issue{
			Key:         id,
			Description: "cached org is not registered",
			FixAction:   FixEvict,
			Category:    CategoryStale,
		})
	}

	if workDir == "" {
		return issues, nil
	}
	entries, err := os.ReadDir(workDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return issues, nil
		}
		return nil, fmt.Errorf("read work dir: %w", err)
	}

	var staged []string
	for _, e := range entries {
		if e.IsDir() && !known[e.Name()] {
			staged = append(staged, e.Name())
		}
	}
	slices.Sort(staged)
	for _, id := range staged {
		issues = append(issues, Issue{
			Key:         id,
			Description: "staging directory of an unregistered org",
			FixAction:   FixRemoveStaging,
			Category:    CategoryStale,
		})
	}

	return issues, nil
}
