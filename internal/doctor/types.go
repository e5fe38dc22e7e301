package doctor

// IssueCategory groups issues by type.
type IssueCategory string

const (
	// CategoryCLI represents problems with the retrieval CLI.
	CategoryCLI IssueCategory = "cli"
	// CategoryCache represents problems with cache data.
	CategoryCache IssueCategory = "cache"
	// CategoryOrphan represents blob files without an index entry.
	CategoryOrphan IssueCategory = "orphan"
	// CategoryStale represents data of orgs that are no longer registered.
	CategoryStale IssueCategory = "stale"
)

// FixAction names what --fix does for an issue.
type FixAction string

const (
	FixNone          FixAction = ""
	FixEvict         FixAction = "evict"          // drop the cache entry and its blobs
	FixRemoveBlobs   FixAction = "remove_blobs"   // delete orphaned blob files
	FixRemoveStaging FixAction = "remove_staging" // delete an org's staging directories
)

// Issue represents a problem detected by doctor.
type Issue struct {
	Key         string        `json:"key" yaml:"key"` // org ID, or "cli"
	Description string        `json:"description" yaml:"description"`
	FixAction   FixAction     `json:"fixAction,omitempty" yaml:"fixAction,omitempty"`
	Category    IssueCategory `json:"category" yaml:"category"`
}

// IssueStats tracks counts by category.
type IssueStats struct {
	CacheValid   int  `json:"cacheValid" yaml:"cacheValid"`
	CacheIssues  int  `json:"cacheIssues" yaml:"cacheIssues"`
	Orphans      int  `json:"orphans" yaml:"orphans"`
	StaleEntries int  `json:"staleEntries" yaml:"staleEntries"` // cache entries of unregistered orgs
	StaleStaging int  `json:"staleStaging" yaml:"staleStaging"` // staging dirs of unregistered orgs
	CLIMissing   bool `json:"cliMissing" yaml:"cliMissing"`
}

// Report is the outcome of a doctor run.
type Report struct {
	Issues []Issue    `json:"issues" yaml:"issues"`
	Stats  IssueStats `json:"stats" yaml:"stats"`
	Fixed  int        `json:"fixed" yaml:"fixed"`
	Failed int        `json:"failed" yaml:"failed"`
}
