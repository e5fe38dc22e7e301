package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/raphi011/orgcmp/internal/registry"
	"github.com/raphi011/orgcmp/internal/tree"
)

// ErrNoMatch is returned when no cached file matches a query.
var ErrNoMatch = errors.New("no cached file matches")

// AmbiguousError is returned when a query matches several files equally well.
type AmbiguousError struct {
	Query   string
	Matches []tree.FileRef
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%q matches %d files", e.Query, len(e.Matches))
}

// Match is a fuzzy search hit.
type Match struct {
	File tree.FileRef
	// Text is the string the query was matched against and
	// MatchedIndexes the byte offsets of the matched characters in it.
	Text           string
	MatchedIndexes []int
	Score          int
}

// Index holds the cached files of a set of orgs.
type Index struct {
	orgs  []registry.Org
	files []tree.FileRef
	text  []string // "<org name> <relative path>" per file
}

// NewIndex collects the files of orgs. get returns an org's cached tree;
// orgs without a cache entry contribute nothing.
func NewIndex(orgs []registry.Org, get func(orgID string) ([]tree.Node, bool)) *Index {
	x := &Index{orgs: orgs}
	for _, org := range orgs {
		nodes, ok := get(org.ID)
		if !ok {
			continue
		}
		for _, f := range tree.Files(nodes) {
			x.files = append(x.files, f)
			x.text = append(x.text, org.DisplayName()+" "+relPath(f.ID))
		}
	}
	return x
}

// Len returns the number of indexed files.
func (x *Index) Len() int {
	return len(x.files)
}

// Files returns all indexed files.
func (x *Index) Files() []tree.FileRef {
	return append([]tree.FileRef(nil), x.files...)
}

// Lookup returns the file with the given ID.
func (x *Index) Lookup(id string) (tree.FileRef, bool) {
	for _, f := range x.files {
		if f.ID == id {
			return f, true
		}
	}
	return tree.FileRef{}, false
}

// Resolve returns the single file query refers to.
// It tries, in order: exact ID, org-qualified path or name, path or name
// across all orgs, and finally fuzzy matching.
func (x *Index) Resolve(query string) (tree.FileRef, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return tree.FileRef{}, fmt.Errorf("%w: empty query", ErrNoMatch)
	}

	if f, ok := x.Lookup(query); ok {
		return f, nil
	}

	candidates := x.all()
	rest := query
	if orgRef, after, ok := strings.Cut(query, ":"); ok {
		if org, found := x.findOrg(orgRef); found {
			candidates = x.filesOf(org.ID)
			rest = after
		}
	}

	if exact := x.matchPathOrName(candidates, rest); len(exact) > 0 {
		return single(query, exact)
	}

	matches := x.search(candidates, rest)
	if len(matches) == 0 {
		return tree.FileRef{}, fmt.Errorf("%w %q", ErrNoMatch, query)
	}
	if len(matches) == 1 || matches[0].Score > matches[1].Score {
		return matches[0].File, nil
	}

	var tied []tree.FileRef
	for _, m := range matches {
		if m.Score != matches[0].Score {
			break
		}
		tied = append(tied, m.File)
	}
	return tree.FileRef{}, &AmbiguousError{Query: query, Matches: tied}
}

// Search returns up to limit fuzzy matches for query, best first.
// limit <= 0 returns all matches.
func (x *Index) Search(query string, limit int) []Match {
	matches := x.search(x.all(), query)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// search fuzzy-matches query against the files at positions idx.
func (x *Index) search(idx []int, query string) []Match {
	text := make(textSource, len(idx))
	for i, pos := range idx {
		text[i] = x.text[pos]
	}

	found := fuzzy.FindFrom(query, text)
	matches := make([]Match, len(found))
	for i, m := range found {
		matches[i] = Match{
			File:           x.files[idx[m.Index]],
			Text:           m.Str,
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return matches
}

func (x *Index) all() []int {
	idx := make([]int, len(x.files))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func (x *Index) findOrg(ref string) (registry.Org, bool) {
	for _, o := range x.orgs {
		if o.ID == ref || strings.EqualFold(o.Alias, ref) || strings.EqualFold(o.Username, ref) {
			return o, true
		}
	}
	return registry.Org{}, false
}

func (x *Index) filesOf(orgID string) []int {
	var idx []int
	for i, f := range x.files {
		if f.OrgID == orgID {
			idx = append(idx, i)
		}
	}
	return idx
}

// matchPathOrName returns the files at idx whose relative path equals
// query, or, failing that, whose file name or API name equals query.
// Comparison is case-insensitive.
func (x *Index) matchPathOrName(idx []int, query string) []tree.FileRef {
	var byPath, byName []tree.FileRef
	for _, i := range idx {
		f := x.files[i]
		switch {
		case strings.EqualFold(relPath(f.ID), query):
			byPath = append(byPath, f)
		case strings.EqualFold(f.Name, query), strings.EqualFold(f.FullName, query):
			byName = append(byName, f)
		}
	}
	if len(byPath) > 0 {
		return byPath
	}
	return byName
}

// textSource implements fuzzy.Source.
type textSource []string

func (s textSource) String(i int) string { return s[i] }
func (s textSource) Len() int            { return len(s) }

func single(query string, files []tree.FileRef) (tree.FileRef, error) {
	if len(files) == 1 {
		return files[0], nil
	}
	return tree.FileRef{}, &AmbiguousError{Query: query, Matches: files}
}

func relPath(id string) string {
	_, rel, ok := strings.Cut(id, ":")
	if !ok {
		return id
	}
	return rel
}
