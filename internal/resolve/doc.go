// Package resolve turns user-supplied file references into cached files.
//
// Commands like "orgcmp select" and "orgcmp find" accept several forms:
//
//   - a full file ID: 00D5g000004ABCD:classes/Foo.cls
//   - an org-qualified path or name, where the org is given by ID, alias
//     or username: Dev:classes/Foo.cls, Dev:Foo.cls
//   - a relative path or file name matching across all orgs: Foo.cls
//   - a fuzzy query over "<org> <path>": dev foo
//
// Only files of cached orgs are candidates; resolution never retrieves.
// A query matching several files with equal standing is reported as an
// *AmbiguousError so the caller can list or prompt for the candidates.
package resolve
