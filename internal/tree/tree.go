// Package tree defines the hierarchical view of an organization's retrieved source.
//
// Trees are plain values: a traversal of a retrieved directory produces a fresh
// forest of [Node] values, each folder owning its children in sorted order.
// There are no parent pointers; callers that need ancestry use [Walk] or
// [PathTo], which accumulate the path while descending.
package tree

import (
	"errors"
	"strings"
)

// Kind discriminates tree nodes.
type Kind string

const (
	KindOrg         Kind = "org"
	KindFolder      Kind = "folder"
	KindFile        Kind = "file"
	KindPlaceholder Kind = "placeholder"
)

// PlaceholderText is shown for an organization without cached files.
const PlaceholderText = "No files cached. Refresh to load."

// SkipChildren can be returned from a WalkFunc to skip a folder's children.
var SkipChildren = errors.New("skip children")

// FileRef identifies a single artifact of an organization.
type FileRef struct {
	ID           string `json:"id"`                  // "<orgID>:<relative/path>"
	Name         string `json:"name"`                // display name (file name)
	MetadataType string `json:"metadataType"`        // e.g. ApexClass
	FullName     string `json:"fullName"`            // fully-qualified API name
	OrgID        string `json:"orgId"`               // owning organization
	LocalPath    string `json:"localPath,omitempty"` // absolute path of the retrieved copy
}

// Node is a single entry of a tree.
type Node struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	File     *FileRef `json:"file,omitempty"`
	Children []Node   `json:"children,omitempty"`
}

// IsFolder reports whether n can have children.
func (n Node) IsFolder() bool {
	return n.Kind == KindFolder || n.Kind == KindOrg
}

// FileID builds the ID of a file from its org and slash-separated relative path.
func FileID(orgID, relPath string) string {
	return orgID + ":" + relPath
}

// FolderID builds the ID of a folder from its org and slash-separated relative path.
func FolderID(orgID, relPath string) string {
	return orgID + ":" + strings.TrimSuffix(relPath, "/") + "/"
}

// OrgOf returns the organization ID encoded in a file or folder ID.
func OrgOf(id string) string {
	orgID, _, ok := strings.Cut(id, ":")
	if !ok {
		return ""
	}
	return orgID
}

// Placeholder returns the synthetic node shown for an org with nothing cached.
func Placeholder(orgID string) Node {
	return Node{
		ID:   orgID + ":placeholder",
		Name: PlaceholderText,
		Kind: KindPlaceholder,
	}
}

// IsPlaceholder reports whether nodes is exactly the placeholder forest.
func IsPlaceholder(nodes []Node) bool {
	return len(nodes) == 1 && nodes[0].Kind == KindPlaceholder
}

// WalkFunc is called for every node in depth-first order.
// path holds the names of the node's ancestors, outermost first.
type WalkFunc func(path []string, n Node) error

// Walk visits nodes depth-first in their stored order.
// Returning SkipChildren from fn skips the children of a folder;
// any other error stops the walk and is returned.
func Walk(nodes []Node, fn WalkFunc) error {
	err := walk(nil, nodes, fn)
	if errors.Is(err, SkipChildren) {
		return nil
	}
	return err
}

func walk(path []string, nodes []Node, fn WalkFunc) error {
	for _, n := range nodes {
		err := fn(path, n)
		if errors.Is(err, SkipChildren) {
			continue
		}
		if err != nil {
			return err
		}
		if len(n.Children) > 0 {
			// Full slice expression so siblings never share a backing array.
			if err := walk(append(path[:len(path):len(path)], n.Name), n.Children, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// CountFiles returns the number of file nodes in the forest.
func CountFiles(nodes []Node) int {
	count := 0
	for _, n := range nodes {
		if n.Kind == KindFile {
			count++
		}
		count += CountFiles(n.Children)
	}
	return count
}

// Files returns every file reference in depth-first order.
func Files(nodes []Node) []FileRef {
	var files []FileRef
	_ = Walk(nodes, func(_ []string, n Node) error {
		if n.Kind == KindFile && n.File != nil {
			files = append(files, *n.File)
		}
		return nil
	})
	return files
}

// Find returns the node with the given ID.
func Find(nodes []Node, id string) (Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
		if found, ok := Find(n.Children, id); ok {
			return found, true
		}
	}
	return Node{}, false
}

// FindFile returns the file reference with the given ID.
func FindFile(nodes []Node, id string) (FileRef, bool) {
	n, ok := Find(nodes, id)
	if !ok || n.File == nil {
		return FileRef{}, false
	}
	return *n.File, true
}

// PathTo returns the names of the ancestors of the node with the given ID.
func PathTo(nodes []Node, id string) ([]string, bool) {
	var result []string
	found := false
	errFound := errors.New("found")
	_ = Walk(nodes, func(path []string, n Node) error {
		if n.ID == id {
			result = append([]string(nil), path...)
			found = true
			return errFound
		}
		return nil
	})
	return result, found
}

// Equal reports whether two forests have the same structure and content.
func Equal(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Name != b[i].Name || a[i].Kind != b[i].Kind {
			return false
		}
		if (a[i].File == nil) != (b[i].File == nil) {
			return false
		}
		if a[i].File != nil && *a[i].File != *b[i].File {
			return false
		}
		if !Equal(a[i].Children, b[i].Children) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the forest.
func Clone(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n
		if n.File != nil {
			f := *n.File
			out[i].File = &f
		}
		out[i].Children = Clone(n.Children)
	}
	return out
}
