// Package sourcetree turns a retrieved source directory into a tree.
package sourcetree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/tree"
)

// TypeFile is the metadata type of files outside any known metadata folder.
const TypeFile = "File"

const metaSuffix = "-meta.xml"

// metadataFolders maps conventional folder names to metadata types.
var metadataFolders = map[string]string{
	"classes":         "ApexClass",
	"triggers":        "ApexTrigger",
	"pages":           "ApexPage",
	"components":      "ApexComponent",
	"lwc":             "LightningComponentBundle",
	"aura":            "AuraDefinitionBundle",
	"objects":         "CustomObject",
	"flows":           "Flow",
	"layouts":         "Layout",
	"permissionsets":  "PermissionSet",
	"profiles":        "Profile",
	"staticresources": "StaticResource",
	"labels":          "CustomLabels",
	"tabs":            "CustomTab",
	"applications":    "CustomApplication",
}

// bundle types keep every file of a component in one folder named after it.
var bundleTypes = map[string]bool{
	"LightningComponentBundle": true,
	"AuraDefinitionBundle":     true,
}

// Options tunes Build.
type Options struct {
	// IncludeMeta keeps "-meta.xml" companion files in the tree.
	IncludeMeta bool
}

// TraversalError is returned when a directory cannot be read.
type TraversalError struct {
	Root string
	Path string
	Err  error
}

func (e *TraversalError) Error() string {
	if e.Path == "" || e.Path == e.Root {
		return fmt.Sprintf("read source tree %s: %v", e.Root, e.Err)
	}
	return fmt.Sprintf("read source tree %s: %s: %v", e.Root, e.Path, e.Err)
}

func (e *TraversalError) Unwrap() error {
	return e.Err
}

// MetadataType returns the metadata type for a conventional folder name.
func MetadataType(folder string) (string, bool) {
	t, ok := metadataFolders[folder]
	return t, ok
}

// Build walks root and returns its contents as a forest owned by orgID.
// Entries at every level are sorted by name (case-insensitive, ties by byte
// order); hidden entries are skipped.
func Build(ctx context.Context, root, orgID string, opts Options) ([]tree.Node, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &TraversalError{Root: root, Err: err}
	}

	b := builder{root: abs, orgID: orgID, opts: opts}
	nodes, err := b.dir(ctx, abs, "", "", "")
	if err != nil {
		return nil, err
	}

	log.FromContext(ctx).Debug("source tree built", "org", orgID, "files", tree.CountFiles(nodes))
	if nodes == nil {
		nodes = []tree.Node{}
	}
	return nodes, nil
}

type builder struct {
	root  string
	orgID string
	opts  Options
}

// dir reads one directory. rel is its slash-separated path below the root,
// mdType the type inherited from the nearest metadata folder and bundle the
// bundle folder name when inside a bundle type.
func (b *builder) dir(ctx context.Context, path, rel, mdType, bundle string) ([]tree.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, &TraversalError{Root: b.root, Path: path, Err: err}
	}

	slices.SortFunc(entries, func(a, c os.DirEntry) int {
		if n := strings.Compare(strings.ToLower(a.Name()), strings.ToLower(c.Name())); n != 0 {
			return n
		}
		return strings.Compare(a.Name(), c.Name())
	})

	var nodes []tree.Node
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}
		childPath := filepath.Join(path, name)

		if e.IsDir() {
			childType, childBundle := mdType, bundle
			if t, ok := metadataFolders[name]; ok && mdType == "" {
				childType = t
			} else if bundleTypes[mdType] && bundle == "" {
				childBundle = name
			}

			children, err := b.dir(ctx, childPath, childRel, childType, childBundle)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, tree.Node{
				ID:       tree.FolderID(b.orgID, childRel),
				Name:     name,
				Kind:     tree.KindFolder,
				Children: children,
			})
			continue
		}

		if !b.opts.IncludeMeta && strings.HasSuffix(name, metaSuffix) {
			continue
		}

		nodes = append(nodes, b.file(childPath, childRel, name, mdType, bundle))
	}

	return nodes, nil
}

func (b *builder) file(path, rel, name, mdType, bundle string) tree.Node {
	if mdType == "" {
		mdType = TypeFile
	}
	fullName := bundle
	if fullName == "" {
		fullName = trimExtensions(name)
	}

	id := tree.FileID(b.orgID, rel)
	return tree.Node{
		ID:   id,
		Name: name,
		Kind: tree.KindFile,
		File: &tree.FileRef{
			ID:           id,
			Name:         name,
			MetadataType: mdType,
			FullName:     fullName,
			OrgID:        b.orgID,
			LocalPath:    path,
		},
	}
}

// trimExtensions strips every extension: "Foo.cls-meta.xml" -> "Foo".
func trimExtensions(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}
