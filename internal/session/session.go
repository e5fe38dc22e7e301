// Package session persists what a user was looking at between invocations:
// expanded orgs and folders plus the file selection.
// This lets `orgcmp compare` pick up the files chosen by earlier `select` calls.
package session

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/raphi011/orgcmp/internal/selection"
	"github.com/raphi011/orgcmp/internal/storage"
	"github.com/raphi011/orgcmp/internal/tree"
	"github.com/raphi011/orgcmp/internal/treesync"
)

// Session is the persisted state.
type Session struct {
	Expansion treesync.Expansion `json:"expansion"`
	Selection []tree.FileRef     `json:"selection,omitempty"`
	MaxFiles  int                `json:"max_files,omitempty"`

	path string
}

// DefaultPath returns the path to ~/.orgcmp/session.json
func DefaultPath() (string, error) {
	dir, err := storage.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

// Load reads the session from path.
// A missing or corrupt file yields an empty session.
func Load(path string) (*Session, error) {
	s := &Session{path: path}
	if err := storage.LoadJSON(path, s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return nil, err
		}
		// Corrupted - start fresh
		return &Session{path: path}, nil
	}
	return s, nil
}

// Save writes the session to disk atomically
func (s *Session) Save() error {
	return storage.SaveJSON(s.path, s)
}

// Capture records the state of an engine and a selection.
func (s *Session) Capture(e *treesync.Engine, sel *selection.Manager) {
	s.Expansion = e.Snapshot()
	s.Selection = sel.Files()
	s.MaxFiles = sel.Max()
}

// Apply restores the persisted selection. maxFiles is used when the session
// does not record a bound of its own.
func (s *Session) Apply(maxFiles int) *selection.Manager {
	bound := s.MaxFiles
	if bound == 0 {
		bound = maxFiles
	}
	return selection.Restore(s.Selection, bound)
}

// Prune drops selected files and expansion state of orgs not in known.
func (s *Session) Prune(known func(orgID string) bool) {
	var files []tree.FileRef
	for _, f := range s.Selection {
		if known(f.OrgID) {
			files = append(files, f)
		}
	}
	s.Selection = files

	var orgs []string
	for _, id := range s.Expansion.Orgs {
		if known(id) {
			orgs = append(orgs, id)
		}
	}
	s.Expansion.Orgs = orgs

	for id := range s.Expansion.Folders {
		if !known(id) {
			delete(s.Expansion.Folders, id)
		}
	}
}
