package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/storage"
	"github.com/raphi011/orgcmp/internal/tree"
)

const (
	indexFileName  = "cache_index.json"
	lockFileName   = "cache_index.lock"
	filesSuffix    = "_files.json"
	metadataSuffix = "_metadata.json"
)

// ErrNotFound is returned when an org has no (readable) cache entry.
var ErrNotFound = errors.New("no cache entry")

// OrgRef identifies the org a cache entry belongs to.
// Keeps the cache package independent of the registry package.
type OrgRef struct {
	ID       string
	Username string
	Alias    string
}

// Metadata describes one cached org.
type Metadata struct {
	OrgID         string    `json:"orgId" yaml:"orgId"`
	Username      string    `json:"username" yaml:"username"`
	Alias         string    `json:"alias,omitempty" yaml:"alias,omitempty"`
	LastRefreshed time.Time `json:"lastRefreshed" yaml:"lastRefreshed"`
	FileCount     int       `json:"fileCount" yaml:"fileCount"`
}

// Index is the durable directory of cached orgs, keyed by org ID.
type Index struct {
	Entries     map[string]Metadata `json:"entries"`
	LastUpdated time.Time           `json:"lastUpdated"`
}

// Stats summarizes the store.
type Stats struct {
	TotalOrgs  int   `json:"totalOrgs" yaml:"totalOrgs"`
	TotalFiles int   `json:"totalFiles" yaml:"totalFiles"`
	TotalBytes int64 `json:"totalBytes" yaml:"totalBytes"`
}

// Store persists per-org trees and metadata under a single directory.
// Blobs of different orgs are independent files; only index updates
// are serialized.
type Store struct {
	dir string
	now func() time.Time

	// mu serializes index read-modify-write cycles within the process.
	mu sync.Mutex
}

// NewStore opens (creating if needed) a store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir returns the cache root directory.
func (s *Store) Dir() string {
	return s.dir
}

// IndexPath returns the path of the index file.
func (s *Store) IndexPath() string {
	return filepath.Join(s.dir, indexFileName)
}

// FilesPath returns the path of an org's tree blob.
func (s *Store) FilesPath(orgID string) string {
	return filepath.Join(s.dir, orgID+filesSuffix)
}

// MetadataPath returns the path of an org's metadata blob.
func (s *Store) MetadataPath(orgID string) string {
	return filepath.Join(s.dir, orgID+metadataSuffix)
}

// ValidateOrgID rejects IDs that cannot be used as a file name prefix.
func ValidateOrgID(orgID string) error {
	if orgID == "" {
		return fmt.Errorf("empty org id")
	}
	if strings.ContainsAny(orgID, `/\:`) || orgID == "." || orgID == ".." {
		return fmt.Errorf("invalid org id %q", orgID)
	}
	return nil
}

// Has reports whether orgID has an index entry backed by a tree blob.
func (s *Store) Has(orgID string) bool {
	if ValidateOrgID(orgID) != nil {
		return false
	}
	idx := s.loadIndex()
	if _, ok := idx.Entries[orgID]; !ok {
		return false
	}
	_, err := os.Stat(s.FilesPath(orgID))
	return err == nil
}

// Read returns the cached tree of orgID.
// Missing or undecodable data evicts the entry and yields ErrNotFound.
func (s *Store) Read(ctx context.Context, orgID string) ([]tree.Node, error) {
	idx := s.loadIndex()
	if _, ok := idx.Entries[orgID]; !ok {
		return nil, ErrNotFound
	}
	if err := ValidateOrgID(orgID); err != nil {
		s.heal(ctx, orgID, err)
		return nil, ErrNotFound
	}

	var nodes []tree.Node
	if err := storage.LoadJSON(s.FilesPath(orgID), &nodes); err != nil {
		if isCorruption(err) {
			s.heal(ctx, orgID, err)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read cache for %s: %w", orgID, err)
	}

	return nodes, nil
}

// ReadMetadata returns the metadata blob of orgID.
// Missing or undecodable data evicts the entry and yields ErrNotFound.
func (s *Store) ReadMetadata(ctx context.Context, orgID string) (*Metadata, error) {
	idx := s.loadIndex()
	if _, ok := idx.Entries[orgID]; !ok {
		return nil, ErrNotFound
	}
	if err := ValidateOrgID(orgID); err != nil {
		s.heal(ctx, orgID, err)
		return nil, ErrNotFound
	}

	var meta Metadata
	if err := storage.LoadJSON(s.MetadataPath(orgID), &meta); err != nil {
		if isCorruption(err) {
			s.heal(ctx, orgID, err)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read cache metadata for %s: %w", orgID, err)
	}

	return &meta, nil
}

// Write replaces the cache entry of org with nodes.
// The tree blob and metadata are written before the index references them.
func (s *Store) Write(ctx context.Context, org OrgRef, nodes []tree.Node) (Metadata, error) {
	if err := ValidateOrgID(org.ID); err != nil {
		return Metadata{}, err
	}
	if nodes == nil {
		nodes = []tree.Node{}
	}

	if err := storage.SaveJSON(s.FilesPath(org.ID), nodes); err != nil {
		return Metadata{}, fmt.Errorf("write cache files for %s: %w", org.ID, err)
	}

	meta := Metadata{
		OrgID:         org.ID,
		Username:      org.Username,
		Alias:         org.Alias,
		LastRefreshed: s.now().UTC(),
		FileCount:     tree.CountFiles(nodes),
	}
	if err := storage.SaveJSON(s.MetadataPath(org.ID), meta); err != nil {
		return Metadata{}, fmt.Errorf("write cache metadata for %s: %w", org.ID, err)
	}

	err := s.updateIndex(ctx, func(idx *Index) bool {
		idx.Entries[org.ID] = meta
		return true
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("update cache index: %w", err)
	}

	log.FromContext(ctx).Debug("cache written", "org", org.ID, "files", meta.FileCount)
	return meta, nil
}

// Remove deletes the cache entry of orgID. Removing a missing entry is not an error.
// The index entry goes first so a failure never leaves the index pointing
// at deleted blobs. An index key that is not a valid org ID (a hand-edited
// index) is dropped from the index only; no file path is built from it.
func (s *Store) Remove(ctx context.Context, orgID string) error {
	invalid := ValidateOrgID(orgID)

	err := s.updateIndex(ctx, func(idx *Index) bool {
		if _, ok := idx.Entries[orgID]; !ok {
			return false
		}
		delete(idx.Entries, orgID)
		return true
	})
	if err != nil {
		return fmt.Errorf("update cache index: %w", err)
	}
	if invalid != nil {
		log.FromContext(ctx).Debug("dropped invalid cache index key", "key", orgID)
		return nil
	}

	if err := storage.RemoveFile(s.FilesPath(orgID)); err != nil {
		return fmt.Errorf("remove cache files for %s: %w", orgID, err)
	}
	if err := storage.RemoveFile(s.MetadataPath(orgID)); err != nil {
		return fmt.Errorf("remove cache metadata for %s: %w", orgID, err)
	}

	log.FromContext(ctx).Debug("cache entry removed", "org", orgID)
	return nil
}

// ListIDs returns the sorted IDs of all indexed orgs.
func (s *Store) ListIDs() []string {
	idx := s.loadIndex()
	ids := make([]string, 0, len(idx.Entries))
	for id := range idx.Entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Entries returns a copy of the index entries.
func (s *Store) Entries() map[string]Metadata {
	return s.loadIndex().Entries
}

// Stats summarizes the indexed entries and their on-disk size.
func (s *Store) Stats() Stats {
	idx := s.loadIndex()

	stats := Stats{TotalOrgs: len(idx.Entries)}
	for id, meta := range idx.Entries {
		stats.TotalFiles += meta.FileCount
		if ValidateOrgID(id) != nil {
			continue
		}
		stats.TotalBytes += storage.FileSize(s.FilesPath(id))
		stats.TotalBytes += storage.FileSize(s.MetadataPath(id))
	}
	stats.TotalBytes += storage.FileSize(s.IndexPath())

	return stats
}

// Orphans returns org IDs that have blob files but no index entry,
// which happens when a write is interrupted before the index update.
func (s *Store) Orphans() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}

	idx := s.loadIndex()
	seen := make(map[string]bool)
	var orphans []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		var id string
		switch {
		case strings.HasSuffix(name, filesSuffix):
			id = strings.TrimSuffix(name, filesSuffix)
		case strings.HasSuffix(name, metadataSuffix):
			id = strings.TrimSuffix(name, metadataSuffix)
		default:
			continue
		}
		if _, ok := idx.Entries[id]; ok || seen[id] {
			continue
		}
		seen[id] = true
		orphans = append(orphans, id)
	}

	slices.Sort(orphans)
	return orphans, nil
}

// Clear removes every indexed entry and every orphaned blob.
func (s *Store) Clear(ctx context.Context) error {
	orphans, err := s.Orphans()
	if err != nil {
		return err
	}
	for _, id := range append(s.ListIDs(), orphans...) {
		if err := s.Remove(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// heal evicts a corrupt entry. Failures are logged, not returned:
// the caller already treats the entry as a miss.
func (s *Store) heal(ctx context.Context, orgID string, cause error) {
	l := log.FromContext(ctx)
	l.Debug("evicting corrupt cache entry", "org", orgID, "err", cause)
	if err := s.Remove(ctx, orgID); err != nil {
		l.Debug("evicting corrupt cache entry failed", "org", orgID, "err", err)
	}
}

// loadIndex reads the index. A missing or corrupt index is an empty index.
func (s *Store) loadIndex() *Index {
	var idx Index
	if err := storage.LoadJSON(s.IndexPath(), &idx); err != nil {
		// Corrupted or missing - start fresh
		idx = Index{}
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]Metadata)
	}
	return &idx
}

// updateIndex runs fn on the current index under both the in-process mutex
// and the cross-process file lock, saving the result if fn reports a change.
func (s *Store) updateIndex(ctx context.Context, fn func(idx *Index) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := acquireIndexLock(ctx, filepath.Join(s.dir, lockFileName))
	if err != nil {
		return err
	}
	defer func() { _ = lock.release() }()

	idx := s.loadIndex()
	if !fn(idx) {
		return nil
	}
	idx.LastUpdated = s.now().UTC()
	return storage.SaveJSON(s.IndexPath(), idx)
}

// isCorruption reports whether err means the blob is missing or undecodable,
// as opposed to an I/O failure like a permission error.
func isCorruption(err error) bool {
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
