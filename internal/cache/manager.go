package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/tree"
)

// Manager mirrors a Store in memory.
//
// Its lock only guards the maps and is never held during disk I/O, so a slow
// write for one org does not stall reads of another.
type Manager struct {
	store *Store

	mu        sync.RWMutex
	trees     map[string][]tree.Node
	refreshed map[string]time.Time
	// gen counts Put and Invalidate calls per org, so a store read that
	// raced one of them is not installed over the newer state.
	gen map[string]uint64
}

// NewManager creates a manager backed by store. Call Init before use.
func NewManager(store *Store) *Manager {
	return &Manager{
		store:     store,
		trees:     make(map[string][]tree.Node),
		refreshed: make(map[string]time.Time),
		gen:       make(map[string]uint64),
	}
}

// Store returns the backing store.
func (m *Manager) Store() *Store {
	return m.store
}

// Init evicts entries of orgs not in knownIDs and then eagerly loads every
// remaining entry into memory, so the first expansion needs no disk read.
func (m *Manager) Init(ctx context.Context, knownIDs []string) error {
	if _, err := m.CleanupStale(ctx, knownIDs); err != nil {
		return err
	}

	l := log.FromContext(ctx)
	entries := m.store.Entries()

	for _, id := range m.store.ListIDs() {
		nodes, err := m.store.Read(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // self-healed
			}
			l.Debug("loading cache entry failed", "org", id, "err", err)
			continue
		}

		m.mu.Lock()
		m.trees[id] = nodes
		m.refreshed[id] = entries[id].LastRefreshed
		m.mu.Unlock()
	}

	l.Debug("cache loaded", "orgs", len(m.IDs()))
	return nil
}

// CleanupStale removes every cached org that is not in knownIDs from
// the store and from memory. It returns the evicted IDs; a second call
// with the same knownIDs evicts nothing.
func (m *Manager) CleanupStale(ctx context.Context, knownIDs []string) ([]string, error) {
	known := make(map[string]bool, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = true
	}

	stale := make(map[string]bool)
	for _, id := range m.store.ListIDs() {
		if !known[id] {
			stale[id] = true
		}
	}
	m.mu.RLock()
	for id := range m.trees {
		if !known[id] {
			stale[id] = true
		}
	}
	m.mu.RUnlock()

	var evicted []string
	for id := range stale {
		if err := m.Invalidate(ctx, id); err != nil {
			return evicted, fmt.Errorf("evict stale cache entry %s: %w", id, err)
		}
		evicted = append(evicted, id)
	}
	slices.Sort(evicted)

	if len(evicted) > 0 {
		log.FromContext(ctx).Debug("evicted stale cache entries", "orgs", evicted)
	}
	return evicted, nil
}

// Get returns a copy of the cached tree of orgID.
// A memory miss falls back to the store (another process may have
// refreshed the org since Init).
func (m *Manager) Get(ctx context.Context, orgID string) ([]tree.Node, bool) {
	m.mu.RLock()
	nodes, ok := m.trees[orgID]
	gen := m.gen[orgID]
	m.mu.RUnlock()
	if ok {
		return tree.Clone(nodes), true
	}

	nodes, err := m.store.Read(ctx, orgID)
	if err != nil {
		return nil, false
	}
	var refreshed time.Time
	if meta, ok := m.store.Entries()[orgID]; ok {
		refreshed = meta.LastRefreshed
	}

	return m.install(orgID, gen, nodes, refreshed)
}

// install stores a tree loaded from disk unless orgID was put or
// invalidated since gen was read. It returns what Get should report.
func (m *Manager) install(orgID string, gen uint64, nodes []tree.Node, refreshed time.Time) ([]tree.Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen[orgID] != gen {
		current, ok := m.trees[orgID]
		return tree.Clone(current), ok
	}
	if current, ok := m.trees[orgID]; ok {
		return tree.Clone(current), true
	}
	m.trees[orgID] = nodes
	m.refreshed[orgID] = refreshed
	return tree.Clone(nodes), true
}

// Put writes nodes through to the store and then swaps the in-memory entry.
// Readers see either the previous entry or the new one, never a mix; if the
// store write fails the previous entry stays in place.
func (m *Manager) Put(ctx context.Context, org OrgRef, nodes []tree.Node) (Metadata, error) {
	meta, err := m.store.Write(ctx, org, nodes)
	if err != nil {
		return Metadata{}, err
	}

	m.mu.Lock()
	m.trees[org.ID] = tree.Clone(nodes)
	m.refreshed[org.ID] = meta.LastRefreshed
	m.gen[org.ID]++
	m.mu.Unlock()

	return meta, nil
}

// Invalidate drops orgID from memory and from the store.
func (m *Manager) Invalidate(ctx context.Context, orgID string) error {
	if err := m.store.Remove(ctx, orgID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.trees, orgID)
	delete(m.refreshed, orgID)
	m.gen[orgID]++
	m.mu.Unlock()

	return nil
}

// LastRefreshed returns when orgID was last written to the cache.
func (m *Manager) LastRefreshed(orgID string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.refreshed[orgID]
	return t, ok
}

// IDs returns the sorted IDs held in memory.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.trees))
	for id := range m.trees {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
