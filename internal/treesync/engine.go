// Package treesync decides, per organization, whether to show cached data,
// a placeholder, or to retrieve fresh source.
//
// Every org moves through an explicit state machine:
//
//	Unexpanded --expand--> ExpandedCached | ExpandedPlaceholder
//	Expanded*  --refresh-> Refreshing --> ExpandedLive
//	Refreshing --failure-> Unexpanded (cache untouched)
//	Refreshing --cancel--> the state before the refresh
//
// Expanding never retrieves anything: it serves the cache or a placeholder.
// Only an explicit refresh calls the [retrieve.Retriever].
package treesync

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/raphi011/orgcmp/internal/cache"
	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/registry"
	"github.com/raphi011/orgcmp/internal/retrieve"
	"github.com/raphi011/orgcmp/internal/sourcetree"
	"github.com/raphi011/orgcmp/internal/tree"
)

// Orgs looks up registered organizations. *registry.Registry implements it.
type Orgs interface {
	Get(id string) (registry.Org, bool)
}

// Stager is implemented by retrievers that write each attempt into its own
// directory. Failed attempts are discarded, older ones pruned after commit.
type Stager interface {
	Discard(dir string) error
	Prune(orgID, keepDir string) error
}

// ProgressFunc receives refresh progress: the 1-based step index
// (see TotalSteps), the percentage within that step and a message.
// With Options.Concurrency > 1 it is called from several goroutines.
type ProgressFunc func(step, percent int, message string)

// Options tunes an Engine.
type Options struct {
	IncludeMeta bool // keep -meta.xml companions in built trees
	Concurrency int  // orgs refreshed in parallel by RefreshExpanded; <= 1 is sequential
}

// Outcome is the result of refreshing one org in RefreshExpanded.
type Outcome struct {
	OrgID string
	Files int
	Err   error
}

// Expansion is the persistable expansion state of an Engine.
type Expansion struct {
	Orgs    []string            `json:"orgs"`
	Folders map[string][]string `json:"folders,omitempty"`
}

// Engine owns the expansion state of every org.
type Engine struct {
	cache     *cache.Manager
	retriever retrieve.Retriever
	orgs      Orgs
	opts      Options

	group singleflight.Group

	// mu guards the maps below; it is never held across I/O.
	mu      sync.Mutex
	states  map[string]State
	views   map[string][]tree.Node
	folders map[string]map[string]bool
}

// New creates an Engine.
func New(cm *cache.Manager, r retrieve.Retriever, orgs Orgs, opts Options) *Engine {
	return &Engine{
		cache:     cm,
		retriever: r,
		orgs:      orgs,
		opts:      opts,
		states:    make(map[string]State),
		views:     make(map[string][]tree.Node),
		folders:   make(map[string]map[string]bool),
	}
}

// State returns the current state of orgID.
func (e *Engine) State(orgID string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[orgID]
}

// Expanded returns the sorted IDs of all expanded orgs, including those
// currently refreshing.
func (e *Engine) Expanded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var ids []string
	for id, st := range e.states {
		if st.Expanded() {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// ExpandedFolders returns the sorted IDs of the expanded folders of orgID.
func (e *Engine) ExpandedFolders(orgID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Sorted(maps.Keys(e.folders[orgID]))
}

// IsFolderExpanded reports whether folderID of orgID is expanded.
func (e *Engine) IsFolderExpanded(orgID, folderID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.folders[orgID][folderID]
}

// View returns the tree currently shown for an expanded org.
func (e *Engine) View(orgID string) ([]tree.Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.states[orgID].Expanded() {
		return nil, false
	}
	return tree.Clone(e.views[orgID]), true
}

// Expand shows orgID: its cached tree if there is one, otherwise a single
// placeholder node. It never retrieves. Expanding an expanded org returns
// its current view.
func (e *Engine) Expand(ctx context.Context, orgID string) ([]tree.Node, error) {
	if _, ok := e.orgs.Get(orgID); !ok {
		return nil, fmt.Errorf("org not found: %s", orgID)
	}

	if nodes, ok := e.View(orgID); ok {
		return nodes, nil
	}

	next := ExpandedCached
	nodes, ok := e.cache.Get(ctx, orgID)
	if !ok {
		next = ExpandedPlaceholder
		nodes = []tree.Node{tree.Placeholder(orgID)}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.states[orgID]
	if cur.Expanded() {
		// Expanded concurrently while we read the cache.
		return tree.Clone(e.views[orgID]), nil
	}
	if err := checkTransition(orgID, cur, next); err != nil {
		return nil, err
	}
	e.states[orgID] = next
	e.views[orgID] = nodes

	log.FromContext(ctx).Debug("org expanded", "org", orgID, "state", next)
	return tree.Clone(nodes), nil
}

// Collapse hides orgID. Folder expansion is remembered for the next Expand.
// Collapsing an unexpanded org is a no-op.
func (e *Engine) Collapse(orgID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.states[orgID]
	if cur == Unexpanded {
		return nil
	}
	if err := checkTransition(orgID, cur, Unexpanded); err != nil {
		return err
	}
	e.states[orgID] = Unexpanded
	delete(e.views, orgID)
	return nil
}

// Forget drops all state of orgID, e.g. after the org was removed.
func (e *Engine) Forget(orgID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, orgID)
	delete(e.views, orgID)
	delete(e.folders, orgID)
}

// ExpandFolder marks folderID as expanded and returns its children.
// The tree is already built, so this does no I/O.
func (e *Engine) ExpandFolder(orgID, folderID string) ([]tree.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.states[orgID].Expanded() {
		return nil, fmt.Errorf("%w: org %s is not expanded", ErrIllegalTransition, orgID)
	}
	n, ok := tree.Find(e.views[orgID], folderID)
	if !ok || !n.IsFolder() {
		return nil, fmt.Errorf("folder not found: %s", folderID)
	}

	if e.folders[orgID] == nil {
		e.folders[orgID] = make(map[string]bool)
	}
	e.folders[orgID][folderID] = true
	return tree.Clone(n.Children), nil
}

// CollapseFolder marks folderID as collapsed.
func (e *Engine) CollapseFolder(orgID, folderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.folders[orgID], folderID)
	if len(e.folders[orgID]) == 0 {
		delete(e.folders, orgID)
	}
}

// Refresh retrieves orgID, rebuilds its tree and replaces its cache entry.
// An unexpanded org is expanded first.
//
// Concurrent calls for the same org share one refresh; the context of the
// call that started it governs cancellation for all of them.
//
// On failure the org is collapsed and a *RefreshError is returned; on
// cancellation the org returns to the state it had before the call, so an
// org that was collapsed stays collapsed. In both cases the
// cache entry is left as it was.
func (e *Engine) Refresh(ctx context.Context, orgID string, progress ProgressFunc) ([]tree.Node, error) {
	v, err, shared := e.group.Do(orgID, func() (any, error) {
		return e.refresh(ctx, orgID, progress)
	})
	if shared {
		log.FromContext(ctx).Debug("joined in-flight refresh", "org", orgID)
	}
	if err != nil {
		return nil, err
	}
	return tree.Clone(v.([]tree.Node)), nil
}

func (e *Engine) refresh(ctx context.Context, orgID string, progress ProgressFunc) ([]tree.Node, error) {
	org, ok := e.orgs.Get(orgID)
	if !ok {
		return nil, fmt.Errorf("org not found: %s", orgID)
	}

	// Cancellation restores the state from before the implicit expand.
	before := e.State(orgID)

	if _, err := e.Expand(ctx, orgID); err != nil {
		return nil, err
	}

	e.mu.Lock()
	prev := e.states[orgID]
	if err := checkTransition(orgID, prev, Refreshing); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.states[orgID] = Refreshing
	e.mu.Unlock()
	if before == Unexpanded {
		prev = Unexpanded
	}

	report := func(step Step, percent int, msg string) {
		if progress != nil {
			progress(step.Index(), percent, msg)
		}
	}

	report(StepRetrieve, 0, fmt.Sprintf("Retrieving %s", org.DisplayName()))
	dir, err := e.retriever.RetrieveSource(ctx, org)
	if err != nil {
		return nil, e.abort(ctx, orgID, prev, StepRetrieve, err, "")
	}
	report(StepRetrieve, 100, "Retrieved")

	report(StepBuild, 0, "Building file tree")
	nodes, err := sourcetree.Build(ctx, dir, orgID, sourcetree.Options{IncludeMeta: e.opts.IncludeMeta})
	if err != nil {
		return nil, e.abort(ctx, orgID, prev, StepBuild, err, dir)
	}
	report(StepBuild, 100, fmt.Sprintf("%d files", tree.CountFiles(nodes)))

	if err := ctx.Err(); err != nil {
		return nil, e.abort(ctx, orgID, prev, StepSave, err, dir)
	}

	report(StepSave, 0, "Saving cache")
	ref := cache.OrgRef{ID: org.ID, Username: org.Username, Alias: org.Alias}
	if _, err := e.cache.Put(ctx, ref, nodes); err != nil {
		return nil, e.abort(ctx, orgID, prev, StepSave, err, dir)
	}

	l := log.FromContext(ctx)
	if s, ok := e.retriever.(Stager); ok {
		if err := s.Prune(orgID, dir); err != nil {
			l.Debug("pruning old snapshots failed", "org", orgID, "err", err)
		}
	}

	e.mu.Lock()
	// A collapse during the refresh wins; the cache is still updated.
	if e.states[orgID] == Refreshing {
		e.states[orgID] = ExpandedLive
		e.views[orgID] = nodes
	}
	e.mu.Unlock()

	report(StepSave, 100, "Done")
	l.Debug("org refreshed", "org", orgID, "files", tree.CountFiles(nodes))
	return nodes, nil
}

// abort rolls back a refresh that stopped at step.
func (e *Engine) abort(ctx context.Context, orgID string, prev State, step Step, err error, dir string) error {
	l := log.FromContext(ctx)

	if dir != "" {
		if s, ok := e.retriever.(Stager); ok {
			if derr := s.Discard(dir); derr != nil {
				l.Debug("discarding staging dir failed", "org", orgID, "dir", dir, "err", derr)
			}
		}
	}

	cancelled := ctx.Err() != nil

	e.mu.Lock()
	if e.states[orgID] == Refreshing {
		if cancelled {
			e.states[orgID] = prev
			if prev == Unexpanded {
				delete(e.views, orgID)
			}
		} else {
			e.states[orgID] = Unexpanded
			delete(e.views, orgID)
		}
	}
	e.mu.Unlock()

	l.Debug("refresh aborted", "org", orgID, "step", step, "cancelled", cancelled, "err", err)
	return &RefreshError{OrgID: orgID, Step: step, Err: err}
}

// RefreshExpanded refreshes exactly the expanded orgs, in org ID order.
// Orgs run one after another unless Options.Concurrency > 1. A failing org
// does not stop the others; every org gets an Outcome.
func (e *Engine) RefreshExpanded(ctx context.Context, progress ProgressFunc) []Outcome {
	ids := e.Expanded()
	outcomes := make([]Outcome, len(ids))

	refreshOne := func(i int, id string) {
		if err := ctx.Err(); err != nil {
			outcomes[i] = Outcome{OrgID: id, Err: &RefreshError{OrgID: id, Step: StepRetrieve, Err: err}}
			return
		}
		nodes, err := e.Refresh(ctx, id, progress)
		outcomes[i] = Outcome{OrgID: id, Files: tree.CountFiles(nodes), Err: err}
	}

	if e.opts.Concurrency <= 1 {
		for i, id := range ids {
			refreshOne(i, id)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			refreshOne(i, id)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Snapshot returns the current expansion state.
func (e *Engine) Snapshot() Expansion {
	orgs := e.Expanded()

	e.mu.Lock()
	defer e.mu.Unlock()

	x := Expansion{Orgs: orgs}
	for id, set := range e.folders {
		if len(set) == 0 {
			continue
		}
		if x.Folders == nil {
			x.Folders = make(map[string][]string)
		}
		x.Folders[id] = slices.Sorted(maps.Keys(set))
	}
	return x
}

// Restore re-applies a snapshot. Orgs that are no longer registered are
// skipped. Expanding restored orgs reads the cache only.
func (e *Engine) Restore(ctx context.Context, x Expansion) {
	l := log.FromContext(ctx)

	for _, id := range x.Orgs {
		if _, err := e.Expand(ctx, id); err != nil {
			l.Debug("skipping restored org", "org", id, "err", err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for id, folders := range x.Folders {
		if _, ok := e.orgs.Get(id); !ok {
			continue
		}
		set := make(map[string]bool, len(folders))
		for _, f := range folders {
			set[f] = true
		}
		e.folders[id] = set
	}
}
