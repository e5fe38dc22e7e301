package treesync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raphi011/orgcmp/internal/cache"
	"github.com/raphi011/orgcmp/internal/registry"
	"github.com/raphi011/orgcmp/internal/tree"
)

type fakeOrgs map[string]registry.Org

func (f fakeOrgs) Get(id string) (registry.Org, bool) {
	org, ok := f[id]
	return org, ok
}

func newOrgs(ids ...string) fakeOrgs {
	orgs := make(fakeOrgs)
	for _, id := range ids {
		orgs[id] = registry.Org{ID: id, Username: id + "@example.com"}
	}
	return orgs
}

// fakeRetriever writes files into a fresh directory per call.
type fakeRetriever struct {
	t     *testing.T
	files map[string]string // relative path -> content

	calls    atomic.Int32
	err      error         // returned instead of retrieving
	block    chan struct{} // when set, RetrieveSource waits for it or ctx
	emptyDir bool          // return a directory that does not exist

	mu        sync.Mutex
	discarded []string
	pruned    []string
}

func (f *fakeRetriever) RetrieveSource(ctx context.Context, org registry.Org) (string, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	dir := filepath.Join(f.t.TempDir(), org.ID)
	if f.emptyDir {
		return filepath.Join(dir, "missing"), nil
	}
	for rel, content := range f.files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func (f *fakeRetriever) Discard(dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = append(f.discarded, dir)
	return nil
}

func (f *fakeRetriever) Prune(orgID, keepDir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruned = append(f.pruned, orgID)
	return nil
}

func newRetriever(t *testing.T) *fakeRetriever {
	files := map[string]string{
		"classes/Foo.cls":                 "public class Foo {}",
		"triggers/AccountTrigger.trigger": "trigger AccountTrigger on Account (before insert) {}",
	}
	return &fakeRetriever{t: t, files: files}
}

func newManager(t *testing.T) *cache.Manager {
	t.Helper()
	s, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	m := cache.NewManager(s)
	if err := m.Init(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	return m
}

func cachedNodes(orgID string) []tree.Node {
	id := tree.FileID(orgID, "classes/Old.cls")
	return []tree.Node{{
		ID:   tree.FolderID(orgID, "classes"),
		Name: "classes",
		Kind: tree.KindFolder,
		Children: []tree.Node{{
			ID: id, Name: "Old.cls", Kind: tree.KindFile,
			File: &tree.FileRef{ID: id, Name: "Old.cls", MetadataType: "ApexClass", FullName: "Old", OrgID: orgID},
		}},
	}}
}

func TestTransitionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to State
		want     bool
	}{
		{Unexpanded, ExpandedCached, true},
		{Unexpanded, ExpandedPlaceholder, true},
		{Unexpanded, Refreshing, false},
		{Unexpanded, ExpandedLive, false},
		{ExpandedCached, Refreshing, true},
		{ExpandedPlaceholder, Refreshing, true},
		{ExpandedLive, Refreshing, true},
		{Refreshing, ExpandedLive, true},
		{Refreshing, Unexpanded, true},
		{Refreshing, Refreshing, false},
		{ExpandedCached, ExpandedLive, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestExpand_PlaceholderWithoutRetrieval(t *testing.T) {
	t.Parallel()

	r := newRetriever(t)
	e := New(newManager(t), r, newOrgs("dev"), Options{})

	nodes, err := e.Expand(context.Background(), "dev")
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if !tree.IsPlaceholder(nodes) || nodes[0].Name != tree.PlaceholderText {
		t.Errorf("Expand() = %+v, want placeholder", nodes)
	}
	if got := e.State("dev"); got != ExpandedPlaceholder {
		t.Errorf("State() = %s, want %s", got, ExpandedPlaceholder)
	}
	if n := r.calls.Load(); n != 0 {
		t.Errorf("RetrieveSource called %d times, want 0", n)
	}
}

func TestExpand_CachedVerbatim(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager(t)
	if _, err := m.Put(ctx, cache.OrgRef{ID: "dev"}, cachedNodes("dev")); err != nil {
		t.Fatal(err)
	}
	r := newRetriever(t)
	e := New(m, r, newOrgs("dev"), Options{})

	nodes, err := e.Expand(ctx, "dev")
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if !tree.Equal(nodes, cachedNodes("dev")) {
		t.Error("Expand() did not return the cached tree verbatim")
	}
	if got := e.State("dev"); got != ExpandedCached {
		t.Errorf("State() = %s, want %s", got, ExpandedCached)
	}
	if r.calls.Load() != 0 {
		t.Error("Expand() of cached org called the retriever")
	}

	// Second expand is a no-op returning the same view.
	again, err := e.Expand(ctx, "dev")
	if err != nil || !tree.Equal(again, nodes) {
		t.Errorf("second Expand() = %v, %v", again, err)
	}
}

func TestExpand_UnknownOrg(t *testing.T) {
	t.Parallel()

	e := New(newManager(t), newRetriever(t), newOrgs(), Options{})
	if _, err := e.Expand(context.Background(), "ghost"); err == nil {
		t.Error("Expand() of unregistered org succeeded")
	}
}

func TestRefresh_Success(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager(t)
	r := newRetriever(t)
	e := New(m, r, newOrgs("dev"), Options{})

	var steps []int
	nodes, err := e.Refresh(ctx, "dev", func(step, percent int, _ string) {
		if percent == 0 {
			steps = append(steps, step)
		}
	})
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if got := e.State("dev"); got != ExpandedLive {
		t.Errorf("State() = %s, want %s", got, ExpandedLive)
	}
	if !slices.Equal(steps, []int{1, 2, 3}) {
		t.Errorf("progress steps = %v, want [1 2 3]", steps)
	}
	if tree.CountFiles(nodes) != 2 {
		t.Errorf("refreshed tree has %d files, want 2", tree.CountFiles(nodes))
	}

	cached, ok := m.Get(ctx, "dev")
	if !ok || !tree.Equal(cached, nodes) {
		t.Error("cache does not hold the refreshed tree")
	}
	if _, ok := m.LastRefreshed("dev"); !ok {
		t.Error("LastRefreshed() not recorded")
	}
	if !slices.Equal(r.pruned, []string{"dev"}) {
		t.Errorf("pruned = %v, want [dev]", r.pruned)
	}

	view, _ := e.View("dev")
	if !tree.Equal(view, nodes) {
		t.Error("View() does not show the live tree")
	}
}

func TestRefresh_TraversalFailureKeepsCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager(t)
	if _, err := m.Put(ctx, cache.OrgRef{ID: "dev"}, cachedNodes("dev")); err != nil {
		t.Fatal(err)
	}
	r := newRetriever(t)
	r.emptyDir = true
	e := New(m, r, newOrgs("dev"), Options{})

	if _, err := e.Expand(ctx, "dev"); err != nil {
		t.Fatal(err)
	}

	_, err := e.Refresh(ctx, "dev", nil)
	var rerr *RefreshError
	if !errors.As(err, &rerr) {
		t.Fatalf("Refresh() error = %v, want *RefreshError", err)
	}
	if rerr.Step != StepBuild || rerr.OrgID != "dev" {
		t.Errorf("RefreshError = %+v", rerr)
	}

	if got := e.State("dev"); got != Unexpanded {
		t.Errorf("State() after failure = %s, want %s", got, Unexpanded)
	}
	nodes, err := m.Store().Read(ctx, "dev")
	if err != nil || !tree.Equal(nodes, cachedNodes("dev")) {
		t.Errorf("store changed by failed refresh: %v", err)
	}
	if len(r.discarded) != 1 {
		t.Errorf("discarded = %v, want one staging dir", r.discarded)
	}
}

func TestRefresh_RetrievalFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRetriever(t)
	r.err = errors.New("auth expired")
	e := New(newManager(t), r, newOrgs("dev"), Options{})

	_, err := e.Refresh(ctx, "dev", nil)
	var rerr *RefreshError
	if !errors.As(err, &rerr) || rerr.Step != StepRetrieve {
		t.Fatalf("Refresh() error = %v, want retrieve RefreshError", err)
	}
	if !errors.Is(err, r.err) {
		t.Error("RefreshError should wrap the retriever error")
	}
	if e.State("dev") != Unexpanded {
		t.Errorf("State() = %s, want unexpanded", e.State("dev"))
	}
	if slices.Contains(e.Expanded(), "dev") {
		t.Error("failed org still in expanded set")
	}
}

func TestRefresh_CancelRestoresPreviousState(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	if _, err := m.Put(context.Background(), cache.OrgRef{ID: "dev"}, cachedNodes("dev")); err != nil {
		t.Fatal(err)
	}
	r := newRetriever(t)
	r.block = make(chan struct{})
	e := New(m, r, newOrgs("dev"), Options{})

	if _, err := e.Expand(context.Background(), "dev"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.Refresh(ctx, "dev", nil)
		done <- err
	}()

	waitFor(t, func() bool { return e.State("dev") == Refreshing })
	cancel()

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Refresh() error = %v, want context.Canceled", err)
	}
	if got := e.State("dev"); got != ExpandedCached {
		t.Errorf("State() after cancel = %s, want %s", got, ExpandedCached)
	}
	view, _ := e.View("dev")
	if !tree.Equal(view, cachedNodes("dev")) {
		t.Error("view changed by cancelled refresh")
	}
}

func TestRefresh_CancelKeepsCollapsedOrgCollapsed(t *testing.T) {
	t.Parallel()

	r := newRetriever(t)
	r.block = make(chan struct{})
	e := New(newManager(t), r, newOrgs("dev"), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.Refresh(ctx, "dev", nil)
		done <- err
	}()

	waitFor(t, func() bool { return e.State("dev") == Refreshing })
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Refresh() error = %v, want context.Canceled", err)
	}
	if got := e.State("dev"); got != Unexpanded {
		t.Errorf("State() after cancelled refresh of collapsed org = %s, want %s", got, Unexpanded)
	}
	if _, ok := e.View("dev"); ok {
		t.Error("collapsed org has a view after cancelled refresh")
	}
	if got := e.Expanded(); len(got) != 0 {
		t.Errorf("Expanded() = %v, want none", got)
	}
}

func TestRefresh_Deduplicated(t *testing.T) {
	t.Parallel()

	r := newRetriever(t)
	r.block = make(chan struct{})
	e := New(newManager(t), r, newOrgs("dev"), Options{})
	ctx := context.Background()

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Refresh(ctx, "dev", nil)
			errs <- err
		}()
	}

	waitFor(t, func() bool { return r.calls.Load() == 1 })
	// Give the other callers time to join the in-flight refresh.
	time.Sleep(50 * time.Millisecond)
	close(r.block)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Refresh() error = %v", err)
		}
	}
	if n := r.calls.Load(); n != 1 {
		t.Errorf("RetrieveSource called %d times, want 1", n)
	}
}

func TestRefreshExpanded_OnlyExpandedOrgs(t *testing.T) {
	t.Parallel()

	for _, concurrency := range []int{1, 3} {
		r := newRetriever(t)
		e := New(newManager(t), r, newOrgs("a", "b", "c"), Options{Concurrency: concurrency})
		ctx := context.Background()

		for _, id := range []string{"c", "a"} {
			if _, err := e.Expand(ctx, id); err != nil {
				t.Fatal(err)
			}
		}

		outcomes := e.RefreshExpanded(ctx, nil)

		var ids []string
		for _, o := range outcomes {
			if o.Err != nil {
				t.Errorf("concurrency %d: refresh %s error = %v", concurrency, o.OrgID, o.Err)
			}
			if o.Files != 2 {
				t.Errorf("concurrency %d: refresh %s files = %d, want 2", concurrency, o.OrgID, o.Files)
			}
			ids = append(ids, o.OrgID)
		}
		if !slices.Equal(ids, []string{"a", "c"}) {
			t.Errorf("concurrency %d: refreshed %v, want [a c]", concurrency, ids)
		}
		if n := r.calls.Load(); n != 2 {
			t.Errorf("concurrency %d: RetrieveSource called %d times, want 2", concurrency, n)
		}
		if e.State("b") != Unexpanded {
			t.Errorf("concurrency %d: collapsed org was touched", concurrency)
		}
	}
}

func TestFolders_NoIO(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager(t)
	if _, err := m.Put(ctx, cache.OrgRef{ID: "dev"}, cachedNodes("dev")); err != nil {
		t.Fatal(err)
	}
	r := newRetriever(t)
	e := New(m, r, newOrgs("dev"), Options{})

	folder := tree.FolderID("dev", "classes")
	if _, err := e.ExpandFolder("dev", folder); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("ExpandFolder() on collapsed org error = %v, want ErrIllegalTransition", err)
	}

	if _, err := e.Expand(ctx, "dev"); err != nil {
		t.Fatal(err)
	}
	// The cache blob can disappear: folders are served from the built tree.
	if err := os.Remove(m.Store().FilesPath("dev")); err != nil {
		t.Fatal(err)
	}

	children, err := e.ExpandFolder("dev", folder)
	if err != nil {
		t.Fatalf("ExpandFolder() error = %v", err)
	}
	if len(children) != 1 || children[0].Name != "Old.cls" {
		t.Errorf("ExpandFolder() = %+v", children)
	}
	if got := e.ExpandedFolders("dev"); !slices.Equal(got, []string{folder}) {
		t.Errorf("ExpandedFolders() = %v", got)
	}
	if _, err := e.ExpandFolder("dev", "dev:nope/"); err == nil {
		t.Error("ExpandFolder() of unknown folder succeeded")
	}

	// Folder state survives collapse of the org.
	if err := e.Collapse("dev"); err != nil {
		t.Fatal(err)
	}
	if !e.IsFolderExpanded("dev", folder) {
		t.Error("folder expansion lost on collapse")
	}

	e.CollapseFolder("dev", folder)
	if len(e.ExpandedFolders("dev")) != 0 {
		t.Error("CollapseFolder() did not remove the folder")
	}
	if r.calls.Load() != 0 {
		t.Error("folder operations called the retriever")
	}
}

func TestSnapshotRestore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager(t)
	if _, err := m.Put(ctx, cache.OrgRef{ID: "dev"}, cachedNodes("dev")); err != nil {
		t.Fatal(err)
	}
	orgs := newOrgs("dev", "prod")
	e := New(m, newRetriever(t), orgs, Options{})

	for _, id := range []string{"dev", "prod"} {
		if _, err := e.Expand(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := e.ExpandFolder("dev", tree.FolderID("dev", "classes")); err != nil {
		t.Fatal(err)
	}

	snap := e.Snapshot()
	snap.Orgs = append(snap.Orgs, "removed")

	restored := New(m, newRetriever(t), orgs, Options{})
	restored.Restore(ctx, snap)

	if got := restored.Expanded(); !slices.Equal(got, []string{"dev", "prod"}) {
		t.Errorf("Expanded() = %v, want [dev prod]", got)
	}
	if restored.State("dev") != ExpandedCached || restored.State("prod") != ExpandedPlaceholder {
		t.Errorf("states = %s, %s", restored.State("dev"), restored.State("prod"))
	}
	if !restored.IsFolderExpanded("dev", tree.FolderID("dev", "classes")) {
		t.Error("folder expansion not restored")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
