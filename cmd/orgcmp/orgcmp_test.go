package main

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/raphi011/orgcmp/internal/compare"
	"github.com/raphi011/orgcmp/internal/registry"
	"github.com/raphi011/orgcmp/internal/retrieve"
	"github.com/raphi011/orgcmp/internal/selection"
	"github.com/raphi011/orgcmp/internal/session"
	"github.com/raphi011/orgcmp/internal/tree"
)

// The command tests are not parallel: styles.Init swaps package-level styles.

// TestCompareAcrossOrgs walks the whole workflow on two orgs.
//
// Scenario: User registers Dev and Prod, expands and refreshes both, selects
// Foo.cls in each and runs `orgcmp compare --format json`
// Expected: a two-way comparison with at least one modified line
func TestCompareAcrossOrgs(t *testing.T) {
	h := newHarness(t).withDevAndProd()

	out := h.mustRun("expand", "Dev")
	if !strings.Contains(out, tree.PlaceholderText) {
		t.Errorf("expand of uncached org should show the placeholder, got:\n%s", out)
	}
	if n := h.backend.retrievalCount(devID); n != 0 {
		t.Fatalf("expand retrieved %d times, want 0", n)
	}

	h.mustRun("-q", "refresh", "Dev", "Prod")
	if h.backend.retrievalCount(devID) != 1 || h.backend.retrievalCount(prodID) != 1 {
		t.Fatalf("retrievals = %v, want one per org", h.backend.retrievals)
	}

	out = h.mustRun("tree", "--all", "--ids")
	for _, want := range []string{"Dev", "Prod", devID + ":classes/Foo.cls", prodID + ":classes/Foo.cls"} {
		if !strings.Contains(out, want) {
			t.Errorf("tree output missing %q:\n%s", want, out)
		}
	}

	h.mustRun("select", "Dev:classes/Foo.cls", "prod:Foo")

	out = h.mustRun("compare", "--format", "json")
	var result compare.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode compare output: %v\n%s", err, out)
	}
	if result.CompareType != selection.TwoWay {
		t.Errorf("compareType = %q, want %q", result.CompareType, selection.TwoWay)
	}
	if result.Stats.ModifiedLines < 1 {
		t.Errorf("modifiedLines = %d, want >= 1", result.Stats.ModifiedLines)
	}
	if len(h.backend.fetched) != 0 {
		t.Errorf("compare fetched %v remotely, want local copies only", h.backend.fetched)
	}
}

// TestExpandState_PersistsAcrossInvocations verifies the session file.
//
// Scenario: User runs `orgcmp expand Dev` and later `orgcmp tree`
// Expected: Dev is still expanded, Prod is collapsed, nothing was retrieved
func TestExpandState_PersistsAcrossInvocations(t *testing.T) {
	h := newHarness(t).withDevAndProd()

	h.mustRun("expand", "Dev")
	out := h.mustRun("tree")

	if !strings.Contains(out, tree.PlaceholderText) {
		t.Errorf("Dev should still be expanded:\n%s", out)
	}
	if !strings.Contains(out, "Prod (collapsed)") {
		t.Errorf("Prod should be collapsed:\n%s", out)
	}
	if h.backend.retrievalCount(devID)+h.backend.retrievalCount(prodID) != 0 {
		t.Error("expand and tree must not retrieve")
	}

	sess, err := session.Load(h.env.sessionPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.Expansion.Orgs) != 1 || sess.Expansion.Orgs[0] != devID {
		t.Errorf("session expanded orgs = %v, want [%s]", sess.Expansion.Orgs, devID)
	}
}

// TestExpandFolder shows folder contents only once opened.
//
// Scenario: User refreshes Dev, then runs `orgcmp expand Dev classes`
// Expected: Foo.cls is listed, the collapsed triggers folder shows a count
func TestExpandFolder(t *testing.T) {
	h := newHarness(t).withDevAndProd()
	h.mustRun("-q", "refresh", "Dev")

	out := h.mustRun("expand", "Dev", "classes")
	if !strings.Contains(out, "Foo.cls") {
		t.Errorf("classes folder should be open:\n%s", out)
	}
	if !strings.Contains(out, "triggers (1 files)") {
		t.Errorf("triggers folder should be collapsed with a count:\n%s", out)
	}

	if _, _, err := h.run("expand", "Dev", "nope"); err == nil {
		t.Error("expanding a missing folder should fail")
	}
}

// TestRefresh_FailureKeepsCache verifies a failed retrieval is harmless.
//
// Scenario: Dev was refreshed once; the next retrieval fails
// Expected: refresh returns an error, the cached tree survives and Dev is collapsed
func TestRefresh_FailureKeepsCache(t *testing.T) {
	h := newHarness(t).withDevAndProd()
	h.mustRun("-q", "refresh", "Dev")

	h.backend.mu.Lock()
	h.backend.fail[devID] = errors.New("session expired")
	h.backend.mu.Unlock()

	out, _, err := h.run("-q", "refresh")
	if err == nil {
		t.Fatal("refresh should report the failure")
	}
	if !strings.Contains(out, "failed at retrieve") {
		t.Errorf("outcome table should name the failed step:\n%s", out)
	}

	out = h.mustRun("cache", "list")
	if !strings.Contains(out, devID) {
		t.Errorf("cache entry of Dev should survive:\n%s", out)
	}
	out = h.mustRun("tree", "Dev")
	if !strings.Contains(out, "Dev (collapsed)") {
		t.Errorf("Dev should be collapsed after a failed refresh:\n%s", out)
	}
}

func TestRefresh_NothingExpanded(t *testing.T) {
	h := newHarness(t).withDevAndProd()

	if _, _, err := h.run("refresh"); !errors.Is(err, errNothingExpanded) {
		t.Errorf("refresh error = %v, want errNothingExpanded", err)
	}
}

func TestRefresh_MissingCLI(t *testing.T) {
	h := newHarness(t).withDevAndProd()
	h.backend.cliErr = retrieve.ErrCLINotFound

	if _, _, err := h.run("refresh", "Dev"); !errors.Is(err, retrieve.ErrCLINotFound) {
		t.Errorf("refresh error = %v, want ErrCLINotFound", err)
	}
}

// TestCompare_NotEnoughFiles verifies the minimum selection size.
//
// Scenario: User selects a single file and runs `orgcmp compare`
// Expected: ErrNotEnoughFiles
func TestCompare_NotEnoughFiles(t *testing.T) {
	h := newHarness(t).withDevAndProd()
	h.mustRun("-q", "refresh", "Dev")
	h.mustRun("select", "Dev:Foo")

	if _, _, err := h.run("compare"); !errors.Is(err, selection.ErrNotEnoughFiles) {
		t.Errorf("compare error = %v, want ErrNotEnoughFiles", err)
	}
}

func TestCompare_TextAndUnified(t *testing.T) {
	h := newHarness(t).withDevAndProd()
	h.mustRun("-q", "refresh", "Dev", "Prod")
	h.mustRun("select", devID+":classes/Foo.cls", prodID+":classes/Foo.cls")

	out := h.mustRun("compare")
	for _, want := range []string{"[1] Dev classes/Foo.cls", "[2] Prod classes/Foo.cls", "~     Integer x = 1;", "two-way"} {
		if !strings.Contains(out, want) {
			t.Errorf("compare output missing %q:\n%s", want, out)
		}
	}

	out = h.mustRun("compare", "--unified")
	for _, want := range []string{"--- " + devID + ":classes/Foo.cls", "+++ " + prodID + ":classes/Foo.cls", "-    Integer x = 1;", "+    Integer x = 2;"} {
		if !strings.Contains(out, want) {
			t.Errorf("unified output missing %q:\n%s", want, out)
		}
	}
}

// TestCompare_FallsBackToRemote verifies content resolution without a local copy.
//
// Scenario: The retrieved copy of a selected file was deleted
// Expected: compare fetches that file from its org
func TestCompare_FallsBackToRemote(t *testing.T) {
	h := newHarness(t).withDevAndProd()
	h.mustRun("-q", "refresh", "Dev", "Prod")
	h.mustRun("select", "Dev:Foo", "Prod:Foo")

	if err := os.RemoveAll(h.backend.root + "/" + prodID); err != nil {
		t.Fatal(err)
	}

	h.mustRun("compare")
	if len(h.backend.fetched) != 1 || h.backend.fetched[0] != prodID+":classes/Foo.cls" {
		t.Errorf("fetched = %v, want only Prod's Foo.cls", h.backend.fetched)
	}
}

func TestSelect(t *testing.T) {
	h := newHarness(t).withDevAndProd()
	h.mustRun("-q", "refresh", "Dev", "Prod")

	t.Run("ambiguous query lists candidates", func(t *testing.T) {
		_, _, err := h.run("select", "Foo")
		if err == nil {
			t.Fatal("ambiguous select should fail without a terminal")
		}
		for _, want := range []string{devID + ":classes/Foo.cls", prodID + ":classes/Foo.cls"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("error should list %s: %v", want, err)
			}
		}
	})

	t.Run("toggle twice deselects", func(t *testing.T) {
		h.mustRun("select", "Dev:Foo")
		h.mustRun("select", "Dev:Foo")
		out := h.mustRun("selection")
		if !strings.Contains(out, "No files selected") {
			t.Errorf("selection should be empty:\n%s", out)
		}
	})

	t.Run("max bound evicts oldest", func(t *testing.T) {
		h.mustRun("select", "--clear", "--max", "2")
		h.mustRun("select", "Dev:Foo", "Prod:Foo", "Dev:AccountTrigger")
		out := h.mustRun("selection")
		if strings.Contains(out, devID+":classes/Foo.cls") {
			t.Errorf("oldest file should have been evicted:\n%s", out)
		}
		if !strings.Contains(out, "2 of 2 selected, two-way comparison") {
			t.Errorf("unexpected selection summary:\n%s", out)
		}
	})

	t.Run("max out of bounds", func(t *testing.T) {
		_, _, err := h.run("select", "--max", "11")
		var bounds *selection.BoundsError
		if !errors.As(err, &bounds) {
			t.Errorf("select --max 11 error = %v, want *BoundsError", err)
		}
	})

	t.Run("unknown file", func(t *testing.T) {
		if _, _, err := h.run("select", "Dev:Nope.cls"); err == nil {
			t.Error("selecting an unknown file should fail")
		}
	})
}

func TestFind(t *testing.T) {
	h := newHarness(t).withDevAndProd()

	out := h.mustRun("find", "Foo")
	if !strings.Contains(out, "Nothing cached yet") {
		t.Errorf("find before refresh:\n%s", out)
	}

	h.mustRun("-q", "refresh", "Dev", "Prod")
	out = h.mustRun("find", "prod foo")
	if !strings.Contains(out, prodID+":classes/Foo.cls") {
		t.Errorf("find should list Prod's Foo.cls:\n%s", out)
	}
}

// TestOrgRemove verifies cleanup of removed orgs.
//
// Scenario: Dev is refreshed and selected, then `orgcmp org remove Dev`
// Expected: cache entry, retrieved source and selected files of Dev are gone
func TestOrgRemove(t *testing.T) {
	h := newHarness(t).withDevAndProd()
	h.mustRun("-q", "refresh", "Dev", "Prod")
	h.mustRun("select", "Dev:Foo", "Prod:Foo")

	h.mustRun("org", "remove", "Dev")

	out := h.mustRun("org", "list")
	if strings.Contains(out, devID) || !strings.Contains(out, prodID) {
		t.Errorf("org list after remove:\n%s", out)
	}
	out = h.mustRun("cache", "list")
	if strings.Contains(out, devID) {
		t.Errorf("cache of removed org should be gone:\n%s", out)
	}
	out = h.mustRun("selection")
	if strings.Contains(out, devID) || !strings.Contains(out, prodID) {
		t.Errorf("selection after remove:\n%s", out)
	}
	if _, err := os.Stat(h.backend.root + "/" + devID); !os.IsNotExist(err) {
		t.Errorf("retrieved source of Dev should be removed, stat err = %v", err)
	}
}

func TestOrgAdd_DuplicateAlias(t *testing.T) {
	h := newHarness(t).withDevAndProd()

	if _, _, err := h.run("org", "add", "00DOTHER", "other@example.com", "--alias", "Dev"); err == nil {
		t.Error("adding a second org with alias Dev should fail")
	}
}

func TestOrgImport(t *testing.T) {
	h := newHarness(t).withDevAndProd()
	h.backend.authed = []registry.Org{
		{ID: prodID, Username: "admin@example.com", Alias: "Prod"},
		{ID: "00DUAT", Username: "uat@example.com", Alias: "UAT"},
	}

	out := h.mustRun("org", "import", "--dry-run")
	if !strings.Contains(out, "00DUAT") {
		t.Errorf("dry run should list UAT:\n%s", out)
	}
	if out := h.mustRun("org", "list"); strings.Contains(out, "00DUAT") {
		t.Error("dry run must not save")
	}

	h.mustRun("org", "import")
	out = h.mustRun("org", "list", "--format", "json")
	var orgs []struct {
		ID       string   `json:"id"`
		Username string   `json:"username"`
		Labels   []string `json:"labels"`
	}
	if err := json.Unmarshal([]byte(out), &orgs); err != nil {
		t.Fatalf("decode org list: %v\n%s", err, out)
	}
	if len(orgs) != 3 {
		t.Fatalf("got %d orgs, want 3", len(orgs))
	}
	for _, o := range orgs {
		if o.ID == prodID {
			if o.Username != "admin@example.com" {
				t.Errorf("Prod username = %q, want updated username", o.Username)
			}
			if len(o.Labels) != 1 || o.Labels[0] != "production" {
				t.Errorf("Prod labels = %v, want existing labels kept", o.Labels)
			}
		}
	}
}

func TestCollapse(t *testing.T) {
	h := newHarness(t).withDevAndProd()
	h.mustRun("expand", "Dev")
	h.mustRun("expand", "Prod")

	h.mustRun("collapse", "Dev")
	out := h.mustRun("tree")
	if !strings.Contains(out, "Dev (collapsed)") || strings.Contains(out, "Prod (collapsed)") {
		t.Errorf("only Dev should be collapsed:\n%s", out)
	}

	h.mustRun("collapse", "--all")
	out = h.mustRun("tree")
	if !strings.Contains(out, "Prod (collapsed)") {
		t.Errorf("--all should collapse Prod:\n%s", out)
	}
}

func TestCacheClear(t *testing.T) {
	h := newHarness(t).withDevAndProd()
	h.mustRun("-q", "refresh", "Dev", "Prod")

	if _, _, err := h.run("cache", "clear"); err == nil {
		t.Error("cache clear without --yes and without a terminal should fail")
	}

	h.mustRun("cache", "clear", "Dev", "--yes")
	out := h.mustRun("cache", "list")
	if strings.Contains(out, devID) || !strings.Contains(out, prodID) {
		t.Errorf("cache list after clearing Dev:\n%s", out)
	}

	h.mustRun("cache", "clear", "-y")
	if out := h.mustRun("cache", "list"); !strings.Contains(out, "Cache is empty") {
		t.Errorf("cache list after clear:\n%s", out)
	}
}

// TestDoctor verifies doctor on a healthy and a broken cache.
//
// Scenario: User runs `orgcmp doctor` after a refresh, then deletes a blob
// Expected: no issues at first; after the deletion an issue that --fix repairs
func TestDoctor(t *testing.T) {
	h := newHarness(t).withDevAndProd()
	h.mustRun("-q", "refresh", "Dev")

	out := h.mustRun("doctor")
	if !strings.Contains(out, "No issues found") {
		t.Errorf("doctor on healthy setup:\n%s", out)
	}

	if err := os.Remove(h.cfg.CacheDir + "/" + devID + "_files.json"); err != nil {
		t.Fatal(err)
	}
	out = h.mustRun("doctor")
	if !strings.Contains(out, "orgcmp doctor --fix") {
		t.Errorf("doctor should suggest --fix:\n%s", out)
	}

	h.mustRun("doctor", "--fix")
	if out := h.mustRun("doctor"); !strings.Contains(out, "No issues found") {
		t.Errorf("doctor after --fix:\n%s", out)
	}
}

func TestConfigShow(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("config", "show", "--format", "yaml")
	if !strings.Contains(out, "cache_dir: "+h.cfg.CacheDir) {
		t.Errorf("config show yaml:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("--version")
	if !strings.HasPrefix(out, "orgcmp dev") {
		t.Errorf("--version = %q", out)
	}
}
