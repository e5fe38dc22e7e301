package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/raphi011/orgcmp/internal/config"
	"github.com/raphi011/orgcmp/internal/registry"
	"github.com/raphi011/orgcmp/internal/tree"
)

const (
	devID  = "00DDEV"
	prodID = "00DPROD"
)

// fakeBackend stands in for the sf CLI. Each retrieval writes the org's
// current sources into a fresh directory under root.
type fakeBackend struct {
	root string

	mu         sync.Mutex
	sources    map[string]map[string]string // org ID -> relative path -> content
	fail       map[string]error
	retrievals map[string]int
	fetched    []string
	authed     []registry.Org
	cliErr     error
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	return &fakeBackend{
		root:       t.TempDir(),
		sources:    make(map[string]map[string]string),
		fail:       make(map[string]error),
		retrievals: make(map[string]int),
	}
}

func (f *fakeBackend) setSource(orgID, rel, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sources[orgID] == nil {
		f.sources[orgID] = make(map[string]string)
	}
	f.sources[orgID][rel] = content
}

func (f *fakeBackend) RetrieveSource(ctx context.Context, org registry.Org) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.retrievals[org.ID]++
	if err := f.fail[org.ID]; err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(f.root, org.ID, fmt.Sprint(f.retrievals[org.ID]), "src")
	for rel, content := range f.sources[org.ID] {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (f *fakeBackend) ContentOf(_ context.Context, _ registry.Org, ref tree.FileRef) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, ref.ID)
	_, rel, _ := cutID(ref.ID)
	content, ok := f.sources[ref.OrgID][rel]
	if !ok {
		return "", fmt.Errorf("no remote content for %s", ref.ID)
	}
	return content, nil
}

func (f *fakeBackend) CheckCLI() error { return f.cliErr }

func (f *fakeBackend) ListOrgs(context.Context) ([]registry.Org, error) {
	return f.authed, nil
}

func (f *fakeBackend) RemoveOrg(orgID string) error {
	return os.RemoveAll(filepath.Join(f.root, orgID))
}

func (f *fakeBackend) retrievalCount(orgID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retrievals[orgID]
}

func cutID(id string) (orgID, rel string, ok bool) {
	orgID = tree.OrgOf(id)
	if orgID == "" {
		return "", "", false
	}
	return orgID, id[len(orgID)+1:], true
}

// harness runs orgcmp commands against temp directories and a fake backend.
type harness struct {
	t       *testing.T
	cfg     *config.Config
	env     *env
	backend *fakeBackend
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.WorkDir = filepath.Join(dir, "projects")
	cfg.Theme.Mode = "dark" // no terminal background query

	b := newFakeBackend(t)
	return &harness{
		t:   t,
		cfg: &cfg,
		env: &env{
			registryPath: filepath.Join(dir, "orgs.json"),
			sessionPath:  filepath.Join(dir, "session.json"),
			backend:      b,
		},
		backend: b,
	}
}

// withDevAndProd registers "Dev" and "Prod", each with a differing Foo class.
func (h *harness) withDevAndProd() *harness {
	h.t.Helper()
	h.mustRun("org", "add", devID, "dev@example.com", "--alias", "Dev")
	h.mustRun("org", "add", prodID, "prod@example.com", "--alias", "Prod", "--label", "production")

	h.backend.setSource(devID, "classes/Foo.cls", "public class Foo {\n    Integer x = 1;\n}\n")
	h.backend.setSource(prodID, "classes/Foo.cls", "public class Foo {\n    Integer x = 2;\n}\n")
	h.backend.setSource(devID, "triggers/AccountTrigger.trigger", "trigger AccountTrigger on Account (before insert) {}\n")
	return h
}

// run executes orgcmp with args and returns stdout and stderr without colors.
func (h *harness) run(args ...string) (stdout, stderr string, err error) {
	h.t.Helper()

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	ctx := config.WithConfig(context.Background(), h.cfg)
	ctx = withEnv(ctx, h.env)
	err = root.ExecuteContext(ctx)

	return ansi.Strip(out.String()), ansi.Strip(errOut.String()), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	stdout, stderr, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("orgcmp %v: %v\nstderr:\n%s", args, err, stderr)
	}
	return stdout
}
