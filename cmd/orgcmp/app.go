package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphi011/orgcmp/internal/cache"
	"github.com/raphi011/orgcmp/internal/config"
	"github.com/raphi011/orgcmp/internal/registry"
	"github.com/raphi011/orgcmp/internal/resolve"
	"github.com/raphi011/orgcmp/internal/retrieve"
	"github.com/raphi011/orgcmp/internal/selection"
	"github.com/raphi011/orgcmp/internal/session"
	"github.com/raphi011/orgcmp/internal/tree"
	"github.com/raphi011/orgcmp/internal/treesync"
	"github.com/raphi011/orgcmp/internal/ui/static"
)

// backend is what the commands need from the platform CLI.
// *retrieve.SFCLI implements it.
type backend interface {
	retrieve.Retriever
	retrieve.ContentFetcher
	CheckCLI() error
	ListOrgs(ctx context.Context) ([]registry.Org, error)
	RemoveOrg(orgID string) error
}

// env overrides where state lives and which backend is used.
// The zero value means the defaults under ~/.orgcmp and the sf CLI.
type env struct {
	registryPath string
	sessionPath  string
	backend      backend
}

type envKey struct{}

func withEnv(ctx context.Context, e *env) context.Context {
	return context.WithValue(ctx, envKey{}, e)
}

func envFromContext(ctx context.Context) *env {
	if ctx == nil {
		return &env{}
	}
	if e, ok := ctx.Value(envKey{}).(*env); ok {
		return e
	}
	return &env{}
}

func configFromContext(ctx context.Context) *config.Config {
	if ctx != nil {
		if cfg := config.FromContext(ctx); cfg != nil {
			return cfg
		}
	}
	d := config.Default()
	return &d
}

// app is the wired set of components a command works with.
type app struct {
	cfg     *config.Config
	reg     *registry.Registry
	cache   *cache.Manager
	backend backend
	engine  *treesync.Engine
	session *session.Session
	sel     *selection.Manager
}

func loadRegistry(ctx context.Context) (*registry.Registry, error) {
	path := envFromContext(ctx).registryPath
	if path == "" {
		var err error
		if path, err = registry.DefaultPath(); err != nil {
			return nil, err
		}
	}
	reg, err := registry.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	return reg, nil
}

func newBackend(ctx context.Context, cfg *config.Config) backend {
	if b := envFromContext(ctx).backend; b != nil {
		return b
	}
	return retrieve.NewSFCLI(cfg.CLI, cfg.WorkDir, cfg.Metadata, cfg.RetrieveTimeout.Duration)
}

// openApp loads the registry, cache and session and restores the expansion
// state of the previous invocation. Nothing is retrieved.
func openApp(ctx context.Context) (*app, error) {
	cfg := configFromContext(ctx)

	reg, err := loadRegistry(ctx)
	if err != nil {
		return nil, err
	}

	store, err := cache.NewStore(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	mgr := cache.NewManager(store)
	if err := mgr.Init(ctx, reg.IDs()); err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}

	b := newBackend(ctx, cfg)
	engine := treesync.New(mgr, b, reg, treesync.Options{
		IncludeMeta: cfg.IncludeMetaFiles,
		Concurrency: cfg.RefreshConcurrency,
	})

	sessPath := envFromContext(ctx).sessionPath
	if sessPath == "" {
		if sessPath, err = session.DefaultPath(); err != nil {
			return nil, err
		}
	}
	sess, err := session.Load(sessPath)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	sess.Prune(func(id string) bool {
		_, ok := reg.Get(id)
		return ok
	})
	engine.Restore(ctx, sess.Expansion)

	return &app{
		cfg:     cfg,
		reg:     reg,
		cache:   mgr,
		backend: b,
		engine:  engine,
		session: sess,
		sel:     sess.Apply(cfg.MaxFiles),
	}, nil
}

// save persists the expansion state and selection for the next invocation.
func (a *app) save() error {
	a.session.Capture(a.engine, a.sel)
	if err := a.session.Save(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// findOrg looks up a registered org by ID, alias or username.
func (a *app) findOrg(ref string) (registry.Org, error) {
	org, err := a.reg.Find(ref)
	if err != nil {
		return registry.Org{}, fmt.Errorf("%w (see 'orgcmp org list')", err)
	}
	return *org, nil
}

// orgName returns the display name of orgID, or the ID itself for
// unregistered orgs.
func (a *app) orgName(orgID string) string {
	if org, ok := a.reg.Get(orgID); ok {
		return org.DisplayName()
	}
	return orgID
}

// index builds the fuzzy file index over every cached org.
func (a *app) index(ctx context.Context) *resolve.Index {
	return resolve.NewIndex(a.reg.List(), func(orgID string) ([]tree.Node, bool) {
		return a.cache.Get(ctx, orgID)
	})
}

// current replaces refs with their entries in the latest cached tree.
// A refresh moves retrieved copies to a new staging directory, so older
// local paths may no longer exist. Files missing from the cache are kept
// as they are and resolved remotely.
func (a *app) current(ctx context.Context, refs []tree.FileRef) []tree.FileRef {
	out := make([]tree.FileRef, len(refs))
	for i, ref := range refs {
		out[i] = ref
		nodes, ok := a.cache.Get(ctx, ref.OrgID)
		if !ok {
			continue
		}
		if fresh, ok := tree.FindFile(nodes, ref.ID); ok {
			out[i] = fresh
		}
	}
	return out
}

// folderID turns a folder argument into a folder ID of orgID. Both full
// IDs ("<org>:classes/") and relative paths ("classes") are accepted.
func folderID(orgID, arg string) (string, error) {
	if strings.Contains(arg, ":") {
		if tree.OrgOf(arg) != orgID {
			return "", fmt.Errorf("folder %s does not belong to org %s", arg, orgID)
		}
		return tree.FolderID(orgID, strings.TrimPrefix(arg, orgID+":")), nil
	}
	return tree.FolderID(orgID, strings.Trim(arg, "/")), nil
}

// stateLabel is the short state name shown by the tree view.
func stateLabel(s treesync.State) string {
	switch s {
	case treesync.ExpandedLive:
		return "live"
	case treesync.ExpandedPlaceholder:
		return "placeholder"
	case treesync.Refreshing:
		return "refreshing"
	default:
		return "cached"
	}
}

// orgTree collects what the tree view shows for org.
func (a *app) orgTree(org registry.Org) static.OrgTree {
	st := a.engine.State(org.ID)
	ot := static.OrgTree{
		ID:       org.ID,
		Name:     org.DisplayName(),
		State:    stateLabel(st),
		Expanded: st.Expanded(),
	}
	if !ot.Expanded {
		return ot
	}

	ot.Nodes, _ = a.engine.View(org.ID)
	ot.Refreshed, _ = a.cache.LastRefreshed(org.ID)
	ot.Folders = make(map[string]bool)
	for _, id := range a.engine.ExpandedFolders(org.ID) {
		ot.Folders[id] = true
	}
	return ot
}

// isSelected reports whether a file ID is in the selection.
func (a *app) isSelected(id string) bool {
	return a.sel.Contains(id)
}
