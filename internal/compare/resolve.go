package compare

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/raphi011/orgcmp/internal/log"
	"github.com/raphi011/orgcmp/internal/registry"
	"github.com/raphi011/orgcmp/internal/retrieve"
	"github.com/raphi011/orgcmp/internal/tree"
)

// Orgs looks up registered organizations. *registry.Registry implements it.
type Orgs interface {
	Get(id string) (registry.Org, bool)
}

// Resolver loads file content, preferring the retrieved local copy and
// falling back to the remote fetcher.
type Resolver struct {
	fetcher     retrieve.ContentFetcher
	orgs        Orgs
	concurrency int

	// OnFetched, if set, is called after each successful remote fetch.
	// It may be called concurrently.
	OnFetched func(ref tree.FileRef)
}

// NewResolver creates a Resolver. fetcher may be nil, in which case only
// local copies can be resolved.
func NewResolver(fetcher retrieve.ContentFetcher, orgs Orgs, concurrency int) *Resolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{fetcher: fetcher, orgs: orgs, concurrency: concurrency}
}

// Resolve returns the content of ref.
func (r *Resolver) Resolve(ctx context.Context, ref tree.FileRef) (string, error) {
	l := log.FromContext(ctx)

	if ref.LocalPath != "" {
		data, err := os.ReadFile(ref.LocalPath)
		if err == nil {
			return string(data), nil
		}
		l.Debug("local copy unreadable, fetching remote content", "file", ref.ID, "err", err)
	}

	if r.fetcher == nil {
		return "", fmt.Errorf("no local copy of %s", ref.ID)
	}
	org, ok := r.orgs.Get(ref.OrgID)
	if !ok {
		return "", fmt.Errorf("org not found: %s", ref.OrgID)
	}

	content, err := r.fetcher.ContentOf(ctx, org, ref)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", ref.ID, err)
	}
	if r.OnFetched != nil {
		r.OnFetched(ref)
	}
	return content, nil
}

// ResolveAll resolves refs concurrently. The result keeps the order of refs;
// the first error cancels the remaining fetches.
func (r *Resolver) ResolveAll(ctx context.Context, refs []tree.FileRef) ([]Input, error) {
	inputs := make([]Input, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, ref := range refs {
		g.Go(func() error {
			content, err := r.Resolve(gctx, ref)
			if err != nil {
				return err
			}
			inputs[i] = Input{File: ref, Content: content}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inputs, nil
}
