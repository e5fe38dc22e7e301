package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphi011/orgcmp/internal/cache"
	"github.com/raphi011/orgcmp/internal/output"
	"github.com/raphi011/orgcmp/internal/tree"
)

// completeOrgs completes org aliases, or IDs for orgs without an alias.
// Already given orgs are not offered again.
func completeOrgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	reg, err := loadRegistry(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	given := make(map[string]bool, len(args))
	for _, a := range args {
		given[a] = true
	}

	var matches []string
	for _, org := range reg.List() {
		name := orgArg(org)
		if given[name] || given[org.ID] {
			continue
		}
		if strings.HasPrefix(name, toComplete) {
			matches = append(matches, name+"\t"+org.Username)
		} else if name != org.ID && strings.HasPrefix(org.ID, toComplete) {
			matches = append(matches, org.ID+"\t"+org.Username)
		}
	}

	return matches, cobra.ShellCompDirectiveNoFileComp
}

// completeOrgThenFolders completes an org first and then the cached folders of it.
func completeOrgThenFolders(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return completeOrgs(cmd, args, toComplete)
	}

	reg, err := loadRegistry(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	org, err := reg.Find(args[0])
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	nodes, ok := cachedTree(cmd, org.ID)
	if !ok {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	prefix := org.ID + ":"
	var matches []string
	_ = tree.Walk(nodes, func(_ []string, n tree.Node) error {
		if n.Kind != tree.KindFolder {
			return nil
		}
		rel := strings.TrimSuffix(strings.TrimPrefix(n.ID, prefix), "/")
		if strings.HasPrefix(rel, toComplete) {
			matches = append(matches, rel)
		}
		return nil
	})

	return matches, cobra.ShellCompDirectiveNoFileComp
}

// completeFiles completes cached file IDs of all orgs.
func completeFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	store, err := cache.NewStore(configFromContext(cmd.Context()).CacheDir)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var matches []string
	for _, id := range store.ListIDs() {
		nodes, err := store.Read(completionContext(cmd), id)
		if err != nil {
			continue
		}
		for _, f := range tree.Files(nodes) {
			if strings.HasPrefix(f.ID, toComplete) {
				matches = append(matches, f.ID+"\t"+f.MetadataType)
			}
		}
	}

	return matches, cobra.ShellCompDirectiveNoFileComp
}

// completeLabels completes labels used by registered orgs.
func completeLabels(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	reg, err := loadRegistry(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var matches []string
	for _, l := range reg.AllLabels() {
		if strings.HasPrefix(l, toComplete) {
			matches = append(matches, l)
		}
	}
	return matches, cobra.ShellCompDirectiveNoFileComp
}

func completeFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return output.Formats, cobra.ShellCompDirectiveNoFileComp
}

func cachedTree(cmd *cobra.Command, orgID string) ([]tree.Node, bool) {
	store, err := cache.NewStore(configFromContext(cmd.Context()).CacheDir)
	if err != nil {
		return nil, false
	}
	nodes, err := store.Read(completionContext(cmd), orgID)
	return nodes, err == nil
}

// completionContext returns the command's context, which is unset when a
// completion function is called outside of ExecuteContext.
func completionContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
