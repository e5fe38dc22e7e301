// Package registry manages the organization registry at ~/.orgcmp/orgs.json
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/raphi011/orgcmp/internal/storage"
)

// Org represents a registered organization
type Org struct {
	ID          string   `json:"id"`                     // Platform org ID, also the cache key
	Username    string   `json:"username"`               // Login used with the CLI (--target-org)
	Alias       string   `json:"alias,omitempty"`        // Optional short name
	InstanceURL string   `json:"instance_url,omitempty"` // Connection endpoint
	Labels      []string `json:"labels,omitempty"`       // Labels for grouping
}

// Registry holds all registered orgs
type Registry struct {
	Orgs []Org `json:"orgs"`

	path string
}

// DefaultPath returns the path to ~/.orgcmp/orgs.json
func DefaultPath() (string, error) {
	dir, err := storage.StateDir()
	if err != nil {
		return "", fmt.Errorf("create ~/.orgcmp directory: %w", err)
	}
	return filepath.Join(dir, "orgs.json"), nil
}

// Load reads the registry from path.
// Returns empty registry if file doesn't exist.
func Load(path string) (*Registry, error) {
	reg := &Registry{Orgs: []Org{}, path: path}

	if err := storage.LoadJSON(path, reg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return reg, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if reg.Orgs == nil {
		reg.Orgs = []Org{}
	}

	return reg, nil
}

// Save writes the registry back to the path it was loaded from, atomically
func (r *Registry) Save() error {
	if r.path == "" {
		return fmt.Errorf("save registry: no path")
	}
	if err := storage.SaveJSON(r.path, r); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

// Path returns the file the registry is stored in.
func (r *Registry) Path() string {
	return r.path
}

// Add registers an org. An org with the same ID is replaced wholesale
// (re-authentication); an alias already used by another org is rejected.
// Returns true if an existing org was replaced.
func (r *Registry) Add(org Org) (replaced bool, err error) {
	if org.ID == "" {
		return false, fmt.Errorf("org id is required")
	}
	if strings.ContainsAny(org.ID, `/\:`) {
		return false, fmt.Errorf("invalid org id %q", org.ID)
	}
	if org.Username == "" {
		return false, fmt.Errorf("org username is required")
	}

	if org.Alias != "" {
		for _, existing := range r.Orgs {
			if existing.ID != org.ID && existing.Alias == org.Alias {
				return false, fmt.Errorf("alias already used by org %s: %s", existing.ID, org.Alias)
			}
		}
	}

	for i := range r.Orgs {
		if r.Orgs[i].ID == org.ID {
			r.Orgs[i] = org
			return true, nil
		}
	}

	r.Orgs = append(r.Orgs, org)
	return false, nil
}

// Remove unregisters an org by ID, alias or username and returns it
func (r *Registry) Remove(ref string) (Org, error) {
	for i, org := range r.Orgs {
		if org.matches(ref) {
			r.Orgs = slices.Delete(r.Orgs, i, i+1)
			return org, nil
		}
	}
	return Org{}, fmt.Errorf("org not found: %s", ref)
}

// Find looks up an org by ID, alias or username
func (r *Registry) Find(ref string) (*Org, error) {
	for i := range r.Orgs {
		if r.Orgs[i].matches(ref) {
			return &r.Orgs[i], nil
		}
	}
	return nil, fmt.Errorf("org not found: %s (run 'orgcmp org list' to see registered orgs)", ref)
}

// Get looks up an org by ID only
func (r *Registry) Get(id string) (Org, bool) {
	for _, org := range r.Orgs {
		if org.ID == id {
			return org, true
		}
	}
	return Org{}, false
}

// List returns all orgs sorted by display name
func (r *Registry) List() []Org {
	orgs := slices.Clone(r.Orgs)
	slices.SortFunc(orgs, func(a, b Org) int {
		return strings.Compare(strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName()))
	})
	return orgs
}

// IDs returns all org IDs, sorted
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.Orgs))
	for i, org := range r.Orgs {
		ids[i] = org.ID
	}
	slices.Sort(ids)
	return ids
}

// FindByLabel returns all orgs with the given label
func (r *Registry) FindByLabel(label string) []Org {
	var matches []Org
	for _, org := range r.List() {
		if org.HasLabel(label) {
			matches = append(matches, org)
		}
	}
	return matches
}

// AllLabels returns all unique labels across all orgs
func (r *Registry) AllLabels() []string {
	var labels []string
	for _, org := range r.Orgs {
		for _, l := range org.Labels {
			if !slices.Contains(labels, l) {
				labels = append(labels, l)
			}
		}
	}
	slices.Sort(labels)
	return labels
}

// DisplayName returns the alias if set, otherwise the username
func (o Org) DisplayName() string {
	if o.Alias != "" {
		return o.Alias
	}
	return o.Username
}

// HasLabel checks if an org has a specific label
func (o Org) HasLabel(label string) bool {
	return slices.Contains(o.Labels, label)
}

func (o Org) matches(ref string) bool {
	return ref != "" && (o.ID == ref || o.Alias == ref || o.Username == ref)
}

// String returns a display string for the org
func (o Org) String() string {
	if len(o.Labels) > 0 {
		return fmt.Sprintf("%s (%s)", o.DisplayName(), strings.Join(o.Labels, ", "))
	}
	return o.DisplayName()
}
