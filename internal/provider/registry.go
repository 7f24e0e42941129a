// Package provider holds the immutable table of skill source repositories.
//
// The table is plain data: adding a source means adding a descriptor, either
// to the built-in list or to a providers file. Nothing downstream branches on
// a provider id.
package provider

import (
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/smy-101/skillcatalog/internal/types"
	"go.yaml.in/yaml/v3"
)

const (
	defaultBranch = "main"
	skillDocName  = "SKILL.md"
)

// Registry is a validated, read-only list of providers.
type Registry struct {
	providers []types.ProviderDescriptor
	index     map[string]int
}

// New validates descriptors, fills derived defaults and returns a Registry.
// The input slice is copied.
func New(descriptors []types.ProviderDescriptor) (*Registry, error) {
	r := &Registry{
		providers: make([]types.ProviderDescriptor, 0, len(descriptors)),
		index:     make(map[string]int, len(descriptors)),
	}

	for _, d := range descriptors {
		d = withDefaults(d)
		if err := validate(d); err != nil {
			return nil, err
		}
		if _, dup := r.index[d.ID]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", d.ID)
		}
		r.index[d.ID] = len(r.providers)
		r.providers = append(r.providers, d)
	}

	return r, nil
}

// Load returns the registry from path, or the built-in table when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return New(Defaults())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	var file struct {
		Providers []types.ProviderDescriptor `yaml:"providers"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse providers file %s: %w", path, err)
	}
	if len(file.Providers) == 0 {
		return nil, fmt.Errorf("providers file %s defines no providers", path)
	}

	return New(file.Providers)
}

// List returns the providers in declaration order. The slice is a copy.
func (r *Registry) List() []types.ProviderDescriptor {
	out := make([]types.ProviderDescriptor, len(r.providers))
	copy(out, r.providers)
	return out
}

// Get looks up a provider by id.
func (r *Registry) Get(id string) (types.ProviderDescriptor, bool) {
	i, ok := r.index[id]
	if !ok {
		return types.ProviderDescriptor{}, false
	}
	return r.providers[i], true
}

// Len returns the number of providers.
func (r *Registry) Len() int {
	return len(r.providers)
}

// IsSkillDocument reports whether a tree path is a skill document of p.
func IsSkillDocument(p types.ProviderDescriptor, path string) bool {
	ok, err := doublestar.Match(p.SkillPattern, path)
	return err == nil && ok
}

// DefaultSkillPattern derives the document glob from a path prefix.
func DefaultSkillPattern(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return "**/" + skillDocName
	}
	return prefix + "/**/" + skillDocName
}

func withDefaults(d types.ProviderDescriptor) types.ProviderDescriptor {
	d.ID = strings.TrimSpace(d.ID)
	if d.Branch == "" {
		d.Branch = defaultBranch
	}
	if d.TrustTier == "" {
		d.TrustTier = types.TrustCommunity
	}
	if d.PathPrefix != "" && !strings.HasSuffix(d.PathPrefix, "/") {
		d.PathPrefix += "/"
	}
	if d.SkillPattern == "" {
		d.SkillPattern = DefaultSkillPattern(d.PathPrefix)
	}
	d.RawBaseURL = strings.TrimSuffix(d.RawBaseURL, "/")
	return d
}

func validate(d types.ProviderDescriptor) error {
	if d.ID == "" {
		return fmt.Errorf("provider id cannot be empty")
	}
	if strings.Contains(d.ID, "/") {
		return fmt.Errorf("provider id %q cannot contain '/'", d.ID)
	}
	if d.Name == "" {
		return fmt.Errorf("provider %q: name cannot be empty", d.ID)
	}
	if d.TreeAPIURL == "" || d.RawBaseURL == "" {
		return fmt.Errorf("provider %q: tree_api_url and raw_base_url are required", d.ID)
	}
	if _, err := ParseRepoURL(d.RepoURL); err != nil {
		return fmt.Errorf("provider %q: %w", d.ID, err)
	}
	if !d.TrustTier.Valid() {
		return fmt.Errorf("provider %q: unknown trust tier %q", d.ID, d.TrustTier)
	}
	if !doublestar.ValidatePattern(d.SkillPattern) {
		return fmt.Errorf("provider %q: invalid skill pattern %q", d.ID, d.SkillPattern)
	}
	return nil
}
