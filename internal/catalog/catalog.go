// Package catalog assembles SkillRecords into the published Catalog and
// serializes it.
package catalog

import (
	"sort"
	"time"

	"github.com/smy-101/skillcatalog/internal/types"
)

// ProviderInfo is optional repository metadata shown in provider summaries.
type ProviderInfo struct {
	Stars       *int
	Description string
}

// Input is everything Assemble needs.
type Input struct {
	Providers  []types.ProviderDescriptor
	Skills     []types.SkillRecord
	Info       map[string]ProviderInfo
	Categories []string
	Schema     string
}

// Assemble builds a fresh catalog. Provider counts are recomputed from the
// final skill list. Skills whose id was already taken, or whose provider is not
// registered, are dropped and their ids returned. Version and GeneratedAt are
// left for Stamp.
func Assemble(in Input) (*types.Catalog, []string) {
	registered := make(map[string]types.ProviderDescriptor, len(in.Providers))
	for _, p := range in.Providers {
		registered[p.ID] = p
	}

	skills := make([]types.SkillRecord, 0, len(in.Skills))
	seen := make(map[string]bool, len(in.Skills))
	var dropped []string
	for _, s := range in.Skills {
		if _, ok := registered[s.Provider]; !ok || seen[s.ID] {
			dropped = append(dropped, s.ID)
			continue
		}
		seen[s.ID] = true
		skills = append(skills, s)
	}
	SortSkills(skills)

	counts := make(map[string]int, len(in.Providers))
	for _, s := range skills {
		counts[s.Provider]++
	}

	providers := make(map[string]types.ProviderSummary, len(in.Providers))
	for _, p := range in.Providers {
		summary := types.ProviderSummary{
			Name:        p.Name,
			Repo:        p.RepoURL,
			SkillsCount: counts[p.ID],
			TrustTier:   p.TrustTier,
			Description: p.Description,
		}
		if info, ok := in.Info[p.ID]; ok {
			summary.Stars = info.Stars
			if info.Description != "" {
				summary.Description = info.Description
			}
		}
		providers[p.ID] = summary
	}

	categories := append([]string{}, in.Categories...)

	return &types.Catalog{
		Schema:      in.Schema,
		TotalSkills: len(skills),
		Providers:   providers,
		Categories:  categories,
		Skills:      skills,
	}, dropped
}

// SortSkills orders skills by provider, then name, then id.
func SortSkills(skills []types.SkillRecord) {
	sort.SliceStable(skills, func(i, j int) bool {
		a, b := skills[i], skills[j]
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

// Stamp sets the version and generation time.
func Stamp(c *types.Catalog, version string, generatedAt time.Time) {
	c.Version = version
	c.GeneratedAt = generatedAt.UTC().Truncate(time.Second)
}

// SkillsByProvider groups the skills of c by provider id.
func SkillsByProvider(c *types.Catalog) map[string][]types.SkillRecord {
	out := make(map[string][]types.SkillRecord)
	if c == nil {
		return out
	}
	for _, s := range c.Skills {
		out[s.Provider] = append(out[s.Provider], s)
	}
	return out
}
