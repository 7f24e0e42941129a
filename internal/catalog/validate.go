package catalog

import (
	"fmt"
	"strings"

	"github.com/smy-101/skillcatalog/internal/score"
	"github.com/smy-101/skillcatalog/internal/types"
)

// ConsistencyError lists every invariant a catalog violates.
type ConsistencyError struct {
	Violations []string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("catalog is inconsistent (%d violations): %s", len(e.Violations), strings.Join(e.Violations, "; "))
}

// Rules parameterise Validate.
type Rules struct {
	// Categories is the closed category set. Empty means the catalog's own list.
	Categories []string
	MaxSimilar int
	Threshold  float64
}

var validMaintenance = map[types.MaintenanceStatus]bool{
	types.MaintenanceActive:     true,
	types.MaintenanceMaintained: true,
	types.MaintenanceStale:      true,
	types.MaintenanceAbandoned:  true,
}

// Validate checks the catalog invariants and returns a *ConsistencyError
// describing every violation found.
func Validate(c *types.Catalog, rules Rules) error {
	var v []string
	add := func(format string, args ...any) {
		v = append(v, fmt.Sprintf(format, args...))
	}

	if c.Version == "" {
		add("version is empty")
	}
	if c.TotalSkills != len(c.Skills) {
		add("total_skills is %d but %d skills are listed", c.TotalSkills, len(c.Skills))
	}

	categories := rules.Categories
	if len(categories) == 0 {
		categories = c.Categories
	} else if strings.Join(categories, ",") != strings.Join(c.Categories, ",") {
		add("categories %v differ from %v", c.Categories, categories)
	}
	allowed := make(map[string]bool, len(categories))
	for _, cat := range categories {
		allowed[cat] = true
	}

	ids := make(map[string]bool, len(c.Skills))
	counts := make(map[string]int, len(c.Providers))
	for _, s := range c.Skills {
		if s.ID == "" {
			add("skill with empty id")
		} else if ids[s.ID] {
			add("duplicate skill id %q", s.ID)
		}
		ids[s.ID] = true
		counts[s.Provider]++

		if _, ok := c.Providers[s.Provider]; !ok {
			add("skill %q references unknown provider %q", s.ID, s.Provider)
		}
		if !allowed[s.Category] {
			add("skill %q has unknown category %q", s.ID, s.Category)
		}
		if s.QualityScore < score.Min || s.QualityScore > score.Max {
			add("skill %q has quality score %d outside [%d, %d]", s.ID, s.QualityScore, score.Min, score.Max)
		}
		if !validMaintenance[s.MaintenanceStatus] {
			add("skill %q has unknown maintenance status %q", s.ID, s.MaintenanceStatus)
		}
		validateSimilar(s, rules, add)
	}

	for id, p := range c.Providers {
		if p.SkillsCount != counts[id] {
			add("provider %q reports %d skills but %d are listed", id, p.SkillsCount, counts[id])
		}
	}

	for _, s := range c.Skills {
		if s.DuplicateOf != "" && !ids[s.DuplicateOf] {
			add("skill %q is marked duplicate of unknown skill %q", s.ID, s.DuplicateOf)
		}
	}

	if len(v) > 0 {
		return &ConsistencyError{Violations: v}
	}
	return nil
}

func validateSimilar(s types.SkillRecord, rules Rules, add func(string, ...any)) {
	if rules.MaxSimilar > 0 && len(s.SimilarSkills) > rules.MaxSimilar {
		add("skill %q lists %d similar skills, more than %d", s.ID, len(s.SimilarSkills), rules.MaxSimilar)
	}
	for i, sim := range s.SimilarSkills {
		if sim.ID == s.ID {
			add("skill %q lists itself as similar", s.ID)
		}
		if sim.Score < rules.Threshold || sim.Score > 1 {
			add("skill %q has similarity %.3f to %q outside [%.3f, 1]", s.ID, sim.Score, sim.ID, rules.Threshold)
		}
		if i > 0 && sim.Score > s.SimilarSkills[i-1].Score {
			add("skill %q similar skills are not sorted by score", s.ID)
		}
	}
}
