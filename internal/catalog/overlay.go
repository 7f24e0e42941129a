package catalog

import (
	"fmt"
	"os"
	"sort"

	"github.com/smy-101/skillcatalog/internal/types"
	"go.yaml.in/yaml/v3"
)

// OverlayEntry is a curated annotation for one skill.
type OverlayEntry struct {
	DuplicateOf string `yaml:"duplicate_of"`
}

// Overlay maps skill ids to curated annotations. It is applied on top of the
// computed similarity.
type Overlay map[string]OverlayEntry

// LoadOverlay reads an overlay file. An empty path yields an empty overlay.
func LoadOverlay(path string) (Overlay, error) {
	if path == "" {
		return Overlay{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read overlay file: %w", err)
	}

	o := Overlay{}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse overlay file %s: %w", path, err)
	}
	return o, nil
}

// Apply sets DuplicateOf on the annotated skills. Entries naming an unknown
// skill, an unknown target or the skill itself are skipped; their ids are
// returned sorted.
func (o Overlay) Apply(skills []types.SkillRecord) []string {
	index := make(map[string]int, len(skills))
	for i, s := range skills {
		index[s.ID] = i
	}

	var ignored []string
	for id, entry := range o {
		i, ok := index[id]
		if !ok || entry.DuplicateOf == id {
			ignored = append(ignored, id)
			continue
		}
		if entry.DuplicateOf == "" {
			continue
		}
		if _, ok := index[entry.DuplicateOf]; !ok {
			ignored = append(ignored, id)
			continue
		}
		skills[i].DuplicateOf = entry.DuplicateOf
	}
	sort.Strings(ignored)
	return ignored
}
