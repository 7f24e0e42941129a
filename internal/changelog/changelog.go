// Package changelog maintains the catalog's CHANGELOG.md.
package changelog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/smy-101/skillcatalog/internal/catalog"
	"github.com/smy-101/skillcatalog/internal/types"
)

// Marker is the heading new entries are inserted under.
const Marker = "## [Unreleased]"

const maxListed = 20

// AppendEntry inserts a section for cat directly below Marker. prev is the
// previous run's catalog and may be nil. Nothing changes when a section for
// cat.Version already exists or cat has the same content as prev; the bool
// reports whether text was modified.
func AppendEntry(text string, cat, prev *types.Catalog) (string, bool, error) {
	if strings.Contains(text, sectionHeading(cat.Version)) {
		return text, false, nil
	}
	if prev != nil {
		same, err := sameContent(cat, prev)
		if err != nil {
			return text, false, err
		}
		if same {
			return text, false, nil
		}
	}

	text = ensureMarker(text)
	idx := markerEnd(text)
	rest := strings.TrimLeft(text[idx:], "\n")

	var b strings.Builder
	b.WriteString(text[:idx])
	b.WriteString("\n")
	b.WriteString(Entry(cat, prev))
	if rest != "" {
		b.WriteString("\n")
		b.WriteString(rest)
	}
	return b.String(), true, nil
}

// Entry renders the section for cat.
func Entry(cat, prev *types.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s\n\n", sectionHeading(cat.Version), cat.GeneratedAt.UTC().Format("2006-01-02"))

	if prev == nil {
		fmt.Fprintf(&b, "- Total skills: %d\n", cat.TotalSkills)
	} else {
		fmt.Fprintf(&b, "- Total skills: %d (%+d)\n", cat.TotalSkills, cat.TotalSkills-prev.TotalSkills)
	}

	ids := make([]string, 0, len(cat.Providers))
	for id := range cat.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	counts := make([]string, len(ids))
	for i, id := range ids {
		counts[i] = fmt.Sprintf("%s (%d)", id, cat.Providers[id].SkillsCount)
	}
	fmt.Fprintf(&b, "- Providers: %s\n", strings.Join(counts, ", "))

	if prev != nil {
		added, removed := diffSkills(cat, prev)
		if len(added) > 0 {
			fmt.Fprintf(&b, "- Added: %s\n", summarize(added))
		}
		if len(removed) > 0 {
			fmt.Fprintf(&b, "- Removed: %s\n", summarize(removed))
		}
	}
	return b.String()
}

// Update applies AppendEntry to the file at path. A missing file is created.
// It returns the new content and whether it differs from the file.
func Update(path string, cat, prev *types.Catalog) ([]byte, bool, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, false, fmt.Errorf("failed to read changelog: %w", err)
	}
	out, changed, err := AppendEntry(string(existing), cat, prev)
	if err != nil {
		return nil, false, err
	}
	return []byte(out), changed, nil
}

func sectionHeading(version string) string {
	return "## [" + version + "]"
}

func sameContent(a, b *types.Catalog) (bool, error) {
	ha, err := catalog.ContentHash(a)
	if err != nil {
		return false, err
	}
	hb, err := catalog.ContentHash(b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}

func ensureMarker(text string) string {
	if markerIndex(text) >= 0 {
		return text
	}
	if strings.TrimSpace(text) == "" {
		return "# Changelog\n\n" + Marker + "\n"
	}
	if strings.HasPrefix(text, "# ") {
		nl := strings.Index(text, "\n")
		if nl < 0 {
			return text + "\n\n" + Marker + "\n"
		}
		return text[:nl+1] + "\n" + Marker + "\n\n" + strings.TrimLeft(text[nl+1:], "\n")
	}
	return Marker + "\n\n" + text
}

func markerIndex(text string) int {
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if strings.TrimSpace(line) == Marker {
			return offset
		}
		offset += len(line)
	}
	return -1
}

// markerEnd returns the offset just past the marker line.
func markerEnd(text string) int {
	start := markerIndex(text)
	nl := strings.Index(text[start:], "\n")
	if nl < 0 {
		return len(text)
	}
	return start + nl + 1
}

func diffSkills(cat, prev *types.Catalog) (added, removed []string) {
	current := make(map[string]bool, len(cat.Skills))
	for _, s := range cat.Skills {
		current[s.ID] = true
	}
	previous := make(map[string]bool, len(prev.Skills))
	for _, s := range prev.Skills {
		previous[s.ID] = true
		if !current[s.ID] {
			removed = append(removed, s.ID)
		}
	}
	for _, s := range cat.Skills {
		if !previous[s.ID] {
			added = append(added, s.ID)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func summarize(ids []string) string {
	if len(ids) <= maxListed {
		return strings.Join(ids, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(ids[:maxListed], ", "), len(ids)-maxListed)
}
