// Package classify assigns categories and tags to skills by keyword matching.
// All functions are pure; identical input always yields identical output.
package classify

import "strings"

// CategoryOther is returned when no keyword of any category matches.
const CategoryOther = "other"

// Classifier maps a skill's name and description to exactly one category.
type Classifier interface {
	Categorize(name, description string) string
	// Categories returns the closed set of categories in declaration order,
	// fallback last.
	Categories() []string
}

// Rule lists the trigger keywords of one category.
type Rule struct {
	Category string
	Keywords []string
}

// DefaultRules is the built-in category table. Order matters for tie-breaks.
var DefaultRules = []Rule{
	{Category: "documents", Keywords: []string{"pdf", "docx", "xlsx", "pptx", "document", "spreadsheet", "presentation"}},
	{Category: "development", Keywords: []string{"git", "gh-", "code", "test", "ci", "debug", "lint", "review", "mcp"}},
	{Category: "creative", Keywords: []string{"art", "design", "canvas", "music", "brand", "visual", "image"}},
	{Category: "enterprise", Keywords: []string{"communication", "meeting", "email", "slack", "notion", "knowledge"}},
	{Category: "integrations", Keywords: []string{"notion", "github", "slack", "api"}},
	{Category: "data", Keywords: []string{"data", "analysis", "extract", "transform", "csv", "json"}},
}

// KeywordClassifier scores each category by the number of its keywords found
// in the lowercased text. The highest count wins; ties go to the category
// declared first.
type KeywordClassifier struct {
	rules    []Rule
	fallback string
}

func NewKeywordClassifier(rules []Rule, fallback string) *KeywordClassifier {
	copied := make([]Rule, len(rules))
	for i, r := range rules {
		kws := make([]string, len(r.Keywords))
		for j, kw := range r.Keywords {
			kws[j] = strings.ToLower(kw)
		}
		copied[i] = Rule{Category: r.Category, Keywords: kws}
	}
	if fallback == "" {
		fallback = CategoryOther
	}
	return &KeywordClassifier{rules: copied, fallback: fallback}
}

// Default returns the classifier built from DefaultRules.
func Default() *KeywordClassifier {
	return NewKeywordClassifier(DefaultRules, CategoryOther)
}

func (c *KeywordClassifier) Categorize(name, description string) string {
	text := strings.ToLower(name + " " + description)

	best, bestScore := c.fallback, 0
	for _, r := range c.rules {
		score := 0
		for _, kw := range r.Keywords {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = r.Category, score
		}
	}
	return best
}

func (c *KeywordClassifier) Categories() []string {
	out := make([]string, 0, len(c.rules)+1)
	seen := make(map[string]bool, len(c.rules)+1)
	for _, r := range c.rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	if !seen[c.fallback] {
		out = append(out, c.fallback)
	}
	return out
}
