package classify

import "strings"

// MaxTags caps the tag list of a skill.
const MaxTags = 10

// TagKeywords are matched as substrings of name and description.
var TagKeywords = []string{
	"pdf", "docx", "xlsx", "pptx", "csv", "json", "yaml",
	"github", "git", "pr", "ci", "cd", "test", "lint",
	"notion", "slack", "api", "mcp", "cli",
	"design", "art", "music", "brand", "visual",
	"document", "extract", "merge", "convert", "analysis",
	"meeting", "email", "knowledge", "wiki", "faq",
}

// ExtractTags returns matched keywords, then words of the name longer than two
// characters, then the declared tags. Tags are lowercased, deduplicated in
// first-seen order and capped at MaxTags.
func ExtractTags(name, description string, declared []string) []string {
	text := strings.ToLower(name + " " + description)

	tags := make([]string, 0, MaxTags)
	seen := make(map[string]bool, MaxTags)
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] || len(tags) >= MaxTags {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, kw := range TagKeywords {
		if strings.Contains(text, kw) {
			add(kw)
		}
	}
	for _, word := range strings.Fields(strings.ReplaceAll(name, "-", " ")) {
		if len(word) > 2 {
			add(word)
		}
	}
	for _, tag := range declared {
		add(tag)
	}
	return tags
}

// Keywords splits text into lowercased words of at least three letters or
// digits, skipping common filler words. Used for similarity overlap.
func Keywords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})

	out := make([]string, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "use": true, "when": true, "into": true,
	"your": true, "you": true, "are": true, "can": true, "any": true,
	"using": true, "skill": true, "skills": true, "via": true, "all": true,
	"also": true, "such": true, "including": true, "other": true, "will": true,
}
