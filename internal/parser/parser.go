// Package parser turns a raw skill document into a SkillRecord.
//
// A document starts with a YAML header delimited by "---" lines, followed by a
// free-text body. The header must carry a name and a description. Structural
// flags come from the sibling paths of the document, never from the header.
package parser

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/smy-101/skillcatalog/internal/classify"
	"github.com/smy-101/skillcatalog/internal/provider"
	"github.com/smy-101/skillcatalog/internal/types"
	"go.yaml.in/yaml/v3"
)

var headerPattern = regexp.MustCompile(`(?s)^---[ \t]*\n(.*?)\n---[ \t]*(?:\n(.*))?$`)

var (
	scriptDirs    = []string{"scripts/"}
	referenceDirs = []string{"references/", "reference/"}
	assetDirs     = []string{"assets/", "templates/"}
)

// Document is a skill document split into header fields and body.
type Document struct {
	Header map[string]any
	Body   string
}

// Split separates the header block from the body.
func Split(raw []byte) (*Document, error) {
	text := strings.TrimPrefix(string(raw), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	m := headerPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("missing header block")
	}

	header := map[string]any{}
	if err := yaml.Unmarshal([]byte(m[1]), &header); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}
	return &Document{Header: header, Body: m[2]}, nil
}

// ParseSkill builds the record for the document at docPath in provider p.
// siblings are every path of the provider tree; only those below the
// document's directory are considered. Category, score and similarity are
// left for later stages.
func ParseSkill(p types.ProviderDescriptor, docPath string, raw []byte, siblings []string) (*types.SkillRecord, error) {
	fail := func(reason string, err error) error {
		return &ParseError{Provider: p.ID, Path: docPath, Reason: reason, Err: err}
	}

	doc, err := Split(raw)
	if err != nil {
		return nil, fail("malformed document", err)
	}

	name := stringField(doc.Header, "name")
	if name == "" {
		return nil, fail("missing required field \"name\"", nil)
	}
	description := stringField(doc.Header, "description")
	if description == "" {
		return nil, fail("missing required field \"description\"", nil)
	}

	dir := path.Dir(docPath)
	flags := Flags(dir, siblings)

	return &types.SkillRecord{
		ID:            p.ID + "/" + name,
		Name:          name,
		Description:   description,
		Provider:      p.ID,
		License:       optionalField(doc.Header, "license"),
		Compatibility: optionalField(doc.Header, "compatibility"),
		Metadata:      metadataField(doc.Header),
		Source: types.SkillSource{
			Repo:       p.RepoURL,
			Path:       dir,
			SkillMDURL: provider.RawURL(p, docPath),
		},
		HasScripts:    flags.Scripts,
		HasReferences: flags.References,
		HasAssets:     flags.Assets,
		Tags:          classify.ExtractTags(name, description, listField(doc.Header, "tags")),
		SimilarSkills: []types.SimilarSkill{},
	}, nil
}

// StructuralFlags records which optional directories a skill ships with.
type StructuralFlags struct {
	Scripts    bool
	References bool
	Assets     bool
}

// Flags inspects the paths below dir. A dir of "." or "" means the
// repository root.
func Flags(dir string, siblings []string) StructuralFlags {
	prefix := ""
	if dir != "." && dir != "" {
		prefix = strings.TrimSuffix(dir, "/") + "/"
	}

	var f StructuralFlags
	for _, s := range siblings {
		if !strings.HasPrefix(s, prefix) {
			continue
		}
		rel := s[len(prefix):]
		f.Scripts = f.Scripts || hasAnyPrefix(rel, scriptDirs)
		f.References = f.References || hasAnyPrefix(rel, referenceDirs)
		f.Assets = f.Assets || hasAnyPrefix(rel, assetDirs)
	}
	return f
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func stringField(h map[string]any, key string) string {
	v, ok := h[key]
	if !ok || v == nil {
		return ""
	}
	switch v.(type) {
	case map[string]any, []any:
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func optionalField(h map[string]any, key string) *string {
	s := stringField(h, key)
	if s == "" {
		return nil
	}
	return &s
}

// listField accepts a YAML sequence or a comma separated string.
func listField(h map[string]any, key string) []string {
	switch v := h[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	case string:
		return strings.Split(v, ",")
	default:
		return nil
	}
}

func metadataField(h map[string]any) map[string]any {
	m, ok := normalize(h["metadata"]).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

// normalize converts nested YAML values into shapes encoding/json accepts.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

// SkillDocuments returns the paths of p's tree that match its skill pattern,
// sorted.
func SkillDocuments(p types.ProviderDescriptor, entries []types.TreeEntry) []string {
	var docs []string
	for _, e := range entries {
		if e.IsFile() && provider.IsSkillDocument(p, e.Path) {
			docs = append(docs, e.Path)
		}
	}
	sort.Strings(docs)
	return docs
}
