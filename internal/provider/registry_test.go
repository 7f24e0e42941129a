package provider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/smy-101/skillcatalog/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDescriptor(id string) types.ProviderDescriptor {
	return types.ProviderDescriptor{
		ID:         id,
		Name:       "Sample " + id,
		RepoURL:    "https://github.com/sample/" + id,
		TreeAPIURL: "https://api.github.com/repos/sample/" + id + "/git/trees/main?recursive=1",
		RawBaseURL: "https://raw.githubusercontent.com/sample/" + id + "/main/",
		PathPrefix: "skills",
		TrustTier:  types.TrustOfficial,
	}
}

func TestDefaultsAreValid(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, len(Defaults()), reg.Len())

	ids := make([]string, 0, reg.Len())
	for _, p := range reg.List() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"anthropics", "openai", "github", "vercel", "huggingface", "skillcreatorai"}, ids)
}

func TestNewFillsDefaults(t *testing.T) {
	reg, err := New([]types.ProviderDescriptor{sampleDescriptor("alpha")})
	require.NoError(t, err)

	p, ok := reg.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "main", p.Branch)
	assert.Equal(t, "skills/", p.PathPrefix)
	assert.Equal(t, "skills/**/SKILL.md", p.SkillPattern)
	assert.Equal(t, "https://raw.githubusercontent.com/sample/alpha/main", p.RawBaseURL)
}

func TestListReturnsCopy(t *testing.T) {
	reg, err := New([]types.ProviderDescriptor{sampleDescriptor("alpha")})
	require.NoError(t, err)

	list := reg.List()
	list[0].Name = "mutated"

	p, _ := reg.Get("alpha")
	assert.Equal(t, "Sample alpha", p.Name)
}

func TestNewRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		input  []types.ProviderDescriptor
		errMsg string
	}{
		{
			name:   "duplicate id",
			input:  []types.ProviderDescriptor{sampleDescriptor("a"), sampleDescriptor("a")},
			errMsg: "duplicate provider id",
		},
		{
			name: "empty id",
			input: []types.ProviderDescriptor{func() types.ProviderDescriptor {
				d := sampleDescriptor("a")
				d.ID = " "
				return d
			}()},
			errMsg: "id cannot be empty",
		},
		{
			name: "unknown tier",
			input: []types.ProviderDescriptor{func() types.ProviderDescriptor {
				d := sampleDescriptor("a")
				d.TrustTier = "verified"
				return d
			}()},
			errMsg: "unknown trust tier",
		},
		{
			name: "bad repo url",
			input: []types.ProviderDescriptor{func() types.ProviderDescriptor {
				d := sampleDescriptor("a")
				d.RepoURL = "https://github.com/only-owner"
				return d
			}()},
			errMsg: "invalid repository URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	content := `providers:
  - id: solo
    name: Solo Skill
    repo_url: https://github.com/someone/solo-skill
    tree_api_url: https://api.github.com/repos/someone/solo-skill/git/trees/main?recursive=1
    raw_base_url: https://raw.githubusercontent.com/someone/solo-skill/main
    path_prefix: ""
    trust_tier: community
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	reg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	p, ok := reg.Get("solo")
	require.True(t, ok)
	assert.Equal(t, "**/SKILL.md", p.SkillPattern)
	assert.True(t, IsSkillDocument(p, "SKILL.md"))
	assert.True(t, IsSkillDocument(p, "pdf/SKILL.md"))
	assert.True(t, IsSkillDocument(p, "office/docx/SKILL.md"))
	assert.False(t, IsSkillDocument(p, "pdf/README.md"))
}

func TestIsSkillDocument(t *testing.T) {
	reg, err := New([]types.ProviderDescriptor{sampleDescriptor("alpha")})
	require.NoError(t, err)
	p, _ := reg.Get("alpha")

	assert.True(t, IsSkillDocument(p, "skills/pdf/SKILL.md"))
	assert.True(t, IsSkillDocument(p, "skills/office/docx/SKILL.md"))
	assert.False(t, IsSkillDocument(p, "skills/pdf/README.md"))
	assert.False(t, IsSkillDocument(p, "other/pdf/SKILL.md"))
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name    string
		rawURL  string
		want    *RepoRef
		wantErr bool
	}{
		{name: "plain", rawURL: "https://github.com/anthropics/skills", want: &RepoRef{Owner: "anthropics", Repo: "skills"}},
		{name: "git suffix", rawURL: "https://github.com/openai/skills.git", want: &RepoRef{Owner: "openai", Repo: "skills"}},
		{name: "extra path", rawURL: "https://github.com/o/r/tree/main/skills", want: &RepoRef{Owner: "o", Repo: "r"}},
		{name: "missing repo", rawURL: "https://github.com/o", wantErr: true},
		{name: "no host", rawURL: "o/r", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRepoURL(tt.rawURL)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRawURLEscapesSegments(t *testing.T) {
	p := types.ProviderDescriptor{RawBaseURL: "https://raw.example.com/o/r/main/"}
	assert.Equal(t, "https://raw.example.com/o/r/main/skills/my%20skill/SKILL.md", RawURL(p, "skills/my skill/SKILL.md"))
}
