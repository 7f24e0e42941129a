package provider

import (
	"fmt"

	"github.com/smy-101/skillcatalog/internal/types"
)

// Defaults returns a fresh copy of the built-in provider table.
func Defaults() []types.ProviderDescriptor {
	return []types.ProviderDescriptor{
		github("anthropics", "Anthropic", "anthropics", "skills", "skills/", types.TrustOfficial),
		github("openai", "OpenAI", "openai", "skills", "skills/", types.TrustOfficial),
		github("github", "GitHub", "github", "awesome-copilot", "skills/", types.TrustOfficial),
		github("vercel", "Vercel", "vercel-labs", "agent-skills", "skills/", types.TrustOfficial),
		github("huggingface", "HuggingFace", "huggingface", "skills", "skills/", types.TrustOfficial),
		github("skillcreatorai", "SkillCreator.ai", "skillcreatorai", "Ai-Agent-Skills", "skills/", types.TrustCommunity),
	}
}

// github builds the descriptor of a repository hosted on github.com.
func github(id, name, owner, repo, prefix string, tier types.TrustTier) types.ProviderDescriptor {
	return types.ProviderDescriptor{
		ID:         id,
		Name:       name,
		RepoURL:    fmt.Sprintf("https://github.com/%s/%s", owner, repo),
		TreeAPIURL: fmt.Sprintf("https://api.github.com/repos/%s/%s/git/trees/%s?recursive=1", owner, repo, defaultBranch),
		RawBaseURL: fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s", owner, repo, defaultBranch),
		PathPrefix: prefix,
		TrustTier:  tier,
		Branch:     defaultBranch,
	}
}
