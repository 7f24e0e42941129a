package types

import "time"

// TrustTier 来源可信等级
type TrustTier string

const (
	TrustOfficial  TrustTier = "official"
	TrustCommunity TrustTier = "community"
)

// Valid reports whether t is one of the known tiers.
func (t TrustTier) Valid() bool {
	return t == TrustOfficial || t == TrustCommunity
}

// MaintenanceStatus is the recency tier of a skill, best first.
type MaintenanceStatus string

const (
	MaintenanceActive     MaintenanceStatus = "active"
	MaintenanceMaintained MaintenanceStatus = "maintained"
	MaintenanceStale      MaintenanceStatus = "stale"
	MaintenanceAbandoned  MaintenanceStatus = "abandoned"
)

// ProviderDescriptor describes one git-hosted skills repository.
type ProviderDescriptor struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	RepoURL      string    `json:"repo_url" yaml:"repo_url"`
	TreeAPIURL   string    `json:"tree_api_url" yaml:"tree_api_url"`
	RawBaseURL   string    `json:"raw_base_url" yaml:"raw_base_url"`
	PathPrefix   string    `json:"path_prefix" yaml:"path_prefix"`
	TrustTier    TrustTier `json:"trust_tier" yaml:"trust_tier"`
	Branch       string    `json:"branch,omitempty" yaml:"branch,omitempty"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	SkillPattern string    `json:"skill_pattern,omitempty" yaml:"skill_pattern,omitempty"`
}

// TreeEntry GitHub tree API返回的条目
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "blob" / "tree"
	SHA  string `json:"sha,omitempty"`
}

// IsFile reports whether the entry is a file (blob).
func (e TreeEntry) IsFile() bool {
	return e.Type == "blob" || e.Type == "file"
}

// RemoteTree is a provider's full tree listing.
type RemoteTree struct {
	SHA       string
	Truncated bool
	Entries   []TreeEntry
}

// SkillSource points back at where a skill document came from.
type SkillSource struct {
	Repo       string `json:"repo"`
	Path       string `json:"path"`
	SkillMDURL string `json:"skill_md_url"`
	CommitSHA  string `json:"commit_sha,omitempty"`
}

// SimilarSkill is one ranked alternative implementation.
type SimilarSkill struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// SkillRecord 技能目录中的一条记录
type SkillRecord struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	Provider          string            `json:"provider"`
	Category          string            `json:"category"`
	License           *string           `json:"license"`
	Compatibility     *string           `json:"compatibility"`
	LastUpdatedAt     *time.Time        `json:"last_updated_at"`
	Metadata          map[string]any    `json:"metadata"`
	Source            SkillSource       `json:"source"`
	HasScripts        bool              `json:"has_scripts"`
	HasReferences     bool              `json:"has_references"`
	HasAssets         bool              `json:"has_assets"`
	Tags              []string          `json:"tags"`
	QualityScore      int               `json:"quality_score"`
	MaintenanceStatus MaintenanceStatus `json:"maintenance_status"`
	SimilarSkills     []SimilarSkill    `json:"similar_skills"`
	DuplicateOf       string            `json:"duplicate_of,omitempty"`
}

// ProviderSummary is the per-provider entry of the catalog.
type ProviderSummary struct {
	Name        string    `json:"name"`
	Repo        string    `json:"repo"`
	SkillsCount int       `json:"skills_count"`
	TrustTier   TrustTier `json:"trust_tier"`
	Stars       *int      `json:"stars,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Catalog is the published artifact.
type Catalog struct {
	Schema      string                     `json:"$schema,omitempty"`
	Version     string                     `json:"version"`
	GeneratedAt time.Time                  `json:"generated_at"`
	TotalSkills int                        `json:"total_skills"`
	Providers   map[string]ProviderSummary `json:"providers"`
	Categories  []string                   `json:"categories"`
	Skills      []SkillRecord              `json:"skills"`
}

// AggregationState is persisted between runs.
type AggregationState struct {
	LastRun         time.Time         `json:"last_run"`
	ProviderCommits map[string]string `json:"provider_commits"`
	SkillsCount     int               `json:"skills_count"`
	Version         string            `json:"version"`
	ContentHash     string            `json:"content_hash,omitempty"`
}
