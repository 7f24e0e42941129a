package aggregate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smy-101/skillcatalog/internal/catalog"
	"github.com/smy-101/skillcatalog/internal/fetch"
	"github.com/smy-101/skillcatalog/internal/provider"
	"github.com/smy-101/skillcatalog/internal/similar"
	"github.com/smy-101/skillcatalog/internal/state"
	"github.com/smy-101/skillcatalog/internal/toon"
	"github.com/smy-101/skillcatalog/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	sha     string
	files   map[string]string
	treeErr error
	rawErrs map[string]error
	updated time.Time
}

type fakeSource struct {
	mu        sync.Mutex
	repos     map[string]*fakeRepo
	treeCalls map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{repos: map[string]*fakeRepo{}, treeCalls: map[string]int{}}
}

func (f *fakeSource) repo(id string) *fakeRepo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.repos[id]
}

func (f *fakeSource) FetchTree(_ context.Context, p types.ProviderDescriptor) (*types.RemoteTree, error) {
	f.mu.Lock()
	f.treeCalls[p.ID]++
	f.mu.Unlock()

	r := f.repo(p.ID)
	if r == nil {
		return nil, errors.New("no such repo")
	}
	if r.treeErr != nil {
		return nil, r.treeErr
	}
	tree := &types.RemoteTree{SHA: r.sha}
	for path := range r.files {
		tree.Entries = append(tree.Entries, types.TreeEntry{Path: path, Type: "blob"})
	}
	return tree, nil
}

func (f *fakeSource) FetchRaw(_ context.Context, p types.ProviderDescriptor, path string) ([]byte, error) {
	r := f.repo(p.ID)
	f.mu.Lock()
	rawErr := r.rawErrs[path]
	f.mu.Unlock()
	if rawErr != nil {
		return nil, rawErr
	}
	body, ok := r.files[path]
	if !ok {
		return nil, &fetch.FetchError{Kind: fetch.ErrorKindPermanent, URL: path, Message: "not found"}
	}
	return []byte(body), nil
}

func (f *fakeSource) FetchLastUpdated(_ context.Context, p types.ProviderDescriptor, _ string) (*time.Time, error) {
	ts := f.repo(p.ID).updated
	return &ts, nil
}

func (f *fakeSource) FetchRepoInfo(_ context.Context, p types.ProviderDescriptor) (*fetch.RepoInfo, error) {
	return &fetch.RepoInfo{Stars: 42, Description: p.Name + " skills"}, nil
}

func (f *fakeSource) calls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.treeCalls[id]
}

type fakeHeads struct {
	mu    sync.Mutex
	heads map[string]string
}

func (h *fakeHeads) HeadRevision(_ context.Context, p types.ProviderDescriptor) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	head, ok := h.heads[p.ID]
	if !ok {
		return "", errors.New("unreachable")
	}
	return head, nil
}

func (h *fakeHeads) set(id, head string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.heads[id] = head
}

func skillDoc(name, description string) string {
	return fmt.Sprintf("---\nname: %s\ndescription: %s\nlicense: MIT\n---\n# %s\n", name, description, name)
}

type fixture struct {
	dir      string
	source   *fakeSource
	heads    *fakeHeads
	registry *provider.Registry
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	registry, err := provider.New([]types.ProviderDescriptor{
		{
			ID:         "alpha",
			Name:       "Alpha",
			RepoURL:    "https://github.com/alpha/skills",
			TreeAPIURL: "https://api.github.com/repos/alpha/skills/git/trees/main?recursive=1",
			RawBaseURL: "https://raw.githubusercontent.com/alpha/skills/main",
			PathPrefix: "skills/",
			TrustTier:  types.TrustOfficial,
		},
		{
			ID:         "beta",
			Name:       "Beta",
			RepoURL:    "https://github.com/beta/skills",
			TreeAPIURL: "https://api.github.com/repos/beta/skills/git/trees/main?recursive=1",
			RawBaseURL: "https://raw.githubusercontent.com/beta/skills/main",
			TrustTier:  types.TrustCommunity,
		},
	})
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	source := newFakeSource()
	source.repos["alpha"] = &fakeRepo{
		sha: "tree-alpha-1",
		files: map[string]string{
			"skills/pdf/SKILL.md":           skillDoc("pdf", "Extract text and tables from PDF documents"),
			"skills/pdf/scripts/run.py":     "print()",
			"skills/review/SKILL.md":        skillDoc("code-review", "Review pull requests for bugs and style issues"),
			"skills/review/references/a.md": "ref",
			"README.md":                     "# alpha",
		},
		updated: now.Add(-10 * 24 * time.Hour),
	}
	source.repos["beta"] = &fakeRepo{
		sha: "tree-beta-1",
		files: map[string]string{
			"pdf/SKILL.md": skillDoc("pdf", "Extract text and tables from PDF documents"),
		},
		updated: now.Add(-200 * 24 * time.Hour),
	}

	return &fixture{
		dir:      t.TempDir(),
		source:   source,
		heads:    &fakeHeads{heads: map[string]string{"alpha": "a1", "beta": "b1"}},
		registry: registry,
		now:      now,
	}
}

func (f *fixture) aggregator(full bool, mutate ...func(*Options)) *Aggregator {
	opts := Options{
		Full:             full,
		OutputDir:        f.dir,
		ChangelogFile:    filepath.Join(f.dir, "CHANGELOG.md"),
		Workers:          2,
		FetchLastUpdated: true,
		FetchRepoInfo:    true,
		Similarity:       similar.DefaultOptions(),
		Toon:             toon.Chain{toon.NativeEncoder{}},
		Now:              func() time.Time { return f.now },
	}
	for _, m := range mutate {
		m(&opts)
	}
	return New(f.registry, f.source, f.heads, nil, opts)
}

func (f *fixture) read(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	require.NoError(t, err)
	return data
}

func TestRunFullBuildsCatalog(t *testing.T) {
	f := newFixture(t)

	stats, err := f.aggregator(true).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 3, stats.Skills)
	assert.Equal(t, "2026.03.10", stats.Version)
	assert.Equal(t, "native", stats.ToonEncoder)
	assert.NotEmpty(t, stats.RunID)

	cat, err := catalog.Decode(f.read(t, CatalogFile))
	require.NoError(t, err)
	assert.Equal(t, 3, cat.TotalSkills)
	assert.Equal(t, 2, cat.Providers["alpha"].SkillsCount)
	require.NotNil(t, cat.Providers["alpha"].Stars)
	assert.Equal(t, 42, *cat.Providers["alpha"].Stars)

	ids := make([]string, 0, len(cat.Skills))
	for _, s := range cat.Skills {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"alpha/code-review", "alpha/pdf", "beta/pdf"}, ids)

	alphaPDF := cat.Skills[1]
	assert.True(t, alphaPDF.HasScripts)
	assert.Equal(t, "tree-alpha-1", alphaPDF.Source.CommitSHA)
	assert.Equal(t, types.MaintenanceActive, alphaPDF.MaintenanceStatus)
	require.NotEmpty(t, alphaPDF.SimilarSkills)
	assert.Equal(t, "beta/pdf", alphaPDF.SimilarSkills[0].ID)
	assert.Empty(t, cat.Skills[0].SimilarSkills, "no cross-provider counterpart")

	assert.Equal(t, f.read(t, CatalogToonFile), f.read(t, CatalogMinToonFile))
	assert.Contains(t, string(f.read(t, "CHANGELOG.md")), "## [2026.03.10]")

	st, err := state.Load(filepath.Join(f.dir, ".aggregation-state.json"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"alpha": "a1", "beta": "b1"}, st.ProviderCommits)
	assert.Equal(t, "2026.03.10", st.Version)
	assert.Equal(t, 3, st.SkillsCount)
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t)

	_, err := f.aggregator(true).Run(context.Background())
	require.NoError(t, err)
	first := f.read(t, CatalogFile)
	firstMin := f.read(t, CatalogMinFile)
	firstLog := f.read(t, "CHANGELOG.md")

	f.now = f.now.Add(time.Hour)
	stats, err := f.aggregator(true).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Unchanged)
	assert.Equal(t, "2026.03.10", stats.Version)

	assert.Equal(t, first, f.read(t, CatalogFile))
	assert.Equal(t, firstMin, f.read(t, CatalogMinFile))
	assert.Equal(t, firstLog, f.read(t, "CHANGELOG.md"))
}

func TestRunIncrementalSkipsUnchangedProviders(t *testing.T) {
	f := newFixture(t)

	_, err := f.aggregator(true).Run(context.Background())
	require.NoError(t, err)
	full := f.read(t, CatalogFile)

	stats, err := f.aggregator(false).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 0, stats.Processed)
	assert.Equal(t, 1, f.source.calls("alpha"), "skipped providers are not fetched")
	assert.Equal(t, full, f.read(t, CatalogFile))
}

func TestRunIncrementalReprocessesChangedProvider(t *testing.T) {
	f := newFixture(t)

	_, err := f.aggregator(true).Run(context.Background())
	require.NoError(t, err)

	beta := f.source.repo("beta")
	beta.sha = "tree-beta-2"
	beta.files["docx/SKILL.md"] = skillDoc("docx", "Create and edit Word documents")
	f.heads.set("beta", "b2")

	stats, err := f.aggregator(false).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 4, stats.Skills)
	assert.Equal(t, "2026.03.10.001", stats.Version)
	assert.Equal(t, 1, f.source.calls("alpha"))
	assert.Equal(t, 2, f.source.calls("beta"))

	log := string(f.read(t, "CHANGELOG.md"))
	assert.Contains(t, log, "## [2026.03.10.001]")
	assert.Contains(t, log, "beta/docx")
}

func TestRunExcludesInvalidDocuments(t *testing.T) {
	f := newFixture(t)
	f.source.repo("beta").files["broken/SKILL.md"] = "---\nname: broken\n---\nno description"

	stats, err := f.aggregator(true).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ParseFailures)
	assert.Equal(t, 3, stats.Skills)

	cat, err := catalog.Decode(f.read(t, CatalogFile))
	require.NoError(t, err)
	for _, s := range cat.Skills {
		assert.NotEqual(t, "beta/broken", s.ID)
	}
}

func TestRunFailedProviderIsRetriedNextRun(t *testing.T) {
	f := newFixture(t)

	_, err := f.aggregator(true).Run(context.Background())
	require.NoError(t, err)

	f.source.repo("alpha").treeErr = errors.New("connection reset")
	f.heads.set("alpha", "a2")

	stats, err := f.aggregator(false).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Skipped)
	require.Error(t, stats.Errors)
	assert.True(t, errors.Is(stats.Errors, &ProviderError{Stage: StageTree}))
	assert.Equal(t, 3, stats.Skills, "previous snapshot of the failed provider is kept")

	st, err := state.Load(filepath.Join(f.dir, ".aggregation-state.json"))
	require.NoError(t, err)
	_, ok := st.ProviderCommits["alpha"]
	assert.False(t, ok)
	assert.Equal(t, "b1", st.ProviderCommits["beta"])
}

func TestRunIncompleteProviderIsRetriedNextRun(t *testing.T) {
	f := newFixture(t)
	f.source.repo("alpha").rawErrs = map[string]error{
		"skills/review/SKILL.md": &fetch.FetchError{Kind: fetch.ErrorKindTransient, URL: "skills/review/SKILL.md", Message: "timeout"},
	}

	stats, err := f.aggregator(true).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.FetchFailures)
	assert.Equal(t, 2, stats.Skills)

	st, err := state.Load(filepath.Join(f.dir, ".aggregation-state.json"))
	require.NoError(t, err)
	_, ok := st.ProviderCommits["alpha"]
	assert.False(t, ok, "incomplete provider keeps no head")
	assert.Equal(t, "b1", st.ProviderCommits["beta"])

	alpha := f.source.repo("alpha")
	f.source.mu.Lock()
	alpha.rawErrs = nil
	f.source.mu.Unlock()

	stats, err = f.aggregator(false).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 3, stats.Skills, "incremental run matches a full run")

	st, err = state.Load(filepath.Join(f.dir, ".aggregation-state.json"))
	require.NoError(t, err)
	assert.Equal(t, "a1", st.ProviderCommits["alpha"])
}

func TestRunAllProvidersFailing(t *testing.T) {
	f := newFixture(t)
	f.source.repo("alpha").treeErr = errors.New("boom")
	f.source.repo("beta").treeErr = errors.New("boom")

	stats, err := f.aggregator(true).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoProviders))
	assert.Equal(t, 2, stats.Failed)

	_, statErr := os.Stat(filepath.Join(f.dir, CatalogFile))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(f.dir, ".aggregation-state.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunUnknownHeadIsProcessed(t *testing.T) {
	f := newFixture(t)

	_, err := f.aggregator(true).Run(context.Background())
	require.NoError(t, err)

	delete(f.heads.heads, "beta")
	stats, err := f.aggregator(false).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 2, f.source.calls("beta"))

	st, err := state.Load(filepath.Join(f.dir, ".aggregation-state.json"))
	require.NoError(t, err)
	assert.Equal(t, "b1", st.ProviderCommits["beta"])
}

func TestRunDryRunWritesNothing(t *testing.T) {
	f := newFixture(t)

	stats, err := f.aggregator(true, func(o *Options) { o.DryRun = true }).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, stats.Diff, "+++")
	assert.Contains(t, stats.Diff, "alpha/pdf")
	assert.Empty(t, stats.Written)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiff(t *testing.T) {
	dir := t.TempDir()

	out, err := Diff(filepath.Join(dir, "missing.json"), []byte("{}\n"))
	require.NoError(t, err)
	assert.Contains(t, out, "+{}")

	_, err = Diff(dir, []byte("{}\n"))
	require.Error(t, err, "unreadable current file is reported, not diffed as empty")
}

func TestRunWithoutToon(t *testing.T) {
	f := newFixture(t)

	_, err := f.aggregator(true, func(o *Options) { o.Toon = nil }).Run(context.Background())
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(f.dir, CatalogToonFile))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunAppliesOverlay(t *testing.T) {
	f := newFixture(t)

	_, err := f.aggregator(true, func(o *Options) {
		o.Overlay = catalog.Overlay{
			"beta/pdf":    {DuplicateOf: "alpha/pdf"},
			"beta/absent": {DuplicateOf: "alpha/pdf"},
		}
	}).Run(context.Background())
	require.NoError(t, err)

	cat, err := catalog.Decode(f.read(t, CatalogFile))
	require.NoError(t, err)
	for _, s := range cat.Skills {
		if s.ID == "beta/pdf" {
			assert.Equal(t, "alpha/pdf", s.DuplicateOf)
		} else {
			assert.Empty(t, s.DuplicateOf)
		}
	}
}

func TestProviderErrorIs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ProviderError{Provider: "alpha", Stage: StageTree, Err: errors.New("x")})
	assert.True(t, errors.Is(err, &ProviderError{Stage: StageTree}))
	assert.False(t, errors.Is(err, &ProviderError{Stage: StageHead}))
	assert.Contains(t, err.Error(), "provider alpha: tree: x")
}
