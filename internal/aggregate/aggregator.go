// Package aggregate runs the catalog pipeline end to end.
//
// A run works in phases:
//  1. Every provider is handled by a bounded worker pool: its head revision
//     gates whether it is fetched and parsed again or reused from the previous
//     catalog.
//  2. After all workers finish, category and scores are derived per skill in
//     parallel, then similarity is computed across the full set.
//  3. The catalog is assembled, validated and serialized; all artifacts and
//     finally the state file are published together.
//
// A failed run publishes nothing.
package aggregate

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/smy-101/skillcatalog/internal/catalog"
	"github.com/smy-101/skillcatalog/internal/changelog"
	"github.com/smy-101/skillcatalog/internal/classify"
	"github.com/smy-101/skillcatalog/internal/fetch"
	"github.com/smy-101/skillcatalog/internal/fileutil"
	"github.com/smy-101/skillcatalog/internal/logger"
	"github.com/smy-101/skillcatalog/internal/provider"
	"github.com/smy-101/skillcatalog/internal/score"
	"github.com/smy-101/skillcatalog/internal/similar"
	"github.com/smy-101/skillcatalog/internal/state"
	"github.com/smy-101/skillcatalog/internal/toon"
	"github.com/smy-101/skillcatalog/internal/types"
	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/pool"
)

// Artifact names inside the output directory.
const (
	CatalogFile        = "catalog.json"
	CatalogMinFile     = "catalog.min.json"
	CatalogToonFile    = "catalog.toon"
	CatalogMinToonFile = "catalog.min.toon"
)

// Source is the remote access the pipeline needs. *fetch.Client implements it.
type Source interface {
	FetchTree(ctx context.Context, p types.ProviderDescriptor) (*types.RemoteTree, error)
	FetchRaw(ctx context.Context, p types.ProviderDescriptor, path string) ([]byte, error)
	FetchLastUpdated(ctx context.Context, p types.ProviderDescriptor, path string) (*time.Time, error)
	FetchRepoInfo(ctx context.Context, p types.ProviderDescriptor) (*fetch.RepoInfo, error)
}

// Options configures a run.
type Options struct {
	Full             bool
	OutputDir        string
	StateFile        string
	ChangelogFile    string
	Workers          int
	FetchLastUpdated bool
	FetchRepoInfo    bool
	SchemaURL        string
	Similarity       similar.Options
	// Toon is tried in order; nil disables TOON output.
	Toon    toon.Chain
	Overlay catalog.Overlay
	DryRun  bool
	Now     func() time.Time
}

// Stats summarises a run.
type Stats struct {
	RunID         string
	Version       string
	Providers     int
	Processed     int
	Skipped       int
	Failed        int
	Skills        int
	ParseFailures int
	FetchFailures int
	Unchanged     bool
	ToonEncoder   string
	Written       []string
	Diff          string
	Duration      time.Duration
	// Errors aggregates provider failures. They never fail the run on their own.
	Errors error
}

type Aggregator struct {
	registry   *provider.Registry
	source     Source
	heads      fetch.HeadResolver
	classifier classify.Classifier
	opts       Options
}

// New creates an aggregator. A nil classifier means classify.Default().
func New(registry *provider.Registry, source Source, heads fetch.HeadResolver, classifier classify.Classifier, opts Options) *Aggregator {
	if classifier == nil {
		classifier = classify.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Similarity == (similar.Options{}) {
		opts.Similarity = similar.DefaultOptions()
	}
	if opts.StateFile == "" {
		opts.StateFile = filepath.Join(opts.OutputDir, ".aggregation-state.json")
	}
	return &Aggregator{
		registry:   registry,
		source:     source,
		heads:      heads,
		classifier: classifier,
		opts:       opts,
	}
}

// Run executes the pipeline once.
func (a *Aggregator) Run(ctx context.Context) (*Stats, error) {
	start := a.opts.Now()
	stats := &Stats{RunID: uuid.NewString(), Providers: a.registry.Len()}
	ctx = logger.WithFields(ctx, logrus.Fields{"run_id": stats.RunID})
	log := logger.G(ctx)

	prevState, err := state.Load(a.opts.StateFile)
	if err != nil {
		log.WithError(err).Warn("ignoring unreadable state, processing every provider")
		prevState = state.New()
	}
	prevCatalog, err := catalog.Load(filepath.Join(a.opts.OutputDir, CatalogFile))
	if err != nil {
		log.WithError(err).Warn("ignoring unreadable previous catalog")
		prevCatalog = nil
	}

	log.WithFields(logrus.Fields{
		"providers": stats.Providers,
		"full":      a.opts.Full,
		"workers":   a.opts.Workers,
	}).Info("starting aggregation")

	results := a.collect(ctx, prevState, prevCatalog)
	records, info, outcome := a.merge(ctx, results, stats)

	if stats.Processed+stats.Skipped == 0 {
		return stats, fmt.Errorf("%w: %d of %d providers failed", ErrNoProviders, stats.Failed, stats.Providers)
	}

	cat, dropped := catalog.Assemble(catalog.Input{
		Providers:  a.registry.List(),
		Skills:     records,
		Info:       info,
		Categories: a.classifier.Categories(),
		Schema:     a.opts.SchemaURL,
	})
	for _, id := range dropped {
		log.WithField("skill", id).Warn("dropping duplicate skill id")
	}

	a.derive(cat.Skills, start)
	similar.New(a.opts.Similarity).Detect(cat.Skills)
	for _, id := range a.opts.Overlay.Apply(cat.Skills) {
		log.WithField("skill", id).Warn("ignoring overlay entry for unknown skill")
	}

	hash, err := catalog.ContentHash(cat)
	if err != nil {
		return stats, err
	}
	a.stamp(cat, hash, prevState, prevCatalog, start, stats)

	if err := catalog.Validate(cat, catalog.Rules{
		Categories: a.classifier.Categories(),
		MaxSimilar: a.opts.Similarity.MaxResults,
		Threshold:  a.opts.Similarity.Threshold,
	}); err != nil {
		return stats, err
	}
	stats.Skills = cat.TotalSkills
	stats.Version = cat.Version

	next := state.Advance(prevState, outcome, cat.TotalSkills, cat.Version, hash, start)
	if err := a.publish(ctx, cat, prevCatalog, next, stats); err != nil {
		return stats, err
	}

	stats.Duration = a.opts.Now().Sub(start)
	log.WithFields(logrus.Fields{
		"version":   stats.Version,
		"skills":    stats.Skills,
		"processed": stats.Processed,
		"skipped":   stats.Skipped,
		"failed":    stats.Failed,
		"unchanged": stats.Unchanged,
	}).Info("aggregation finished")
	return stats, nil
}

// collect runs every provider through the worker pool and waits for all of them.
func (a *Aggregator) collect(ctx context.Context, prevState *types.AggregationState, prevCatalog *types.Catalog) []providerResult {
	detector := state.Detector{Full: a.opts.Full, State: prevState}
	previous := catalog.SkillsByProvider(prevCatalog)

	providers := a.registry.List()
	results := make([]providerResult, len(providers))

	known := prevProviders(prevCatalog)

	p := pool.New().WithMaxGoroutines(a.opts.Workers)
	for i, prov := range providers {
		_, cached := known[prov.ID]
		p.Go(func() {
			results[i] = a.processProvider(ctx, prov, detector, previous[prov.ID], cached)
		})
	}
	p.Wait()
	return results
}

// merge folds provider results into one record list, provider info and the
// state outcome.
func (a *Aggregator) merge(ctx context.Context, results []providerResult, stats *Stats) ([]types.SkillRecord, map[string]catalog.ProviderInfo, state.Outcome) {
	var (
		records []types.SkillRecord
		errs    *multierror.Error
	)
	info := make(map[string]catalog.ProviderInfo)
	outcome := state.Outcome{Heads: map[string]string{}}

	for _, r := range results {
		outcome.Registered = append(outcome.Registered, r.provider.ID)
		stats.ParseFailures += r.parseFailures
		stats.FetchFailures += r.fetchFailures

		switch r.status {
		case statusProcessed:
			stats.Processed++
			if r.fetchFailures > 0 {
				logger.G(ctx).WithField("provider", r.provider.ID).
					WithField("fetch_failures", r.fetchFailures).
					Warn("provider incomplete, it will be processed again next run")
				outcome.Incomplete = append(outcome.Incomplete, r.provider.ID)
			} else if r.head != "" {
				outcome.Heads[r.provider.ID] = r.head
			}
		case statusSkipped:
			stats.Skipped++
		case statusFailed:
			stats.Failed++
			outcome.Failed = append(outcome.Failed, r.provider.ID)
			errs = multierror.Append(errs, r.err)
			if len(r.records) > 0 {
				logger.G(ctx).WithField("provider", r.provider.ID).
					WithField("skills", len(r.records)).
					Warn("keeping previous snapshot of failed provider")
			}
		}

		records = append(records, r.records...)
		if r.info != nil {
			info[r.provider.ID] = *r.info
		}
	}

	stats.Errors = errs.ErrorOrNil()
	return records, info, outcome
}

// derive recomputes category and scores of every record and clears what the
// similarity pass and overlay fill in afterwards.
func (a *Aggregator) derive(records []types.SkillRecord, now time.Time) {
	iter.ForEach(records, func(r *types.SkillRecord) {
		p, _ := a.registry.Get(r.Provider)
		r.Category = a.classifier.Categorize(r.Name, r.Description)
		score.Apply(r, p.TrustTier, now)
		r.SimilarSkills = nil
		r.DuplicateOf = ""
	})
}

// stamp picks version and generation time. Content identical to the previous
// run keeps the previous stamp so the output is byte-identical.
func (a *Aggregator) stamp(cat *types.Catalog, hash string, prevState *types.AggregationState, prevCatalog *types.Catalog, now time.Time, stats *Stats) {
	if prevCatalog != nil && prevState.ContentHash == hash && prevCatalog.Version != "" && prevCatalog.Version == prevState.Version {
		catalog.Stamp(cat, prevCatalog.Version, prevCatalog.GeneratedAt)
		stats.Unchanged = true
		return
	}

	prev := prevState.Version
	if prevCatalog != nil && catalog.CompareVersions(prevCatalog.Version, prev) > 0 {
		prev = prevCatalog.Version
	}
	catalog.Stamp(cat, catalog.NextVersion(prev, now), now)
}

// publish writes every artifact, state last. In dry-run mode it only fills
// stats.Diff.
func (a *Aggregator) publish(ctx context.Context, cat, prevCatalog *types.Catalog, next *types.AggregationState, stats *Stats) error {
	log := logger.G(ctx)

	min, err := catalog.MarshalMin(cat)
	if err != nil {
		return err
	}
	pretty := catalog.Pretty(min)
	catalogPath := filepath.Join(a.opts.OutputDir, CatalogFile)

	if a.opts.DryRun {
		stats.Diff, err = Diff(catalogPath, pretty)
		return err
	}

	batch := fileutil.NewBatch(0644)
	batch.Add(catalogPath, pretty)
	batch.Add(filepath.Join(a.opts.OutputDir, CatalogMinFile), min)

	if len(a.opts.Toon) > 0 {
		out, used, err := a.opts.Toon.Encode(ctx, min)
		if err != nil {
			log.WithError(err).Warn("TOON output skipped for this run")
		} else {
			stats.ToonEncoder = used
			batch.Add(filepath.Join(a.opts.OutputDir, CatalogToonFile), out)
			batch.Add(filepath.Join(a.opts.OutputDir, CatalogMinToonFile), out)
		}
	}

	if a.opts.ChangelogFile != "" {
		text, changed, err := changelog.Update(a.opts.ChangelogFile, cat, prevCatalog)
		if err != nil {
			log.WithError(err).Warn("changelog not updated")
		} else if changed {
			batch.Add(a.opts.ChangelogFile, text)
		}
	}

	written, err := batch.Commit()
	stats.Written = written
	if err != nil {
		return fmt.Errorf("failed to publish artifacts: %w", err)
	}

	// State goes last: a crash before this point reprocesses on the next run.
	if err := state.Save(a.opts.StateFile, next); err != nil {
		return err
	}
	stats.Written = append(stats.Written, a.opts.StateFile)
	return nil
}

func prevProviders(c *types.Catalog) map[string]types.ProviderSummary {
	if c == nil {
		return nil
	}
	return c.Providers
}
