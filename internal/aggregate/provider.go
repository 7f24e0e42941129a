package aggregate

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/smy-101/skillcatalog/internal/catalog"
	"github.com/smy-101/skillcatalog/internal/logger"
	"github.com/smy-101/skillcatalog/internal/parser"
	"github.com/smy-101/skillcatalog/internal/state"
	"github.com/smy-101/skillcatalog/internal/types"
)

type providerStatus int

const (
	statusProcessed providerStatus = iota
	statusSkipped
	statusFailed
)

// providerResult is what one worker hands back after the barrier.
type providerResult struct {
	provider      types.ProviderDescriptor
	status        providerStatus
	head          string
	records       []types.SkillRecord
	info          *catalog.ProviderInfo
	parseFailures int
	fetchFailures int
	err           error
}

// processProvider decides whether p changed and either reuses its records from
// the previous catalog or fetches and parses it again. A provider the previous
// catalog does not know is always processed.
func (a *Aggregator) processProvider(ctx context.Context, p types.ProviderDescriptor, detector state.Detector, previous []types.SkillRecord, cached bool) providerResult {
	ctx = logger.WithFields(ctx, logrus.Fields{"provider": p.ID})
	log := logger.G(ctx)
	res := providerResult{provider: p}

	head, err := a.heads.HeadRevision(ctx, p)
	if err != nil {
		log.WithError(err).Warn("could not resolve head revision, processing anyway")
		head = ""
	}
	res.head = head

	if cached && !detector.NeedsProcessing(p.ID, head) {
		log.WithField("head", head).Debug("provider unchanged, reusing previous records")
		res.status = statusSkipped
		res.records = reuse(previous)
		res.info = a.repoInfo(ctx, p)
		return res
	}

	tree, err := a.source.FetchTree(ctx, p)
	if err != nil {
		log.WithError(err).Error("failed to fetch provider tree")
		res.status = statusFailed
		res.err = &ProviderError{Provider: p.ID, Stage: StageTree, Err: err}
		res.records = reuse(previous)
		return res
	}

	files := make([]string, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		if e.IsFile() {
			files = append(files, e.Path)
		}
	}

	docs := parser.SkillDocuments(p, tree.Entries)
	log.WithField("documents", len(docs)).Debug("found skill documents")

	for _, doc := range docs {
		rec, err := a.parseDocument(ctx, p, doc, files)
		if err != nil {
			if errors.Is(err, parser.ErrParse) {
				res.parseFailures++
			} else {
				res.fetchFailures++
			}
			continue
		}
		rec.Source.CommitSHA = tree.SHA
		res.records = append(res.records, *rec)
	}

	res.status = statusProcessed
	res.info = a.repoInfo(ctx, p)
	log.WithFields(logrus.Fields{
		"skills":         len(res.records),
		"parse_failures": res.parseFailures,
		"fetch_failures": res.fetchFailures,
	}).Info("provider processed")
	return res
}

func (a *Aggregator) parseDocument(ctx context.Context, p types.ProviderDescriptor, doc string, files []string) (*types.SkillRecord, error) {
	log := logger.G(ctx).WithField("path", doc)

	raw, err := a.source.FetchRaw(ctx, p, doc)
	if err != nil {
		log.WithError(err).Warn("failed to fetch skill document, skipping")
		return nil, err
	}

	rec, err := parser.ParseSkill(p, doc, raw, files)
	if err != nil {
		log.WithError(err).Warn("invalid skill document, skipping")
		return nil, err
	}

	if a.opts.FetchLastUpdated {
		ts, err := a.source.FetchLastUpdated(ctx, p, doc)
		if err != nil {
			log.WithError(err).Warn("failed to fetch last update date")
		} else {
			rec.LastUpdatedAt = ts
		}
	}
	return rec, nil
}

func (a *Aggregator) repoInfo(ctx context.Context, p types.ProviderDescriptor) *catalog.ProviderInfo {
	if !a.opts.FetchRepoInfo {
		return nil
	}
	info, err := a.source.FetchRepoInfo(ctx, p)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to fetch repository info")
		return nil
	}
	stars := info.Stars
	return &catalog.ProviderInfo{Stars: &stars, Description: info.Description}
}

// reuse copies previous records so the derived fields can be recomputed
// without touching the previous catalog.
func reuse(previous []types.SkillRecord) []types.SkillRecord {
	if len(previous) == 0 {
		return nil
	}
	out := make([]types.SkillRecord, len(previous))
	copy(out, previous)
	return out
}
