// Package similar finds alternative implementations of the same capability
// across providers.
//
// The score of a pair is
//
//	CategoryWeight * [same category]
//	+ TagWeight     * |tags A ∩ tags B| / |tags A ∪ tags B|
//	+ KeywordWeight * |words A ∩ words B| / |words A ∪ words B|
//
// where words are the keywords of name and description. Only pairs from
// different providers are compared.
package similar

import (
	"math"
	"sort"
	"strings"

	"github.com/smy-101/skillcatalog/internal/classify"
	"github.com/smy-101/skillcatalog/internal/types"
	"github.com/sourcegraph/conc/iter"
)

// Options are the tunable heuristics of the detector.
type Options struct {
	CategoryWeight float64
	TagWeight      float64
	KeywordWeight  float64
	Threshold      float64
	MaxResults     int
}

// DefaultOptions returns the built-in weights.
func DefaultOptions() Options {
	return Options{
		CategoryWeight: 0.3,
		TagWeight:      0.4,
		KeywordWeight:  0.3,
		Threshold:      0.35,
		MaxResults:     5,
	}
}

type Detector struct {
	opts Options
}

func New(opts Options) *Detector {
	return &Detector{opts: opts}
}

// profile is the precomputed view of one skill.
type profile struct {
	id       string
	provider string
	category string
	tags     map[string]struct{}
	words    map[string]struct{}
}

func newProfile(r *types.SkillRecord) profile {
	tags := make(map[string]struct{}, len(r.Tags))
	for _, t := range r.Tags {
		tags[strings.ToLower(t)] = struct{}{}
	}
	words := make(map[string]struct{})
	for _, w := range classify.Keywords(r.Name + " " + r.Description) {
		words[w] = struct{}{}
	}
	return profile{id: r.ID, provider: r.Provider, category: r.Category, tags: tags, words: words}
}

// Score returns the rounded similarity of a and b. It does not apply the
// provider restriction or the threshold.
func (d *Detector) Score(a, b *types.SkillRecord) float64 {
	return d.score(newProfile(a), newProfile(b))
}

func (d *Detector) score(a, b profile) float64 {
	s := 0.0
	if a.category != "" && a.category == b.category {
		s += d.opts.CategoryWeight
	}
	s += d.opts.TagWeight * jaccard(a.tags, b.tags)
	s += d.opts.KeywordWeight * jaccard(a.words, b.words)
	return math.Min(1, math.Round(s*1000)/1000)
}

// Detect fills SimilarSkills of every record. It needs the complete set of
// records of the run.
func (d *Detector) Detect(records []types.SkillRecord) {
	profiles := make([]profile, len(records))
	for i := range records {
		profiles[i] = newProfile(&records[i])
	}

	candidates := d.candidates(profiles)

	results := make([][]types.SimilarSkill, len(records))
	iter.ForEachIdx(results, func(i int, out *[]types.SimilarSkill) {
		*out = d.rank(i, profiles, candidates(i))
	})

	for i := range records {
		records[i].SimilarSkills = results[i]
	}
}

// candidates returns, per skill index, the indexes worth scoring. Skills that
// share neither category nor a tag can only score through keyword overlap, so
// bucketing is exact while KeywordWeight stays below the threshold.
func (d *Detector) candidates(profiles []profile) func(int) []int {
	if d.opts.KeywordWeight >= d.opts.Threshold {
		all := make([]int, len(profiles))
		for i := range all {
			all[i] = i
		}
		return func(int) []int { return all }
	}

	buckets := make(map[string][]int)
	for i, p := range profiles {
		if p.category != "" {
			buckets["c:"+p.category] = append(buckets["c:"+p.category], i)
		}
		for t := range p.tags {
			buckets["t:"+t] = append(buckets["t:"+t], i)
		}
	}

	return func(i int) []int {
		p := profiles[i]
		seen := make(map[int]bool)
		var out []int
		collect := func(key string) {
			for _, j := range buckets[key] {
				if !seen[j] {
					seen[j] = true
					out = append(out, j)
				}
			}
		}
		if p.category != "" {
			collect("c:" + p.category)
		}
		for t := range p.tags {
			collect("t:" + t)
		}
		return out
	}
}

func (d *Detector) rank(i int, profiles []profile, candidates []int) []types.SimilarSkill {
	self := profiles[i]
	out := []types.SimilarSkill{}

	for _, j := range candidates {
		other := profiles[j]
		if j == i || other.id == self.id || other.provider == self.provider {
			continue
		}
		s := d.score(self, other)
		if s <= 0 || s < d.opts.Threshold {
			continue
		}
		out = append(out, types.SimilarSkill{ID: other.id, Score: s})
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].ID < out[b].ID
	})

	if d.opts.MaxResults >= 0 && len(out) > d.opts.MaxResults {
		out = out[:d.opts.MaxResults]
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
