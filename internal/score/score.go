// Package score computes the quality score and maintenance tier of a skill.
package score

import (
	"time"

	"github.com/smy-101/skillcatalog/internal/types"
)

const (
	// Min and Max bound every quality score.
	Min = 5
	Max = 100

	docPoints            = 10
	officialTrustPoints  = 20
	communityTrustPoints = 10
)

// Input is everything the score depends on.
type Input struct {
	LastUpdated   *time.Time
	HasScripts    bool
	HasReferences bool
	HasAssets     bool
	TrustTier     types.TrustTier
}

// Result is the outcome of Compute.
type Result struct {
	Quality     int
	Maintenance types.MaintenanceStatus
}

// Compute scores in relative to now. A missing timestamp is treated as the
// oldest tier; a timestamp in the future counts as updated today.
func Compute(in Input, now time.Time) Result {
	status, maintenance := Maintenance(in.LastUpdated, now)

	docs := 0
	for _, present := range []bool{in.HasScripts, in.HasReferences, in.HasAssets} {
		if present {
			docs += docPoints
		}
	}

	trust := communityTrustPoints
	if in.TrustTier == types.TrustOfficial {
		trust = officialTrustPoints
	}

	return Result{Quality: maintenance + docs + trust, Maintenance: status}
}

// Maintenance returns the recency tier and its points.
//
//	< 30 days   active      50
//	< 180 days  maintained  40
//	< 365 days  stale       20
//	otherwise   abandoned    5
func Maintenance(lastUpdated *time.Time, now time.Time) (types.MaintenanceStatus, int) {
	if lastUpdated == nil {
		return types.MaintenanceAbandoned, 5
	}

	days := int(now.Sub(*lastUpdated) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}

	switch {
	case days < 30:
		return types.MaintenanceActive, 50
	case days < 180:
		return types.MaintenanceMaintained, 40
	case days < 365:
		return types.MaintenanceStale, 20
	default:
		return types.MaintenanceAbandoned, 5
	}
}

// Apply recomputes the score fields of record in place.
func Apply(record *types.SkillRecord, tier types.TrustTier, now time.Time) {
	res := Compute(Input{
		LastUpdated:   record.LastUpdatedAt,
		HasScripts:    record.HasScripts,
		HasReferences: record.HasReferences,
		HasAssets:     record.HasAssets,
		TrustTier:     tier,
	}, now)
	record.QualityScore = res.Quality
	record.MaintenanceStatus = res.Maintenance
}
