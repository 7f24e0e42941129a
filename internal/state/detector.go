package state

import "github.com/smy-101/skillcatalog/internal/types"

// Detector is the change detector gating each provider.
type Detector struct {
	// Full forces every provider to be processed.
	Full  bool
	State *types.AggregationState
}

// NeedsProcessing reports whether the provider must be fetched again given its
// current head revision. An unknown head always needs processing.
func (d Detector) NeedsProcessing(providerID, head string) bool {
	if d.Full || head == "" || d.State == nil {
		return true
	}
	stored, ok := d.State.ProviderCommits[providerID]
	return !ok || stored != head
}
