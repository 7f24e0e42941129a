// Package state persists the cross-run AggregationState and decides which
// providers need processing.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/smy-101/skillcatalog/internal/fileutil"
	"github.com/smy-101/skillcatalog/internal/types"
)

// New returns the state of a first run.
func New() *types.AggregationState {
	return &types.AggregationState{ProviderCommits: map[string]string{}}
}

// Load reads the state file. A missing file yields an empty state.
func Load(path string) (*types.AggregationState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var st types.AggregationState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if st.ProviderCommits == nil {
		st.ProviderCommits = map[string]string{}
	}
	return &st, nil
}

// Encode renders the state as indented JSON.
func Encode(st *types.AggregationState) ([]byte, error) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return append(data, '\n'), nil
}

// Save replaces the state file atomically.
func Save(path string, st *types.AggregationState) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, data, 0644)
}

// Outcome is what one run learned about the providers.
type Outcome struct {
	// Heads holds the head revision of every provider processed successfully.
	Heads map[string]string
	// Failed lists providers whose processing failed this run.
	Failed []string
	// Incomplete lists processed providers that lost documents to fetch errors.
	Incomplete []string
	// Registered lists every provider id currently in the registry.
	Registered []string
}

// Advance builds the state to persist after a run. Processed providers take
// their new head and skipped providers keep the stored one. Failed and
// incomplete providers lose it so the next run retries them. Providers gone
// from the registry are pruned.
func Advance(prev *types.AggregationState, out Outcome, skills int, version, contentHash string, now time.Time) *types.AggregationState {
	failed := make(map[string]bool, len(out.Failed)+len(out.Incomplete))
	for _, id := range out.Failed {
		failed[id] = true
	}
	for _, id := range out.Incomplete {
		failed[id] = true
	}

	commits := make(map[string]string, len(out.Registered))
	for _, id := range out.Registered {
		if failed[id] {
			continue
		}
		if head, ok := out.Heads[id]; ok && head != "" {
			commits[id] = head
			continue
		}
		if prev != nil {
			if head, ok := prev.ProviderCommits[id]; ok {
				commits[id] = head
			}
		}
	}

	return &types.AggregationState{
		LastRun:         now.UTC(),
		ProviderCommits: commits,
		SkillsCount:     skills,
		Version:         version,
		ContentHash:     contentHash,
	}
}
