package aggregate

import (
	"errors"
	"fmt"
)

type Stage int

const (
	StageHead Stage = iota
	StageTree
	StageRepoInfo
)

func (s Stage) String() string {
	switch s {
	case StageHead:
		return "head"
	case StageTree:
		return "tree"
	case StageRepoInfo:
		return "repo-info"
	default:
		return "unknown"
	}
}

// ErrNoProviders is returned when not a single provider could be processed or
// reused, so no meaningful catalog can be published.
var ErrNoProviders = errors.New("no provider could be processed")

// ProviderError reports a failure that excluded a provider's fresh data from
// the run.
type ProviderError struct {
	Provider string
	Stage    Stage
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	if t, ok := target.(*ProviderError); ok {
		return e.Stage == t.Stage
	}
	return false
}
