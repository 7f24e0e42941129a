package provider

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/smy-101/skillcatalog/internal/types"
)

// RepoRef is the owner/repo pair of a hosted repository URL.
type RepoRef struct {
	Owner string
	Repo  string
}

// ParseRepoURL extracts owner and repo from a repository URL such as
// https://github.com/anthropics/skills. Extra path segments are ignored.
func ParseRepoURL(rawURL string) (*RepoRef, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: missing host", rawURL)
	}

	pathParts := strings.Split(strings.Trim(parsedURL.Path, "/"), "/")
	if len(pathParts) < 2 {
		return nil, fmt.Errorf("invalid repository URL format: %s", rawURL)
	}

	owner := pathParts[0]
	repo := strings.TrimSuffix(pathParts[1], ".git")
	if owner == "" {
		return nil, fmt.Errorf("owner cannot be empty in URL")
	}
	if repo == "" {
		return nil, fmt.Errorf("repo cannot be empty in URL")
	}

	return &RepoRef{Owner: owner, Repo: repo}, nil
}

// String returns "owner/repo".
func (r RepoRef) String() string {
	return r.Owner + "/" + r.Repo
}

// RawURL builds the raw content URL of path within p.
func RawURL(p types.ProviderDescriptor, path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(p.RawBaseURL, "/") + "/" + strings.Join(segments, "/")
}
