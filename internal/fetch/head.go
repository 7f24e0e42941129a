package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/smy-101/skillcatalog/internal/provider"
	"github.com/smy-101/skillcatalog/internal/types"
)

// HeadResolver returns the current head revision of a provider's branch.
type HeadResolver interface {
	HeadRevision(ctx context.Context, p types.ProviderDescriptor) (string, error)
}

// NewHeadResolver picks the resolver for source ("api" or "git"). Anything
// other than "api" falls back to listing refs over git.
func NewHeadResolver(source string, client *Client, token string) HeadResolver {
	if source == "api" {
		return &APIHeadResolver{Client: client}
	}
	return &GitHeadResolver{Client: client, Token: token}
}

// APIHeadResolver asks the REST API for the branch head. Costs one request
// from the shared budget per provider.
type APIHeadResolver struct {
	Client *Client
}

func (r *APIHeadResolver) HeadRevision(ctx context.Context, p types.ProviderDescriptor) (string, error) {
	ref, err := provider.ParseRepoURL(p.RepoURL)
	if err != nil {
		return "", &FetchError{Kind: ErrorKindPermanent, URL: p.RepoURL, Message: "invalid repository URL", Err: err}
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits/%s", r.Client.apiBase, ref.Owner, ref.Repo, p.Branch)
	body, err := r.Client.get(ctx, endpoint, acceptSHA)
	if err != nil {
		return "", err
	}

	sha := strings.TrimSpace(string(body))
	if !isHexSHA(sha) {
		return "", &FetchError{Kind: ErrorKindPermanent, URL: endpoint, Message: "malformed head revision"}
	}
	return sha, nil
}

// GitHeadResolver lists remote refs over the git protocol, the equivalent of
// `git ls-remote`. It does not touch the REST API budget but shares the
// client's timeout and retry policy.
type GitHeadResolver struct {
	Client *Client
	Token  string
}

func (r *GitHeadResolver) HeadRevision(ctx context.Context, p types.ProviderDescriptor) (string, error) {
	var refs []*plumbing.Reference
	err := r.Client.retry(ctx, p.RepoURL, func() error {
		var err error
		refs, err = r.listRefs(ctx, p)
		return err
	})
	if err != nil {
		return "", err
	}

	sha, ok := branchHead(refs, p.Branch)
	if !ok {
		return "", &FetchError{Kind: ErrorKindPermanent, URL: p.RepoURL, Message: fmt.Sprintf("branch %q not found", p.Branch)}
	}
	return sha, nil
}

func (r *GitHeadResolver) listRefs(ctx context.Context, p types.ProviderDescriptor) ([]*plumbing.Reference, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Client.timeout)
	defer cancel()

	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{p.RepoURL},
	})

	var auth transport.AuthMethod
	if r.Token != "" {
		auth = &githttp.BasicAuth{Username: "x-access-token", Password: r.Token}
	}

	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: auth})
	if err != nil {
		if errors.Is(err, transport.ErrRepositoryNotFound) {
			return nil, &FetchError{Kind: ErrorKindPermanent, URL: p.RepoURL, Message: "repository not found", Err: err}
		}
		return nil, &FetchError{Kind: ErrorKindTransient, URL: p.RepoURL, Message: "failed to list remote refs", Err: err}
	}
	return refs, nil
}

func branchHead(refs []*plumbing.Reference, branch string) (string, bool) {
	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Name() == want {
			return ref.Hash().String(), true
		}
	}
	return "", false
}

func isHexSHA(s string) bool {
	if len(s) < 7 || len(s) > 64 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}
