// Package fetch talks to the remote hosting API: tree listings, raw skill
// documents, per-file commit dates, repository metadata and head revisions.
//
// Every request goes through the shared Budget and is retried with
// exponential backoff when the failure is transient. Permanent failures
// (404, malformed responses) are returned immediately.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-resty/resty/v2"
	"github.com/smy-101/skillcatalog/internal/logger"
	"github.com/smy-101/skillcatalog/internal/provider"
	"github.com/smy-101/skillcatalog/internal/types"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

const (
	defaultAttempts   = 3
	defaultRetryDelay = time.Second
	defaultTimeout    = 30 * time.Second
	maxRetryDelay     = 16 * time.Second
	userAgent         = "skillcatalog/1.0"

	acceptJSON = "application/vnd.github+json"
	acceptSHA  = "application/vnd.github.sha"
)

// Options configures a Client.
type Options struct {
	Token      string
	Timeout    time.Duration
	APIBaseURL string
	Budget     *Budget
	Attempts   uint
	RetryDelay time.Duration
}

// Client is the remote API client used by every provider worker.
type Client struct {
	restyClient *resty.Client
	apiBase     string
	budget      *Budget
	timeout     time.Duration
	attempts    uint
	retryDelay  time.Duration
	requests    atomic.Int64
}

// RepoInfo is the repository metadata shown in provider summaries.
type RepoInfo struct {
	Stars       int
	Description string
}

// NewClient creates a client. An empty token is allowed; it only lowers the
// remote rate ceiling.
func NewClient(ctx context.Context, opts Options) *Client {
	var client *resty.Client
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		client = resty.NewWithClient(oauth2.NewClient(ctx, ts))
	} else {
		logger.G(ctx).Warn("no GitHub token provided - API rate limits will be restricted")
		client = resty.New()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)

	c := &Client{
		restyClient: client,
		apiBase:     strings.TrimSuffix(opts.APIBaseURL, "/"),
		budget:      opts.Budget,
		timeout:     timeout,
		attempts:    opts.Attempts,
		retryDelay:  opts.RetryDelay,
	}
	if c.apiBase == "" {
		c.apiBase = "https://api.github.com"
	}
	if c.budget == nil {
		c.budget = NewBudget(10, 10, 0, 0)
	}
	if c.attempts == 0 {
		c.attempts = defaultAttempts
	}
	if c.retryDelay <= 0 {
		c.retryDelay = defaultRetryDelay
	}
	return c
}

// Requests returns the number of HTTP requests issued so far, retries included.
func (c *Client) Requests() int64 {
	return c.requests.Load()
}

// FetchTree lists every entry of the provider's repository tree.
func (c *Client) FetchTree(ctx context.Context, p types.ProviderDescriptor) (*types.RemoteTree, error) {
	body, err := c.get(ctx, p.TreeAPIURL, acceptJSON)
	if err != nil {
		return nil, err
	}

	var payload struct {
		SHA       string            `json:"sha"`
		Truncated bool              `json:"truncated"`
		Tree      []types.TreeEntry `json:"tree"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FetchError{Kind: ErrorKindPermanent, URL: p.TreeAPIURL, Message: "malformed tree response", Err: err}
	}
	if payload.Truncated {
		logger.G(ctx).WithField("entries", len(payload.Tree)).Warn("tree listing truncated, missing entries are treated as absent")
	}

	return &types.RemoteTree{SHA: payload.SHA, Truncated: payload.Truncated, Entries: payload.Tree}, nil
}

// FetchRaw downloads one file from the provider's raw content endpoint.
func (c *Client) FetchRaw(ctx context.Context, p types.ProviderDescriptor, path string) ([]byte, error) {
	return c.get(ctx, provider.RawURL(p, path), "")
}

// FetchLastUpdated returns the date of the last commit touching path, or nil
// when the history is empty.
func (c *Client) FetchLastUpdated(ctx context.Context, p types.ProviderDescriptor, path string) (*time.Time, error) {
	ref, err := provider.ParseRepoURL(p.RepoURL)
	if err != nil {
		return nil, &FetchError{Kind: ErrorKindPermanent, URL: p.RepoURL, Message: "invalid repository URL", Err: err}
	}

	query := url.Values{}
	query.Set("path", path)
	query.Set("per_page", "1")
	query.Set("sha", p.Branch)
	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits?%s", c.apiBase, ref.Owner, ref.Repo, query.Encode())

	body, err := c.get(ctx, endpoint, acceptJSON)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsArray() {
		return nil, &FetchError{Kind: ErrorKindPermanent, URL: endpoint, Message: "malformed commits response"}
	}

	date := gjson.GetBytes(body, "0.commit.author.date").String()
	if date == "" {
		date = gjson.GetBytes(body, "0.commit.committer.date").String()
	}
	if date == "" {
		return nil, nil
	}

	ts, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return nil, &FetchError{Kind: ErrorKindPermanent, URL: endpoint, Message: "malformed commit date", Err: err}
	}
	ts = ts.UTC()
	return &ts, nil
}

// FetchRepoInfo returns star count and description of the provider's repository.
func (c *Client) FetchRepoInfo(ctx context.Context, p types.ProviderDescriptor) (*RepoInfo, error) {
	ref, err := provider.ParseRepoURL(p.RepoURL)
	if err != nil {
		return nil, &FetchError{Kind: ErrorKindPermanent, URL: p.RepoURL, Message: "invalid repository URL", Err: err}
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s", c.apiBase, ref.Owner, ref.Repo)
	body, err := c.get(ctx, endpoint, acceptJSON)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, &FetchError{Kind: ErrorKindPermanent, URL: endpoint, Message: "malformed repository response"}
	}

	return &RepoInfo{
		Stars:       int(gjson.GetBytes(body, "stargazers_count").Int()),
		Description: gjson.GetBytes(body, "description").String(),
	}, nil
}

// get issues a GET with retries.
func (c *Client) get(ctx context.Context, endpoint, accept string) ([]byte, error) {
	if u, err := url.Parse(endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &FetchError{Kind: ErrorKindPermanent, URL: endpoint, Message: "malformed URL", Err: err}
	}

	var body []byte
	err := c.retry(ctx, endpoint, func() error {
		var err error
		body, err = c.once(ctx, endpoint, accept)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// retry runs fn until it succeeds, fails permanently or runs out of attempts.
// Transient failures that survive every attempt are escalated to permanent
// ones.
func (c *Client) retry(ctx context.Context, target string, fn func() error) error {
	err := retry.Do(
		fn,
		retry.RetryIf(IsTransient),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("attempt", n+1).
				WithField("max_attempts", c.attempts).
				Warn("retrying request")
		}),
	)
	if err == nil {
		return nil
	}

	if IsTransient(err) {
		return &FetchError{
			Kind:    ErrorKindPermanent,
			URL:     target,
			Message: fmt.Sprintf("giving up after %d attempts", c.attempts),
			Err:     err,
		}
	}
	return err
}

func (c *Client) once(ctx context.Context, endpoint, accept string) ([]byte, error) {
	if err := c.budget.Wait(ctx); err != nil {
		return nil, err
	}
	c.requests.Add(1)

	req := c.restyClient.R().SetContext(ctx)
	if accept != "" {
		req.SetHeader("Accept", accept)
	}
	resp, err := req.Get(endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &FetchError{Kind: ErrorKindTransient, URL: endpoint, Message: "request failed", Err: err}
	}

	c.budget.Observe(resp.Header())
	return resp.Body(), classify(endpoint, resp.StatusCode(), resp.Header(), resp.String())
}

func classify(endpoint string, status int, header http.Header, body string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return &FetchError{Kind: ErrorKindTransient, URL: endpoint, StatusCode: status, Message: "rate limited"}
	case status == http.StatusForbidden && isRateLimited(header, body):
		return &FetchError{Kind: ErrorKindTransient, URL: endpoint, StatusCode: status, Message: "API rate limit exceeded"}
	case status >= 500:
		return &FetchError{Kind: ErrorKindTransient, URL: endpoint, StatusCode: status, Message: "server error"}
	case status == http.StatusNotFound:
		return &FetchError{Kind: ErrorKindPermanent, URL: endpoint, StatusCode: status, Message: "not found"}
	default:
		return &FetchError{Kind: ErrorKindPermanent, URL: endpoint, StatusCode: status, Message: "unexpected status"}
	}
}

func isRateLimited(header http.Header, body string) bool {
	if header.Get(headerRateRemaining) == "0" {
		return true
	}
	return strings.Contains(strings.ToLower(body), "rate limit")
}
