package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/smy-101/skillcatalog/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(context.Background(), Options{
		APIBaseURL: srv.URL,
		Budget:     NewBudget(1000, 1000, 0, 0),
		Attempts:   3,
		RetryDelay: time.Millisecond,
	})
	return client, srv
}

func testProvider(base string) types.ProviderDescriptor {
	return types.ProviderDescriptor{
		ID:         "sample",
		Name:       "Sample",
		RepoURL:    "https://github.com/o/r",
		TreeAPIURL: base + "/tree",
		RawBaseURL: base + "/raw",
		PathPrefix: "skills/",
		TrustTier:  types.TrustOfficial,
		Branch:     "main",
	}
}

func TestFetchTreeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"sha":"abc","truncated":false,"tree":[{"path":"skills/pdf/SKILL.md","type":"blob","sha":"1"}]}`))
	})

	tree, err := client.FetchTree(context.Background(), testProvider(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(2), client.Requests())
	assert.Equal(t, "abc", tree.SHA)
	require.Len(t, tree.Entries, 1)
	assert.Equal(t, "skills/pdf/SKILL.md", tree.Entries[0].Path)
	assert.True(t, tree.Entries[0].IsFile())
}

func TestFetchTreeNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FetchTree(context.Background(), testProvider(srv.URL))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermanent))
	assert.False(t, IsTransient(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchTreeRateLimitedGivesUp(t *testing.T) {
	var calls atomic.Int32
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.FetchTree(context.Background(), testProvider(srv.URL))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermanent))
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchTreeForbiddenRateLimitIsTransient(t *testing.T) {
	var calls atomic.Int32
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set(headerRateRemaining, "0")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"sha":"abc","tree":[]}`))
	})

	_, err := client.FetchTree(context.Background(), testProvider(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchTreeMalformed(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	_, err := client.FetchTree(context.Background(), testProvider(srv.URL))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermanent))
	assert.Contains(t, err.Error(), "malformed tree response")
}

func TestFetchTreeTruncated(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sha":"abc","truncated":true,"tree":[{"path":"a","type":"tree","sha":"1"}]}`))
	})

	tree, err := client.FetchTree(context.Background(), testProvider(srv.URL))
	require.NoError(t, err)
	assert.True(t, tree.Truncated)
	assert.False(t, tree.Entries[0].IsFile())
}

func TestMalformedURLIsPermanent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	p := testProvider("")
	p.TreeAPIURL = "not a url"
	_, err := client.FetchTree(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermanent))
	assert.Equal(t, int64(0), client.Requests())
}

func TestFetchRaw(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/raw/skills/pdf/SKILL.md", r.URL.Path)
		_, _ = w.Write([]byte("---\nname: pdf\n---\nbody"))
	})

	body, err := client.FetchRaw(context.Background(), testProvider(srv.URL), "skills/pdf/SKILL.md")
	require.NoError(t, err)
	assert.Equal(t, "---\nname: pdf\n---\nbody", string(body))
}

func TestFetchLastUpdated(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *time.Time
	}{
		{
			name: "author date",
			body: `[{"commit":{"author":{"date":"2024-01-02T03:04:05Z"},"committer":{"date":"2024-02-02T00:00:00Z"}}}]`,
			want: timePtr(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
		},
		{
			name: "committer fallback",
			body: `[{"commit":{"committer":{"date":"2024-02-02T00:00:00+02:00"}}}]`,
			want: timePtr(time.Date(2024, 2, 1, 22, 0, 0, 0, time.UTC)),
		},
		{
			name: "empty history",
			body: `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/repos/o/r/commits", r.URL.Path)
				assert.Equal(t, "skills/pdf/SKILL.md", r.URL.Query().Get("path"))
				assert.Equal(t, "1", r.URL.Query().Get("per_page"))
				assert.Equal(t, "main", r.URL.Query().Get("sha"))
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := client.FetchLastUpdated(context.Background(), testProvider(srv.URL), "skills/pdf/SKILL.md")
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got))
		})
	}
}

func TestFetchLastUpdatedMalformed(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"weird"}`))
	})

	_, err := client.FetchLastUpdated(context.Background(), testProvider(srv.URL), "SKILL.md")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermanent))
}

func TestFetchRepoInfo(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/o/r", r.URL.Path)
		_, _ = w.Write([]byte(`{"stargazers_count":1234,"description":"Agent skills"}`))
	})

	info, err := client.FetchRepoInfo(context.Background(), testProvider(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, 1234, info.Stars)
	assert.Equal(t, "Agent skills", info.Description)
}

func TestAPIHeadResolver(t *testing.T) {
	const sha = "0123456789abcdef0123456789abcdef01234567"
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/o/r/commits/main", r.URL.Path)
		assert.Equal(t, acceptSHA, r.Header.Get("Accept"))
		_, _ = w.Write([]byte(sha + "\n"))
	})

	resolver := &APIHeadResolver{Client: client}
	got, err := resolver.HeadRevision(context.Background(), testProvider(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, sha, got)
}

func TestAPIHeadResolverRejectsGarbage(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sha":"nope"}`))
	})

	resolver := &APIHeadResolver{Client: client}
	_, err := resolver.HeadRevision(context.Background(), testProvider(srv.URL))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermanent))
}

func TestBranchHead(t *testing.T) {
	mainHash := plumbing.NewHash("0123456789abcdef0123456789abcdef01234567")
	devHash := plumbing.NewHash("89abcdef0123456789abcdef0123456789abcdef")
	refs := []*plumbing.Reference{
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main")),
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("dev"), devHash),
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), mainHash),
		plumbing.NewHashReference(plumbing.NewTagReferenceName("main"), devHash),
	}

	got, ok := branchHead(refs, "main")
	require.True(t, ok)
	assert.Equal(t, mainHash.String(), got)

	_, ok = branchHead(refs, "release")
	assert.False(t, ok)
}

func TestNewHeadResolver(t *testing.T) {
	client := NewClient(context.Background(), Options{})

	api, ok := NewHeadResolver("api", client, "").(*APIHeadResolver)
	require.True(t, ok)
	assert.Same(t, client, api.Client)

	gitResolver, ok := NewHeadResolver("git", client, "tok").(*GitHeadResolver)
	require.True(t, ok)
	assert.Equal(t, "tok", gitResolver.Token)
	assert.Same(t, client, gitResolver.Client)
}

func TestGitHeadResolverTimesOut(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client := NewClient(context.Background(), Options{
		Timeout:    50 * time.Millisecond,
		Attempts:   2,
		RetryDelay: time.Millisecond,
	})
	resolver := NewHeadResolver("git", client, "")

	p := testProvider(srv.URL)
	p.RepoURL = srv.URL + "/o/r"
	p.Branch = "main"

	done := make(chan error, 1)
	go func() {
		_, err := resolver.HeadRevision(context.Background(), p)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, &FetchError{Kind: ErrorKindPermanent}))
		assert.GreaterOrEqual(t, hits.Load(), int32(2), "each attempt reaches the remote")
	case <-time.After(5 * time.Second):
		t.Fatal("head lookup did not honor the request timeout")
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
