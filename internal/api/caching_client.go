package api

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/vilaca/branchsmith/internal/domain"
)

// CachingClient wraps a PullRequestClient with caching of read operations.
// Writes pass through and invalidate what they change.
type CachingClient struct {
	client  PullRequestClient
	cache   *gocache.Cache
	enabled bool
	logger  Logger
}

// Logger is the logging dependency of the API decorators.
type Logger interface {
	Printf(format string, v ...interface{})
}

// NewCachingClient creates a new caching client wrapper.
// A non-positive cacheDuration disables caching; every read goes upstream.
func NewCachingClient(client PullRequestClient, cacheDuration time.Duration, logger Logger) *CachingClient {
	if cacheDuration <= 0 {
		return &CachingClient{
			client: client,
			cache:  gocache.New(gocache.NoExpiration, 0),
			logger: logger,
		}
	}
	return &CachingClient{
		client:  client,
		cache:   gocache.New(cacheDuration, 2*cacheDuration),
		enabled: true,
		logger:  logger,
	}
}

func (c *CachingClient) get(key string) (interface{}, bool) {
	if !c.enabled {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *CachingClient) set(key string, v interface{}) {
	if c.enabled {
		c.cache.SetDefault(key, v)
	}
}

func pullRequestKey(repo string, number int) string {
	return fmt.Sprintf("GetPullRequest:%s:%d", repo, number)
}

func checkRunsKey(repo, sha string) string {
	return fmt.Sprintf("GetCheckRuns:%s:%s", repo, sha)
}

// CreatePullRequest is never cached.
func (c *CachingClient) CreatePullRequest(ctx context.Context, repo string, input domain.PullRequestInput) (*domain.PullRequest, error) {
	pr, err := c.client.CreatePullRequest(ctx, repo, input)
	if err != nil {
		return nil, err
	}
	c.cache.Delete(pullRequestKey(repo, pr.Number))
	return pr, nil
}

// GetPullRequest retrieves a pull request with caching.
func (c *CachingClient) GetPullRequest(ctx context.Context, repo string, number int) (*domain.PullRequest, error) {
	key := pullRequestKey(repo, number)

	if cached, found := c.get(key); found {
		if pr, ok := cached.(*domain.PullRequest); ok {
			c.logger.Printf("Cache hit: %s", key)
			return pr, nil
		}
	}

	c.logger.Printf("Cache miss: %s - fetching from API", key)
	pr, err := c.client.GetPullRequest(ctx, repo, number)
	if err != nil {
		return nil, err
	}

	c.set(key, pr)
	return pr, nil
}

// GetCheckRuns retrieves check runs with caching. Pending summaries are
// not cached so polling sees progress.
func (c *CachingClient) GetCheckRuns(ctx context.Context, repo, sha string) (*domain.Checks, error) {
	key := checkRunsKey(repo, sha)

	if cached, found := c.get(key); found {
		if checks, ok := cached.(*domain.Checks); ok {
			return checks, nil
		}
	}

	checks, err := c.client.GetCheckRuns(ctx, repo, sha)
	if err != nil {
		return nil, err
	}

	if checks.State.IsTerminal() {
		c.set(key, checks)
	}
	return checks, nil
}

// MergePullRequest merges and drops the cached pull request.
func (c *CachingClient) MergePullRequest(ctx context.Context, repo string, number int, method domain.MergeMethod) (*domain.MergeResult, error) {
	c.cache.Delete(pullRequestKey(repo, number))

	result, err := c.client.MergePullRequest(ctx, repo, number, method)
	if err != nil {
		return nil, err
	}

	c.cache.Delete(pullRequestKey(repo, number))
	return result, nil
}

// GetBranch is not cached; it is used right before opening a pull request.
func (c *CachingClient) GetBranch(ctx context.Context, repo, name string) (*domain.RemoteBranch, error) {
	return c.client.GetBranch(ctx, repo, name)
}

// Flush drops every cached entry.
func (c *CachingClient) Flush() {
	c.cache.Flush()
}
