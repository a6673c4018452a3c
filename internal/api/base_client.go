package api

import (
	"context"
	"net/http"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	// MaxConcurrentRequests limits concurrent API requests to avoid overwhelming the API
	MaxConcurrentRequests = 5
	// DefaultRequestsPerSecond is the steady request rate allowed per client
	DefaultRequestsPerSecond = 10
)

// HTTPClient interface for HTTP operations (allows mocking in tests).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Limits configures request throttling. Zero values use the defaults.
type Limits struct {
	RequestsPerSecond float64
	MaxConcurrent     int
}

// BaseClient contains common fields and functionality for all API clients.
type BaseClient struct {
	BaseURL    string
	Token      string
	HTTPClient HTTPClient

	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

// NewBaseClient creates a new base client with rate limiting.
func NewBaseClient(baseURL, token string, httpClient HTTPClient, limits Limits) *BaseClient {
	rps := limits.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	maxConcurrent := limits.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = MaxConcurrentRequests
	}

	return &BaseClient{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), maxConcurrent),
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Do runs fn once a concurrency slot and a rate token are available.
// Platform clients wrap every API call in it.
func (c *BaseClient) Do(ctx context.Context, fn func() error) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	return fn()
}
