package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/vilaca/branchsmith/internal/domain"
)

// PullRequestClient defines the GitHub operations branchsmith needs.
// Consumers depend on this interface, not on the concrete client.
type PullRequestClient interface {
	// CreatePullRequest opens a pull request in repo.
	CreatePullRequest(ctx context.Context, repo string, input domain.PullRequestInput) (*domain.PullRequest, error)

	// GetPullRequest returns a single pull request.
	GetPullRequest(ctx context.Context, repo string, number int) (*domain.PullRequest, error)

	// GetCheckRuns returns the aggregated check runs for a commit.
	GetCheckRuns(ctx context.Context, repo, sha string) (*domain.Checks, error)

	// MergePullRequest merges a pull request with the given method.
	MergePullRequest(ctx context.Context, repo string, number int, method domain.MergeMethod) (*domain.MergeResult, error)

	// GetBranch returns a branch, or nil if it does not exist.
	GetBranch(ctx context.Context, repo, name string) (*domain.RemoteBranch, error)
}

// ClientConfig holds common configuration for API clients.
type ClientConfig struct {
	BaseURL string
	Token   string
	Owner   string
}

// BaseURLForDomain returns the REST API root for a GitHub host.
// Enterprise hosts serve the API under /api/v3.
func BaseURLForDomain(host string) string {
	host = strings.TrimSuffix(strings.TrimSpace(host), "/")
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
	if host == "" || host == domain.GitHubDomain {
		return "https://api.github.com"
	}
	return fmt.Sprintf("https://%s/api/v3", host)
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Message)
}
