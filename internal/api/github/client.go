package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/vilaca/branchsmith/internal/api"
	"github.com/vilaca/branchsmith/internal/domain"
)

const (
	userAgent  = "branchsmith"
	apiVersion = "2022-11-28"
	// checkRunsPageSize is the largest page GitHub serves for check runs.
	checkRunsPageSize = 100
)

// Client implements api.PullRequestClient for the GitHub REST API.
type Client struct {
	*api.BaseClient
	owner string
}

// NewClient creates a new GitHub client.
// Uses dependency injection for HTTPClient (IoC).
func NewClient(config api.ClientConfig, httpClient api.HTTPClient, limits api.Limits) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = api.BaseURLForDomain(domain.GitHubDomain)
	}

	return &Client{
		BaseClient: api.NewBaseClient(baseURL, config.Token, httpClient, limits),
		owner:      config.Owner,
	}
}

// CreatePullRequest opens a pull request.
func (c *Client) CreatePullRequest(ctx context.Context, repo string, input domain.PullRequestInput) (*domain.PullRequest, error) {
	var pr githubPullRequest
	if err := c.doRequest(ctx, http.MethodPost, c.repoURL(repo, "pulls"), input, &pr); err != nil {
		return nil, fmt.Errorf("failed to create pull request: %w", err)
	}
	return pr.convert(repo), nil
}

// GetPullRequest retrieves a single pull request.
func (c *Client) GetPullRequest(ctx context.Context, repo string, number int) (*domain.PullRequest, error) {
	var pr githubPullRequest
	if err := c.doRequest(ctx, http.MethodGet, c.repoURL(repo, fmt.Sprintf("pulls/%d", number)), nil, &pr); err != nil {
		return nil, fmt.Errorf("failed to get pull request %d: %w", number, err)
	}
	return pr.convert(repo), nil
}

// GetCheckRuns retrieves all check runs for a commit and aggregates them.
func (c *Client) GetCheckRuns(ctx context.Context, repo, sha string) (*domain.Checks, error) {
	var total, completed, failed, seen int

	for page := 1; ; page++ {
		path := fmt.Sprintf("commits/%s/check-runs?per_page=%d&page=%d", url.PathEscape(sha), checkRunsPageSize, page)

		var response githubCheckRunsResponse
		if err := c.doRequest(ctx, http.MethodGet, c.repoURL(repo, path), nil, &response); err != nil {
			return nil, fmt.Errorf("failed to get check runs: %w", err)
		}

		total = response.TotalCount
		for _, run := range response.CheckRuns {
			if run.Status == "completed" {
				completed++
			}
			if run.Conclusion == "failure" || run.Conclusion == "error" {
				failed++
			}
		}
		seen += len(response.CheckRuns)

		if len(response.CheckRuns) < checkRunsPageSize || seen >= total {
			break
		}
	}

	checks := domain.SummarizeChecks(total, completed, failed)
	return &checks, nil
}

// MergePullRequest merges a pull request.
func (c *Client) MergePullRequest(ctx context.Context, repo string, number int, method domain.MergeMethod) (*domain.MergeResult, error) {
	body := map[string]string{"merge_method": string(method)}

	var result domain.MergeResult
	if err := c.doRequest(ctx, http.MethodPut, c.repoURL(repo, fmt.Sprintf("pulls/%d/merge", number)), body, &result); err != nil {
		return nil, fmt.Errorf("failed to merge pull request %d: %w", number, err)
	}
	return &result, nil
}

// GetBranch retrieves a branch. A missing branch returns nil without error.
func (c *Client) GetBranch(ctx context.Context, repo, name string) (*domain.RemoteBranch, error) {
	var branch githubBranch
	err := c.doRequest(ctx, http.MethodGet, c.repoURL(repo, "branches/"+url.PathEscape(name)), nil, &branch)

	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get branch %s: %w", name, err)
	}

	return &domain.RemoteBranch{
		Name:      branch.Name,
		CommitSHA: branch.Commit.SHA,
		Protected: branch.Protected,
	}, nil
}

func (c *Client) repoURL(repo, path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/%s", c.BaseURL, c.owner, repo, path)
}

// doRequest performs an HTTP request to GitHub API through the rate limiter.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, payload, result interface{}) error {
	return c.Do(ctx, func() error {
		var body io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("failed to encode request: %w", err)
			}
			body = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.Token))
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", apiVersion)
		req.Header.Set("User-Agent", userAgent)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &api.APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}

// errorMessage extracts GitHub's message field, falling back to the raw body.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(r)
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return body.Message
	}
	return string(raw)
}

// GitHub API response types
type githubPullRequest struct {
	Number         int        `json:"number"`
	Title          string     `json:"title"`
	State          string     `json:"state"`
	Merged         bool       `json:"merged"`
	Mergeable      *bool      `json:"mergeable"`
	MergeableState string     `json:"mergeable_state"`
	MergedAt       *time.Time `json:"merged_at"`
	HTMLURL        string     `json:"html_url"`
	Base           githubRef  `json:"base"`
	Head           githubRef  `json:"head"`
}

type githubRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

func (pr githubPullRequest) convert(repo string) *domain.PullRequest {
	return &domain.PullRequest{
		Number:         pr.Number,
		Title:          pr.Title,
		State:          pr.State,
		Merged:         pr.Merged,
		Mergeable:      pr.Mergeable,
		MergeableState: pr.MergeableState,
		MergedAt:       pr.MergedAt,
		HTMLURL:        pr.HTMLURL,
		BaseRef:        pr.Base.Ref,
		HeadRef:        pr.Head.Ref,
		HeadSHA:        pr.Head.SHA,
		Repository:     repo,
	}
}

type githubCheckRunsResponse struct {
	TotalCount int              `json:"total_count"`
	CheckRuns  []githubCheckRun `json:"check_runs"`
}

type githubCheckRun struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
}

type githubBranch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
	Commit    struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}
