package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// PullRequestInput is the payload for opening a pull request.
type PullRequestInput struct {
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body,omitempty"`
}

// PullRequest represents a GitHub pull request.
type PullRequest struct {
	Number         int        `json:"number"`
	Title          string     `json:"title"`
	State          string     `json:"state"` // "open", "closed"
	Merged         bool       `json:"merged"`
	Mergeable      *bool      `json:"mergeable"` // nil while GitHub is still computing
	MergeableState string     `json:"mergeable_state"`
	MergedAt       *time.Time `json:"merged_at"`
	HTMLURL        string     `json:"html_url"`
	BaseRef        string     `json:"base_ref"`
	HeadRef        string     `json:"head_ref"`
	HeadSHA        string     `json:"head_sha"`
	Repository     string     `json:"repository,omitempty"`
}

// CheckState is the aggregate state of the check runs on a commit.
type CheckState string

const (
	CheckStatePending CheckState = "pending"
	CheckStateSuccess CheckState = "success"
	CheckStateFailure CheckState = "failure"
	CheckStateError   CheckState = "error"
)

// IsTerminal returns true if the state will not change without a new push.
func (s CheckState) IsTerminal() bool {
	return s == CheckStateSuccess || s == CheckStateFailure || s == CheckStateError
}

// Checks summarizes the check runs for a pull request head commit.
type Checks struct {
	State          CheckState `json:"state"`
	Conclusion     *string    `json:"conclusion"`
	TotalCount     int        `json:"total_count"`
	CompletedCount int        `json:"completed_count"`
	FailedCount    int        `json:"failed_count"`
}

// SummarizeChecks aggregates per-run counts into an overall state.
// No runs at all counts as success.
func SummarizeChecks(total, completed, failed int) Checks {
	c := Checks{TotalCount: total, CompletedCount: completed, FailedCount: failed}
	switch {
	case total == 0:
		c.State = CheckStateSuccess
	case completed < total:
		c.State = CheckStatePending
	case failed > 0:
		c.State = CheckStateFailure
	default:
		c.State = CheckStateSuccess
	}
	if c.State != CheckStatePending {
		conclusion := string(c.State)
		c.Conclusion = &conclusion
	}
	return c
}

// PullRequestStatus combines a pull request with its check summary.
type PullRequestStatus struct {
	PullRequest
	Checks *Checks `json:"checks"`
}

// CanMerge reports whether the pull request passes the merge gate: open,
// not yet merged, mergeable, and with all checks green.
func (s PullRequestStatus) CanMerge() bool {
	if s.State != "open" || s.Merged {
		return false
	}
	if s.Mergeable == nil || !*s.Mergeable {
		return false
	}
	return s.Checks != nil && s.Checks.State == CheckStateSuccess
}

// MergeMethod is the strategy GitHub uses to merge a pull request.
type MergeMethod string

const (
	MergeMethodMerge  MergeMethod = "merge"
	MergeMethodSquash MergeMethod = "squash"
	MergeMethodRebase MergeMethod = "rebase"
)

// ParseMergeMethod validates a merge method. Empty input yields merge.
func ParseMergeMethod(raw string) (MergeMethod, error) {
	switch m := MergeMethod(raw); m {
	case "":
		return MergeMethodMerge, nil
	case MergeMethodMerge, MergeMethodSquash, MergeMethodRebase:
		return m, nil
	}
	return "", fmt.Errorf("invalid merge method %q", raw)
}

// MergeResult is GitHub's answer to a merge request.
type MergeResult struct {
	SHA     string `json:"sha"`
	Merged  bool   `json:"merged"`
	Message string `json:"message"`
}

var pullNumberPattern = regexp.MustCompile(`/pull/(\d+)`)

// ParsePullRequestURL extracts the pull request number from a GitHub PR URL.
func ParsePullRequestURL(url string) (int, error) {
	m := pullNumberPattern.FindStringSubmatch(url)
	if m == nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPullRequestURL, url)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPullRequestURL, url)
	}
	return n, nil
}
