package domain

import "errors"

var (
	// ErrInvalidBranchName indicates a branch name fails ref-name validation.
	ErrInvalidBranchName = errors.New("invalid branch name")

	// ErrInvalidInput indicates a request is missing required fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoGitHubConfig indicates no usable GitHub configuration (or token) was found.
	ErrNoGitHubConfig = errors.New("github configuration not found or token not set")

	// ErrInvalidPullRequestURL indicates a URL with no /pull/<number> segment.
	ErrInvalidPullRequestURL = errors.New("invalid pull request url")

	// ErrNotMergeable indicates a pull request failed the merge gate.
	ErrNotMergeable = errors.New("pull request is not mergeable")
)
