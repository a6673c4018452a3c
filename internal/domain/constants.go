package domain

// Platform constants
const (
	// PlatformGitHub represents GitHub (github.com or GitHub Enterprise)
	PlatformGitHub = "github"

	// GitHubDomain is the public GitHub host. Any other domain is treated as GitHub Enterprise.
	GitHubDomain = "github.com"
)

// Default target branches for a service when none are configured.
const (
	DefaultTestBranch   = "test"
	DefaultMasterBranch = "main"
)
