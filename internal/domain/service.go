package domain

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Service is a deployable unit backed by one GitHub repository.
type Service struct {
	Name         string `json:"name" mapstructure:"name" yaml:"name"`
	Repository   string `json:"repository,omitempty" mapstructure:"repository" yaml:"repository,omitempty"`
	TestBranch   string `json:"testBranch,omitempty" mapstructure:"test_branch" yaml:"test_branch,omitempty"`
	MasterBranch string `json:"masterBranch,omitempty" mapstructure:"master_branch" yaml:"master_branch,omitempty"`
	ConfigID     string `json:"configId,omitempty" mapstructure:"config_id" yaml:"config_id,omitempty"`
}

// RepositoryName returns the configured repository, or the service name
// lower-cased with whitespace runs replaced by hyphens.
func (s Service) RepositoryName() string {
	if s.Repository != "" {
		return s.Repository
	}
	return RepositoryFromServiceName(s.Name)
}

// TargetTestBranch returns the branch test merges go to.
func (s Service) TargetTestBranch() string {
	if s.TestBranch != "" {
		return s.TestBranch
	}
	return DefaultTestBranch
}

// TargetMasterBranch returns the branch production merges go to.
func (s Service) TargetMasterBranch() string {
	if s.MasterBranch != "" {
		return s.MasterBranch
	}
	return DefaultMasterBranch
}

// RepositoryFromServiceName derives a repository name from a free-text service name.
func RepositoryFromServiceName(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}
