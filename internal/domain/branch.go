package domain

import "time"

// BranchState is the lifecycle state of a service branch.
type BranchState string

const (
	BranchStateActive BranchState = "active"
	BranchStateMerged BranchState = "merged"
	BranchStateStale  BranchState = "stale"
)

// ServiceBranch links a task to the branch generated for one service,
// along with the pull requests raised from it.
type ServiceBranch struct {
	ID                string      `json:"id" yaml:"id"`
	TaskID            string      `json:"taskId" yaml:"taskId"`
	ServiceName       string      `json:"serviceName" yaml:"serviceName"`
	BranchName        string      `json:"branchName" yaml:"branchName"`
	TaskType          TaskType    `json:"taskType,omitempty" yaml:"taskType,omitempty"`
	State             BranchState `json:"state" yaml:"state"`
	PullRequestURL    string      `json:"pullRequestUrl,omitempty" yaml:"pullRequestUrl,omitempty"`
	PullRequestNumber int         `json:"pullRequestNumber,omitempty" yaml:"pullRequestNumber,omitempty"`
	MergedToTest      bool        `json:"mergedToTest" yaml:"mergedToTest"`
	MergedToMaster    bool        `json:"mergedToMaster" yaml:"mergedToMaster"`
	TestMergeDate     *time.Time  `json:"testMergeDate,omitempty" yaml:"testMergeDate,omitempty"`
	MasterMergeDate   *time.Time  `json:"masterMergeDate,omitempty" yaml:"masterMergeDate,omitempty"`
	CreatedAt         time.Time   `json:"createdAt" yaml:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt" yaml:"updatedAt"`
}

// IsOpen reports whether the branch has a pull request that still needs tracking.
func (b ServiceBranch) IsOpen() bool {
	return b.PullRequestURL != "" && !b.MergedToMaster && b.State != BranchStateStale
}

// RemoteBranch is a branch as reported by GitHub.
type RemoteBranch struct {
	Name      string `json:"name"`
	CommitSHA string `json:"commitSha"`
	Protected bool   `json:"protected"`
}

// RecordMerge marks the branch as merged into base at the given time and
// reports whether anything changed. A merge into masterBranch closes the branch.
func (b *ServiceBranch) RecordMerge(base, masterBranch string, at time.Time) bool {
	if base == masterBranch {
		if b.MergedToMaster {
			return false
		}
		b.MergedToMaster = true
		b.MasterMergeDate = &at
		b.State = BranchStateMerged
		return true
	}
	if b.MergedToTest {
		return false
	}
	b.MergedToTest = true
	b.TestMergeDate = &at
	return true
}
