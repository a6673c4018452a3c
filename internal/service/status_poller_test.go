package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaca/branchsmith/internal/domain"
)

// TestStatusPoller_Poll tests that merged and closed pull requests update
// their records.
// Follows AAA (Arrange, Act, Assert) pattern.
func TestStatusPoller_Poll(t *testing.T) {
	// Arrange
	mergedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	client := &mockClient{
		getPRFunc: func(repo string, number int) (*domain.PullRequest, error) {
			switch number {
			case 1:
				return &domain.PullRequest{Number: 1, State: "closed", Merged: true, MergedAt: &mergedAt, BaseRef: "develop"}, nil
			case 2:
				return &domain.PullRequest{Number: 2, State: "closed", Merged: true, MergedAt: &mergedAt, BaseRef: "master"}, nil
			case 3:
				return &domain.PullRequest{Number: 3, State: "closed"}, nil
			default:
				return &domain.PullRequest{Number: number, State: "open"}, nil
			}
		},
	}
	prService, records := newTestService(t, client)
	ctx := context.Background()

	toTest := &domain.ServiceBranch{ServiceName: "Auth Service", BranchName: "b1", PullRequestURL: "https://github.com/acme/auth-service/pull/1"}
	toMaster := &domain.ServiceBranch{ServiceName: "Auth Service", BranchName: "b2", PullRequestURL: "https://github.com/acme/auth-service/pull/2"}
	closed := &domain.ServiceBranch{ServiceName: "Auth Service", BranchName: "b3", PullRequestURL: "https://github.com/acme/auth-service/pull/3"}
	open := &domain.ServiceBranch{ServiceName: "Auth Service", BranchName: "b4", PullRequestURL: "https://github.com/acme/auth-service/pull/4"}
	for _, r := range []*domain.ServiceBranch{toTest, toMaster, closed, open} {
		require.NoError(t, records.Save(ctx, r))
	}

	poller := NewStatusPoller(prService, prService.cfg, records, time.Minute, &mockLogger{})

	// Act
	updated := poller.Poll(ctx)
	again := poller.Poll(ctx)

	// Assert
	assert.Equal(t, 3, updated)
	assert.Equal(t, 0, again, "already recorded merges are not saved twice")

	got, err := records.Get(ctx, toTest.ID)
	require.NoError(t, err)
	assert.True(t, got.MergedToTest)
	assert.False(t, got.MergedToMaster)
	require.NotNil(t, got.TestMergeDate)
	assert.True(t, mergedAt.Equal(*got.TestMergeDate))

	got, err = records.Get(ctx, toMaster.ID)
	require.NoError(t, err)
	assert.True(t, got.MergedToMaster)
	assert.Equal(t, domain.BranchStateMerged, got.State)

	got, err = records.Get(ctx, closed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BranchStateStale, got.State)

	stillOpen, err := records.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, stillOpen, 2)
}

func TestStatusPoller_StartStop(t *testing.T) {
	// Arrange
	prService, records := newTestService(t, &mockClient{})
	poller := NewStatusPoller(prService, prService.cfg, records, 10*time.Millisecond, &mockLogger{})
	poller.initialDelay = time.Millisecond

	// Act & Assert
	poller.Start()
	poller.Start()
	time.Sleep(30 * time.Millisecond)
	poller.Stop()
	poller.Stop()
	assert.False(t, poller.running)
}

func TestStatusPoller_DisabledWithZeroInterval(t *testing.T) {
	prService, records := newTestService(t, &mockClient{})
	poller := NewStatusPoller(prService, prService.cfg, records, 0, &mockLogger{})

	poller.Start()

	assert.False(t, poller.running)
	poller.Stop()
}
