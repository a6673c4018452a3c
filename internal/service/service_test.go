package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaca/branchsmith/internal/api"
	"github.com/vilaca/branchsmith/internal/branch"
	"github.com/vilaca/branchsmith/internal/config"
	"github.com/vilaca/branchsmith/internal/domain"
	"github.com/vilaca/branchsmith/internal/store"
)

// mockClient is a test double for api.PullRequestClient.
type mockClient struct {
	mu sync.Mutex

	createFunc    func(repo string, input domain.PullRequestInput) (*domain.PullRequest, error)
	getPRFunc     func(repo string, number int) (*domain.PullRequest, error)
	getChecksFunc func(repo, sha string) (*domain.Checks, error)
	mergeFunc     func(repo string, number int, method domain.MergeMethod) (*domain.MergeResult, error)
	getBranchFunc func(repo, name string) (*domain.RemoteBranch, error)

	created []domain.PullRequestInput
	merged  int
}

func (m *mockClient) CreatePullRequest(ctx context.Context, repo string, input domain.PullRequestInput) (*domain.PullRequest, error) {
	m.mu.Lock()
	m.created = append(m.created, input)
	n := len(m.created)
	m.mu.Unlock()
	if m.createFunc != nil {
		return m.createFunc(repo, input)
	}
	return &domain.PullRequest{
		Number:  n,
		State:   "open",
		HTMLURL: fmt.Sprintf("https://github.com/acme/%s/pull/%d", repo, n),
		BaseRef: input.Base,
		HeadRef: input.Head,
	}, nil
}

func (m *mockClient) GetPullRequest(ctx context.Context, repo string, number int) (*domain.PullRequest, error) {
	if m.getPRFunc != nil {
		return m.getPRFunc(repo, number)
	}
	return &domain.PullRequest{Number: number, State: "open"}, nil
}

func (m *mockClient) GetCheckRuns(ctx context.Context, repo, sha string) (*domain.Checks, error) {
	if m.getChecksFunc != nil {
		return m.getChecksFunc(repo, sha)
	}
	checks := domain.SummarizeChecks(0, 0, 0)
	return &checks, nil
}

func (m *mockClient) MergePullRequest(ctx context.Context, repo string, number int, method domain.MergeMethod) (*domain.MergeResult, error) {
	m.mu.Lock()
	m.merged++
	m.mu.Unlock()
	if m.mergeFunc != nil {
		return m.mergeFunc(repo, number, method)
	}
	return &domain.MergeResult{SHA: "abc", Merged: true}, nil
}

func (m *mockClient) GetBranch(ctx context.Context, repo, name string) (*domain.RemoteBranch, error) {
	if m.getBranchFunc != nil {
		return m.getBranchFunc(repo, name)
	}
	return &domain.RemoteBranch{Name: name}, nil
}

// mockLogger is a test double for Logger.
type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockLogger) Printf(format string, v ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, fmt.Sprintf(format, v...))
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.GitHub.Configs = []config.GitHubConfig{{ID: "main", Owner: "acme", Token: "t", Default: true}}
	cfg.Services = []domain.Service{
		{Name: "Auth Service", TestBranch: "develop", MasterBranch: "master"},
	}
	return cfg
}

func newTestService(t *testing.T, client *mockClient) (*PullRequestService, store.Store) {
	t.Helper()
	records := store.NewFileStore(filepath.Join(t.TempDir(), "records.json"), &mockLogger{})
	factory := func(gh config.GitHubConfig) api.PullRequestClient { return client }
	svc := NewPullRequestService(testConfig(), factory, records, branch.NewGenerator(), &mockLogger{})
	return svc, records
}

func boolPtr(b bool) *bool { return &b }

// TestCreateForBranch tests the happy path and base defaulting.
// Follows AAA (Arrange, Act, Assert) pattern.
func TestCreateForBranch(t *testing.T) {
	// Arrange
	client := &mockClient{}
	svc, _ := newTestService(t, client)

	// Act
	pr, err := svc.CreateForBranch(context.Background(), CreatePRRequest{
		ServiceName: "Auth Service",
		Title:       "Add login",
		Head:        "feature/auth-service-add-login-123456",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "develop", pr.BaseRef)
	assert.Equal(t, "https://github.com/acme/auth-service/pull/1", pr.HTMLURL)
}

func TestCreateForBranch_InvalidHead(t *testing.T) {
	client := &mockClient{}
	svc, _ := newTestService(t, client)

	_, err := svc.CreateForBranch(context.Background(), CreatePRRequest{
		ServiceName: "svc",
		Title:       "x",
		Head:        "-bad--name-",
	})

	assert.True(t, errors.Is(err, domain.ErrInvalidBranchName))
	assert.Empty(t, client.created, "no request may reach GitHub")
}

func TestCreateForBranch_MissingFields(t *testing.T) {
	svc, _ := newTestService(t, &mockClient{})

	_, err := svc.CreateForBranch(context.Background(), CreatePRRequest{Head: "feature/x"})

	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestCreateForBranch_NoGitHubConfig(t *testing.T) {
	svc, _ := newTestService(t, &mockClient{})
	svc.cfg.GitHub.Configs = nil

	_, err := svc.CreateForBranch(context.Background(), CreatePRRequest{ServiceName: "s", Title: "t", Head: "feature/x"})

	assert.True(t, errors.Is(err, domain.ErrNoGitHubConfig))
}

// TestMergeToTestAndMaster tests the titles, targets and record updates.
func TestMergeToTestAndMaster(t *testing.T) {
	// Arrange
	client := &mockClient{}
	svc, records := newTestService(t, client)
	ctx := context.Background()
	task := domain.Task{ID: "task-1", Title: "User login", Description: "Add login"}
	record := &domain.ServiceBranch{TaskID: task.ID, ServiceName: "Auth Service", BranchName: "feature/auth-service-user-login-task-1"}
	require.NoError(t, records.Save(ctx, record))

	// Act
	testPR, err := svc.MergeToTest(ctx, task, record)
	require.NoError(t, err)
	masterPR, err := svc.MergeToMaster(ctx, task, record)
	require.NoError(t, err)

	// Assert
	require.Len(t, client.created, 2)
	assert.Equal(t, "[TEST][User login] Merge to Test Branch", client.created[0].Title)
	assert.Equal(t, "develop", client.created[0].Base)
	assert.Contains(t, client.created[0].Body, "feature/auth-service-user-login-task-1")
	assert.Equal(t, "[PROD][User login] Merge to Master Branch", client.created[1].Title)
	assert.Equal(t, "master", client.created[1].Base)
	assert.Contains(t, client.created[1].Body, "not verified")
	assert.Equal(t, 1, testPR.Number)

	stored, err := records.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, masterPR.HTMLURL, stored.PullRequestURL)
	assert.Equal(t, 2, stored.PullRequestNumber)
	assert.False(t, stored.MergedToMaster, "flags follow confirmed merges only")
}

// TestStatus_ChecksFailureNotFatal tests that a check-runs error still
// returns the pull request.
func TestStatus_ChecksFailureNotFatal(t *testing.T) {
	// Arrange
	logger := &mockLogger{}
	client := &mockClient{
		getPRFunc: func(repo string, number int) (*domain.PullRequest, error) {
			assert.Equal(t, "auth-service", repo)
			return &domain.PullRequest{Number: number, State: "open", HeadSHA: "sha"}, nil
		},
		getChecksFunc: func(repo, sha string) (*domain.Checks, error) {
			return nil, &api.APIError{StatusCode: 403, Message: "forbidden"}
		},
	}
	svc, _ := newTestService(t, client)
	svc.logger = logger

	// Act
	status, err := svc.Status(context.Background(), StatusRequest{
		ServiceName:    "Auth Service",
		PullRequestURL: "https://github.com/acme/auth-service/pull/12",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 12, status.Number)
	assert.Nil(t, status.Checks)
	assert.NotEmpty(t, logger.messages)
}

func TestStatus_InvalidURL(t *testing.T) {
	svc, _ := newTestService(t, &mockClient{})

	_, err := svc.Status(context.Background(), StatusRequest{ServiceName: "s", PullRequestURL: "https://github.com/acme/x/issues/3"})

	assert.True(t, errors.Is(err, domain.ErrInvalidPullRequestURL))
}

// TestMerge_Gate tests that only open, mergeable, green pull requests merge.
func TestMerge_Gate(t *testing.T) {
	pending := domain.SummarizeChecks(2, 1, 0)
	failed := domain.SummarizeChecks(2, 2, 1)
	green := domain.SummarizeChecks(2, 2, 0)

	tests := []struct {
		name      string
		pr        domain.PullRequest
		checks    *domain.Checks
		wantMerge bool
	}{
		{"green", domain.PullRequest{State: "open", Mergeable: boolPtr(true), HeadSHA: "s"}, &green, true},
		{"pending checks", domain.PullRequest{State: "open", Mergeable: boolPtr(true), HeadSHA: "s"}, &pending, false},
		{"failed checks", domain.PullRequest{State: "open", Mergeable: boolPtr(true), HeadSHA: "s"}, &failed, false},
		{"conflicts", domain.PullRequest{State: "open", Mergeable: boolPtr(false), HeadSHA: "s"}, &green, false},
		{"unknown mergeability", domain.PullRequest{State: "open", HeadSHA: "s"}, &green, false},
		{"closed", domain.PullRequest{State: "closed", Mergeable: boolPtr(true), HeadSHA: "s"}, &green, false},
		{"already merged", domain.PullRequest{State: "closed", Merged: true, HeadSHA: "s"}, &green, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			client := &mockClient{
				getPRFunc: func(repo string, number int) (*domain.PullRequest, error) {
					pr := tt.pr
					pr.Number = number
					return &pr, nil
				},
				getChecksFunc: func(repo, sha string) (*domain.Checks, error) { return tt.checks, nil },
			}
			svc, _ := newTestService(t, client)
			req := MergeRequest{StatusRequest: StatusRequest{ServiceName: "svc", PullRequestURL: "https://github.com/acme/svc/pull/5"}}

			// Act
			result, err := svc.Merge(context.Background(), req)

			// Assert
			if tt.wantMerge {
				require.NoError(t, err)
				assert.True(t, result.Merged)
				assert.Equal(t, 1, client.merged)
			} else {
				assert.True(t, errors.Is(err, domain.ErrNotMergeable), "got %v", err)
				assert.Equal(t, 0, client.merged)
			}
		})
	}
}

func TestMerge_InvalidMethod(t *testing.T) {
	svc, _ := newTestService(t, &mockClient{})

	_, err := svc.Merge(context.Background(), MergeRequest{
		StatusRequest: StatusRequest{ServiceName: "svc", PullRequestURL: "https://github.com/a/b/pull/1"},
		Method:        "fast-forward",
	})

	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestMerge_UpdatesRecords(t *testing.T) {
	// Arrange
	green := domain.SummarizeChecks(1, 1, 0)
	url := "https://github.com/acme/auth-service/pull/8"
	client := &mockClient{
		getPRFunc: func(repo string, number int) (*domain.PullRequest, error) {
			return &domain.PullRequest{Number: number, State: "open", Mergeable: boolPtr(true), HeadSHA: "s", BaseRef: "master"}, nil
		},
		getChecksFunc: func(repo, sha string) (*domain.Checks, error) { return &green, nil },
	}
	svc, records := newTestService(t, client)
	ctx := context.Background()
	record := &domain.ServiceBranch{ServiceName: "Auth Service", BranchName: "feature/x", PullRequestURL: url}
	require.NoError(t, records.Save(ctx, record))

	// Act
	_, err := svc.Merge(ctx, MergeRequest{StatusRequest: StatusRequest{ServiceName: "Auth Service", PullRequestURL: url}, Method: domain.MergeMethodSquash})

	// Assert
	require.NoError(t, err)
	stored, err := records.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, stored.MergedToMaster)
	assert.Equal(t, domain.BranchStateMerged, stored.State)
	assert.NotNil(t, stored.MasterMergeDate)
}

// TestCreateForTaskServices tests the fan-out keeps order and reports
// per-service failures.
func TestCreateForTaskServices(t *testing.T) {
	// Arrange
	client := &mockClient{
		getBranchFunc: func(repo, name string) (*domain.RemoteBranch, error) {
			if repo == "svc-b" {
				return nil, nil
			}
			return &domain.RemoteBranch{Name: name}, nil
		},
	}
	svc, records := newTestService(t, client)
	ctx := context.Background()
	task := domain.Task{ID: "PROJ-123456", Title: "fix login bug"}

	// Act
	results, err := svc.CreateForTaskServices(ctx, task, []string{"svc-a", "svc-b", "svc-c"}, "")

	// Assert
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "bugfix/svc-a-fix-login-bug-123456", results[0].BranchName)
	assert.NotNil(t, results[0].PullRequest)
	assert.NotEmpty(t, results[0].RecordID)
	assert.Equal(t, "svc-b", results[1].ServiceName)
	assert.Nil(t, results[1].PullRequest)
	assert.Contains(t, results[1].Error, "does not exist")
	assert.NotNil(t, results[2].PullRequest)

	saved, err := records.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

// failingStore is a store whose writes always fail.
type failingStore struct {
	store.Store
	err error
}

func (f *failingStore) Save(ctx context.Context, b *domain.ServiceBranch) error {
	return f.err
}

func TestCreateForTaskServices_SaveFailureKeepsPullRequest(t *testing.T) {
	// Arrange
	client := &mockClient{}
	records := &failingStore{err: errors.New("disk full")}
	factory := func(gh config.GitHubConfig) api.PullRequestClient { return client }
	svc := NewPullRequestService(testConfig(), factory, records, branch.NewGenerator(), &mockLogger{})
	task := domain.Task{ID: "PROJ-123456", Title: "fix login bug"}

	// Act
	results, err := svc.CreateForTaskServices(context.Background(), task, []string{"svc-a"}, "")

	// Assert
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, client.created, 1)
	require.NotNil(t, results[0].PullRequest)
	assert.Equal(t, "https://github.com/acme/svc-a/pull/1", results[0].PullRequest.HTMLURL)
	assert.Empty(t, results[0].RecordID)
	assert.Contains(t, results[0].Error, "disk full")
}

func TestCreateForTaskServices_RequiresTaskID(t *testing.T) {
	client := &mockClient{}
	svc, _ := newTestService(t, client)

	_, err := svc.CreateForTaskServices(context.Background(), domain.Task{Title: "fix login bug"}, []string{"svc-a"}, "")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, client.created)
}

func TestClientFor_CachesPerConfig(t *testing.T) {
	calls := 0
	cfg := testConfig()
	factory := func(gh config.GitHubConfig) api.PullRequestClient {
		calls++
		return &mockClient{}
	}
	svc := NewPullRequestService(cfg, factory, nil, branch.NewGenerator(), &mockLogger{})

	_, _, err1 := svc.clientFor("a", "")
	_, _, err2 := svc.clientFor("b", "main")

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, 1, calls)
}
