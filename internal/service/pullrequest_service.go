package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vilaca/branchsmith/internal/api"
	"github.com/vilaca/branchsmith/internal/branch"
	"github.com/vilaca/branchsmith/internal/config"
	"github.com/vilaca/branchsmith/internal/domain"
	"github.com/vilaca/branchsmith/internal/store"
)

// maxParallelServices bounds the pull requests opened at once for one task.
const maxParallelServices = 4

// ClientFactory builds a GitHub client for one set of credentials.
type ClientFactory func(gh config.GitHubConfig) api.PullRequestClient

// CreatePRRequest asks for a pull request from Head into Base.
type CreatePRRequest struct {
	ServiceName string `json:"serviceName"`
	Title       string `json:"title"`
	Head        string `json:"head"`
	Base        string `json:"base"`
	Body        string `json:"body,omitempty"`
	ConfigID    string `json:"configId,omitempty"`
}

// StatusRequest identifies a pull request by its URL.
type StatusRequest struct {
	ServiceName    string `json:"serviceName"`
	PullRequestURL string `json:"pullRequestUrl"`
	ConfigID       string `json:"configId,omitempty"`
}

// MergeRequest asks for a gated merge of a pull request.
type MergeRequest struct {
	StatusRequest
	Method domain.MergeMethod `json:"method,omitempty"`
}

// ServicePullRequest is the outcome of opening a pull request for one service.
type ServicePullRequest struct {
	ServiceName string              `json:"serviceName" yaml:"serviceName"`
	BranchName  string              `json:"branchName" yaml:"branchName"`
	RecordID    string              `json:"recordId,omitempty" yaml:"recordId,omitempty"`
	PullRequest *domain.PullRequest `json:"pullRequest,omitempty" yaml:"pullRequest,omitempty"`
	Error       string              `json:"error,omitempty" yaml:"error,omitempty"`
}

// PullRequestService opens, inspects and merges pull requests for service
// branches, keeping the branch records in step.
type PullRequestService struct {
	cfg       *config.Config
	factory   ClientFactory
	records   store.Store
	generator *branch.Generator
	logger    Logger
	now       func() time.Time

	clients map[string]api.PullRequestClient // GitHub config id -> client
	mu      sync.Mutex
}

// NewPullRequestService creates a new pull request service. records may be
// nil, in which case nothing is persisted.
func NewPullRequestService(cfg *config.Config, factory ClientFactory, records store.Store, generator *branch.Generator, logger Logger) *PullRequestService {
	return &PullRequestService{
		cfg:       cfg,
		factory:   factory,
		records:   records,
		generator: generator,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		clients:   make(map[string]api.PullRequestClient),
	}
}

// RegisterClient registers the client used for a GitHub config id.
func (s *PullRequestService) RegisterClient(configID string, client api.PullRequestClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[configID] = client
}

// clientFor resolves the service and the client for its GitHub config.
// An explicit configID wins over the one configured on the service.
func (s *PullRequestService) clientFor(serviceName, configID string) (domain.Service, api.PullRequestClient, error) {
	svc := s.cfg.Service(serviceName)
	if configID == "" {
		configID = svc.ConfigID
	}

	gh, err := s.cfg.SelectGitHub(configID)
	if err != nil {
		return svc, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.clients[gh.ID]
	if !ok {
		client = s.factory(gh)
		s.clients[gh.ID] = client
	}
	return svc, client, nil
}

// CreateForBranch opens a pull request. The head branch must be a valid
// ref name; an empty base targets the service's test branch.
func (s *PullRequestService) CreateForBranch(ctx context.Context, req CreatePRRequest) (*domain.PullRequest, error) {
	if strings.TrimSpace(req.ServiceName) == "" || strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: serviceName and title are required", domain.ErrInvalidInput)
	}
	if err := branch.Validate(req.Head).Err(); err != nil {
		return nil, fmt.Errorf("head %q: %w", req.Head, err)
	}

	svc, client, err := s.clientFor(req.ServiceName, req.ConfigID)
	if err != nil {
		return nil, err
	}

	base := req.Base
	if base == "" {
		base = svc.TargetTestBranch()
	}

	s.logger.Printf("[PRService] Creating pull request %s -> %s on %s", req.Head, base, svc.RepositoryName())
	pr, err := client.CreatePullRequest(ctx, svc.RepositoryName(), domain.PullRequestInput{
		Title: req.Title,
		Head:  req.Head,
		Base:  base,
		Body:  req.Body,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Printf("[PRService] Created pull request #%d: %s", pr.Number, pr.HTMLURL)
	return pr, nil
}

// MergeToTest opens the pull request that takes a service branch into the
// service's test branch and records it.
func (s *PullRequestService) MergeToTest(ctx context.Context, task domain.Task, record *domain.ServiceBranch) (*domain.PullRequest, error) {
	svc := s.cfg.Service(record.ServiceName)
	target := svc.TargetTestBranch()

	body := fmt.Sprintf("**Merge to test branch**\n\n**Task**: %s\n**Description**: %s\n**Branch**: %s\n**Target**: %s\n\n"+
		"This pull request only updates the test environment. Review code quality and completeness, then merge for verification.",
		task.Title, task.Description, record.BranchName, target)

	return s.openForRecord(ctx, record, CreatePRRequest{
		ServiceName: record.ServiceName,
		Title:       fmt.Sprintf("[TEST][%s] Merge to Test Branch", task.Title),
		Head:        record.BranchName,
		Base:        target,
		Body:        body,
	})
}

// MergeToMaster opens the pull request that takes a service branch into the
// service's master branch and records it.
func (s *PullRequestService) MergeToMaster(ctx context.Context, task domain.Task, record *domain.ServiceBranch) (*domain.PullRequest, error) {
	svc := s.cfg.Service(record.ServiceName)
	target := svc.TargetMasterBranch()

	verified := "not verified on the test branch"
	if record.MergedToTest {
		verified = "verified on the test branch"
	}
	body := fmt.Sprintf("**Merge to master branch**\n\n**Task**: %s\n**Description**: %s\n**Branch**: %s\n**Target**: %s\n\n"+
		"**Status**: %s\n\n**Before merging**:\n- verified on the test branch\n- functional tests pass\n- performance tests pass\n- security review done\n\n"+
		"This merges into production. Review carefully.",
		task.Title, task.Description, record.BranchName, target, verified)

	return s.openForRecord(ctx, record, CreatePRRequest{
		ServiceName: record.ServiceName,
		Title:       fmt.Sprintf("[PROD][%s] Merge to Master Branch", task.Title),
		Head:        record.BranchName,
		Base:        target,
		Body:        body,
	})
}

func (s *PullRequestService) openForRecord(ctx context.Context, record *domain.ServiceBranch, req CreatePRRequest) (*domain.PullRequest, error) {
	pr, err := s.CreateForBranch(ctx, req)
	if err != nil {
		return nil, err
	}

	record.PullRequestURL = pr.HTMLURL
	record.PullRequestNumber = pr.Number
	if err := s.save(ctx, record); err != nil {
		return pr, err
	}
	return pr, nil
}

// Status fetches a pull request and the checks on its head commit. Failing
// to read the checks is logged and leaves Checks nil.
func (s *PullRequestService) Status(ctx context.Context, req StatusRequest) (*domain.PullRequestStatus, error) {
	number, err := domain.ParsePullRequestURL(req.PullRequestURL)
	if err != nil {
		return nil, err
	}

	svc, client, err := s.clientFor(req.ServiceName, req.ConfigID)
	if err != nil {
		return nil, err
	}
	repo := svc.RepositoryName()

	pr, err := client.GetPullRequest(ctx, repo, number)
	if err != nil {
		return nil, err
	}

	status := &domain.PullRequestStatus{PullRequest: *pr}
	if pr.HeadSHA != "" {
		checks, err := client.GetCheckRuns(ctx, repo, pr.HeadSHA)
		if err != nil {
			s.logger.Printf("[PRService] Failed to fetch checks for %s#%d: %v", repo, number, err)
		} else {
			status.Checks = checks
		}
	}
	return status, nil
}

// Merge merges a pull request that is open, mergeable and green, then
// marks the matching records as merged.
func (s *PullRequestService) Merge(ctx context.Context, req MergeRequest) (*domain.MergeResult, error) {
	method, err := domain.ParseMergeMethod(string(req.Method))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	status, err := s.Status(ctx, req.StatusRequest)
	if err != nil {
		return nil, err
	}
	if !status.CanMerge() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotMergeable, describeGate(status))
	}

	svc, client, err := s.clientFor(req.ServiceName, req.ConfigID)
	if err != nil {
		return nil, err
	}

	result, err := client.MergePullRequest(ctx, svc.RepositoryName(), status.Number, method)
	if err != nil {
		return nil, err
	}
	s.logger.Printf("[PRService] Merged %s#%d into %s (%s)", svc.RepositoryName(), status.Number, status.BaseRef, method)

	if result.Merged {
		s.recordMerge(ctx, req.PullRequestURL, status.BaseRef, svc)
	}
	return result, nil
}

func describeGate(status *domain.PullRequestStatus) string {
	var reasons []string
	if status.State != "open" {
		reasons = append(reasons, "state is "+status.State)
	}
	if status.Merged {
		reasons = append(reasons, "already merged")
	}
	if status.Mergeable == nil {
		reasons = append(reasons, "mergeability not computed yet")
	} else if !*status.Mergeable {
		reasons = append(reasons, "has conflicts")
	}
	if status.Checks == nil {
		reasons = append(reasons, "checks unavailable")
	} else if status.Checks.State != domain.CheckStateSuccess {
		reasons = append(reasons, "checks are "+string(status.Checks.State))
	}
	return strings.Join(reasons, ", ")
}

// recordMerge updates every record that points at the merged pull request.
func (s *PullRequestService) recordMerge(ctx context.Context, prURL, base string, svc domain.Service) {
	if s.records == nil {
		return
	}
	open, err := s.records.ListOpen(ctx)
	if err != nil {
		s.logger.Printf("[PRService] Failed to list records: %v", err)
		return
	}
	for i := range open {
		record := &open[i]
		if record.PullRequestURL != prURL {
			continue
		}
		if record.RecordMerge(base, svc.TargetMasterBranch(), s.now()) {
			if err := s.save(ctx, record); err != nil {
				s.logger.Printf("[PRService] Failed to update record %s: %v", record.ID, err)
			}
		}
	}
}

// CreateForTaskServices generates the task's branch for every service and
// opens a pull request for each one into base (or the service's test
// branch). Services are processed concurrently; results keep input order
// and carry per-service errors. Heads must already exist on GitHub.
func (s *PullRequestService) CreateForTaskServices(ctx context.Context, task domain.Task, services []string, base string) ([]ServicePullRequest, error) {
	if strings.TrimSpace(task.Title) == "" {
		return nil, fmt.Errorf("%w: task title is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(task.ID) == "" {
		return nil, fmt.Errorf("%w: task id is required", domain.ErrInvalidInput)
	}

	branches := s.generator.GenerateMulti(task.Title, services, branch.RequestForTask(task, ""))
	results := make([]ServicePullRequest, len(branches))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelServices)
	for i, b := range branches {
		results[i] = ServicePullRequest{ServiceName: b.ServiceName, BranchName: b.BranchName}
		g.Go(func() error {
			pr, recordID, err := s.createForService(ctx, task, b, base)
			// A pull request opened before a later failure is still reported.
			results[i].PullRequest = pr
			if err != nil {
				s.logger.Printf("[PRService] %s: %v", b.ServiceName, err)
				results[i].Error = err.Error()
				return nil
			}
			results[i].RecordID = recordID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *PullRequestService) createForService(ctx context.Context, task domain.Task, b branch.ServiceResult, base string) (*domain.PullRequest, string, error) {
	svc, client, err := s.clientFor(b.ServiceName, "")
	if err != nil {
		return nil, "", err
	}

	remote, err := client.GetBranch(ctx, svc.RepositoryName(), b.BranchName)
	if err != nil {
		return nil, "", err
	}
	if remote == nil {
		return nil, "", fmt.Errorf("%w: branch %s does not exist in %s", domain.ErrNotFound, b.BranchName, svc.RepositoryName())
	}

	pr, err := s.CreateForBranch(ctx, CreatePRRequest{
		ServiceName: b.ServiceName,
		Title:       task.Title,
		Head:        b.BranchName,
		Base:        base,
		Body:        task.Description,
	})
	if err != nil {
		return nil, "", err
	}

	record := &domain.ServiceBranch{
		TaskID:            task.ID,
		ServiceName:       b.ServiceName,
		BranchName:        b.BranchName,
		TaskType:          b.TaskType,
		PullRequestURL:    pr.HTMLURL,
		PullRequestNumber: pr.Number,
	}
	if err := s.save(ctx, record); err != nil {
		return pr, "", err
	}
	return pr, record.ID, nil
}

func (s *PullRequestService) save(ctx context.Context, record *domain.ServiceBranch) error {
	if s.records == nil {
		return nil
	}
	if err := s.records.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}
