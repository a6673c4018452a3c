package service

import (
	"context"
	"sync"
	"time"

	"github.com/vilaca/branchsmith/internal/config"
	"github.com/vilaca/branchsmith/internal/domain"
	"github.com/vilaca/branchsmith/internal/store"
)

// Logger interface for logging operations.
type Logger interface {
	Printf(format string, v ...interface{})
}

// StatusPoller periodically checks the pull requests of open service
// branches and records merges and closures as GitHub reports them.
type StatusPoller struct {
	prService    *PullRequestService
	cfg          *config.Config
	records      store.Store
	pollInterval time.Duration
	initialDelay time.Duration
	logger       Logger
	now          func() time.Time

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewStatusPoller creates a new status poller.
func NewStatusPoller(prService *PullRequestService, cfg *config.Config, records store.Store, pollInterval time.Duration, logger Logger) *StatusPoller {
	return &StatusPoller{
		prService:    prService,
		cfg:          cfg,
		records:      records,
		pollInterval: pollInterval,
		initialDelay: 2 * time.Second,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Start begins periodic polling. Non-blocking; a zero interval disables it.
func (p *StatusPoller) Start() {
	if p.pollInterval <= 0 {
		p.logger.Printf("[StatusPoller] Disabled")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.logger.Printf("[StatusPoller] Starting with %v poll interval", p.pollInterval)
	p.wg.Add(1)
	go p.pollLoop(ctx)
}

// Stop gracefully stops the poller and waits for an in-flight poll.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	p.logger.Printf("[StatusPoller] Stopping...")
	cancel()
	p.wg.Wait()
	p.logger.Printf("[StatusPoller] Stopped")
}

func (p *StatusPoller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	select {
	case <-time.After(p.initialDelay):
	case <-ctx.Done():
		return
	}
	p.Poll(ctx)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Poll checks every open record once and returns how many were updated.
func (p *StatusPoller) Poll(ctx context.Context) int {
	startTime := time.Now()

	open, err := p.records.ListOpen(ctx)
	if err != nil {
		p.logger.Printf("[StatusPoller] Failed to list open records: %v", err)
		return 0
	}

	updated := 0
	for i := range open {
		if ctx.Err() != nil {
			break
		}
		if p.pollRecord(ctx, &open[i]) {
			updated++
		}
	}

	p.logger.Printf("[StatusPoller] Checked %d open records in %v (%d updated)", len(open), time.Since(startTime).Round(time.Millisecond), updated)
	return updated
}

func (p *StatusPoller) pollRecord(ctx context.Context, record *domain.ServiceBranch) bool {
	svc := p.cfg.Service(record.ServiceName)

	status, err := p.prService.Status(ctx, StatusRequest{
		ServiceName:    record.ServiceName,
		PullRequestURL: record.PullRequestURL,
		ConfigID:       svc.ConfigID,
	})
	if err != nil {
		p.logger.Printf("[StatusPoller] %s %s: %v", record.ServiceName, record.PullRequestURL, err)
		return false
	}

	changed := false
	switch {
	case status.Merged:
		at := p.now()
		if status.MergedAt != nil {
			at = status.MergedAt.UTC()
		}
		changed = record.RecordMerge(status.BaseRef, svc.TargetMasterBranch(), at)
	case status.State == "closed":
		record.State = domain.BranchStateStale
		changed = true
	}
	if !changed {
		return false
	}

	if err := p.records.Save(ctx, record); err != nil {
		p.logger.Printf("[StatusPoller] Failed to update record %s: %v", record.ID, err)
		return false
	}
	p.logger.Printf("[StatusPoller] %s %s is now %s", record.ServiceName, record.BranchName, record.State)
	return true
}
