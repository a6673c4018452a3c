// Package store persists service branch records. Records are opaque JSON
// documents keyed by id; backends differ only in where the bytes live.
package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vilaca/branchsmith/internal/config"
	"github.com/vilaca/branchsmith/internal/domain"
)

// Store keeps service branch records.
type Store interface {
	// Save inserts or replaces a record. A record without an ID gets a new
	// one, and the timestamps are maintained.
	Save(ctx context.Context, b *domain.ServiceBranch) error

	// Get returns the record with the given id or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.ServiceBranch, error)

	// ListByTask returns the records of one task, oldest first.
	ListByTask(ctx context.Context, taskID string) ([]domain.ServiceBranch, error)

	// ListOpen returns records whose pull request still needs tracking.
	ListOpen(ctx context.Context) ([]domain.ServiceBranch, error)

	// List returns every record, oldest first.
	List(ctx context.Context) ([]domain.ServiceBranch, error)

	// Delete removes a record. Deleting a missing record returns domain.ErrNotFound.
	Delete(ctx context.Context, id string) error

	Close() error
}

// Logger interface for logging operations.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Open returns the backend selected by cfg.Driver.
func Open(cfg config.StoreConfig, logger Logger) (Store, error) {
	switch cfg.Driver {
	case config.StoreDriverFile, "":
		return NewFileStore(cfg.Path, logger), nil
	case config.StoreDriverSQLite:
		return NewSQLiteStore(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// prepare fills in the id and timestamps before a record is written.
func prepare(b *domain.ServiceBranch, now time.Time) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.State == "" {
		b.State = domain.BranchStateActive
	}
	b.UpdatedAt = now
}

func sortRecords(records []domain.ServiceBranch) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}

func filter(records []domain.ServiceBranch, keep func(domain.ServiceBranch) bool) []domain.ServiceBranch {
	out := make([]domain.ServiceBranch, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func byTask(taskID string) func(domain.ServiceBranch) bool {
	return func(b domain.ServiceBranch) bool { return b.TaskID == taskID }
}

func isOpen(b domain.ServiceBranch) bool { return b.IsOpen() }
