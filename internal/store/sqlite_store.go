package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/vilaca/branchsmith/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS service_branches (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_service_branches_task ON service_branches(task_id);`

// SQLiteStore keeps records as JSON documents in a SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger Logger
	now    func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// table exists. Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string, logger Logger) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
		dsn = "file:" + path
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps an in-memory database alive and serializes writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Printf("SQLite store: Opened %s", path)
	return &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Save inserts or replaces a record.
func (s *SQLiteStore) Save(ctx context.Context, b *domain.ServiceBranch) error {
	prepare(b, s.now())

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", b.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO service_branches (id, task_id, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET task_id = excluded.task_id, data = excluded.data, updated_at = excluded.updated_at`,
		b.ID, b.TaskID, string(data), b.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", b.ID, err)
	}
	return nil
}

// Get returns one record.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.ServiceBranch, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM service_branches WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}

	var b domain.ServiceBranch
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	return &b, nil
}

// List returns every record.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.ServiceBranch, error) {
	return s.query(ctx, `SELECT data FROM service_branches`)
}

// ListByTask returns the records of one task.
func (s *SQLiteStore) ListByTask(ctx context.Context, taskID string) ([]domain.ServiceBranch, error) {
	return s.query(ctx, `SELECT data FROM service_branches WHERE task_id = ?`, taskID)
}

// ListOpen returns the records with a pull request still to track.
func (s *SQLiteStore) ListOpen(ctx context.Context) ([]domain.ServiceBranch, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filter(records, isOpen), nil
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...interface{}) ([]domain.ServiceBranch, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := []domain.ServiceBranch{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var b domain.ServiceBranch
		if err := json.Unmarshal([]byte(data), &b); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		records = append(records, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	sortRecords(records)
	return records, nil
}

// Delete removes a record.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM service_branches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		s.logger.Printf("SQLite store: Closing %s", s.path)
		return s.db.Close()
	}
	return nil
}
