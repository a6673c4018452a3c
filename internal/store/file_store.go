package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vilaca/branchsmith/internal/domain"
)

// fileData represents the structure of the records file.
type fileData struct {
	Timestamp time.Time                        `json:"timestamp"`
	Records   map[string]*domain.ServiceBranch `json:"records"`
}

// FileStore keeps all records in a single JSON file, rewritten atomically
// on every change.
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	logger   Logger
	now      func() time.Time
}

// NewFileStore creates a new file store. The file is created on first write.
func NewFileStore(filePath string, logger Logger) *FileStore {
	return &FileStore{
		filePath: filePath,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// load reads the records file. A missing file is an empty store.
func (s *FileStore) load() (*fileData, error) {
	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return &fileData{Records: map[string]*domain.ServiceBranch{}}, nil
	}
	if err != nil {
		s.logger.Printf("File store: Failed to read %s: %v", s.filePath, err)
		return nil, err
	}

	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		s.logger.Printf("File store: Failed to parse %s: %v", s.filePath, err)
		return nil, fmt.Errorf("failed to parse %s: %w", s.filePath, err)
	}
	if fd.Records == nil {
		fd.Records = map[string]*domain.ServiceBranch{}
	}
	return &fd, nil
}

// write saves the records through a temp file and rename.
func (s *FileStore) write(fd *fileData) error {
	fd.Timestamp = s.now()

	jsonData, err := json.MarshalIndent(fd, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Printf("File store: Failed to create directory %s: %v", dir, err)
		return err
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, jsonData, 0o644); err != nil {
		s.logger.Printf("File store: Failed to write temp file: %v", err)
		return err
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		s.logger.Printf("File store: Failed to rename temp file: %v", err)
		os.Remove(tempFile)
		return err
	}
	return nil
}

// Save inserts or replaces a record.
func (s *FileStore) Save(ctx context.Context, b *domain.ServiceBranch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fd, err := s.load()
	if err != nil {
		return err
	}

	prepare(b, s.now())
	record := *b
	fd.Records[b.ID] = &record

	if err := s.write(fd); err != nil {
		return fmt.Errorf("failed to save record %s: %w", b.ID, err)
	}
	return nil
}

// Get returns one record.
func (s *FileStore) Get(ctx context.Context, id string) (*domain.ServiceBranch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fd, err := s.load()
	if err != nil {
		return nil, err
	}
	record, ok := fd.Records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	return record, nil
}

// List returns every record.
func (s *FileStore) List(ctx context.Context) ([]domain.ServiceBranch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fd, err := s.load()
	if err != nil {
		return nil, err
	}

	records := make([]domain.ServiceBranch, 0, len(fd.Records))
	for _, r := range fd.Records {
		records = append(records, *r)
	}
	sortRecords(records)
	return records, nil
}

// ListByTask returns the records of one task.
func (s *FileStore) ListByTask(ctx context.Context, taskID string) ([]domain.ServiceBranch, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filter(records, byTask(taskID)), nil
}

// ListOpen returns the records with a pull request still to track.
func (s *FileStore) ListOpen(ctx context.Context) ([]domain.ServiceBranch, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filter(records, isOpen), nil
}

// Delete removes a record.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fd, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := fd.Records[id]; !ok {
		return fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	delete(fd.Records, id)
	return s.write(fd)
}

// Close is a no-op; the file is not held open.
func (s *FileStore) Close() error {
	return nil
}
