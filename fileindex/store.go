// Package fileindex provides a file-backed metadata index. The whole
// collection is read, modified, and rewritten on every append, which is
// only safe because a single per-process mutex serializes all mutations.
// It suits single-instance deployments; multi-instance deployments should
// use the sqlite or postgres backends instead.
package fileindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dostvardhan/drivegate"
)

// Store persists transfer records as a single JSON document.
type Store struct {
	path string

	mu sync.Mutex
}

// NewStore creates a Store backed by the given file path. The file is
// created on first append; a missing file reads as an empty index.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("new file index: path cannot be empty")
	}
	return &Store{path: path}, nil
}

func (s *Store) Append(ctx context.Context, rec drivegate.TransferRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("append: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return fmt.Errorf("append: %w", err)
	}

	for _, existing := range records {
		if existing.StorageID == rec.StorageID {
			return fmt.Errorf("append: duplicate storage id %s: %w", rec.StorageID, drivegate.ErrInvalidInput)
		}
	}

	records = append(records, rec)

	if err := s.write(records); err != nil {
		return fmt.Errorf("append: %w", err)
	}

	return nil
}

func (s *Store) List(ctx context.Context, limit int) ([]drivegate.TransferRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	s.mu.Lock()
	records, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UploadedAt.After(records[j].UploadedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

func (s *Store) Get(ctx context.Context, storageID string) (drivegate.TransferRecord, error) {
	if err := ctx.Err(); err != nil {
		return drivegate.TransferRecord{}, fmt.Errorf("get: %w", err)
	}

	s.mu.Lock()
	records, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return drivegate.TransferRecord{}, fmt.Errorf("get: %w", err)
	}

	for _, rec := range records {
		if rec.StorageID == storageID {
			return rec, nil
		}
	}

	return drivegate.TransferRecord{}, drivegate.ErrNotFound
}

func (s *Store) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}

	s.mu.Lock()
	records, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}

	return len(records), nil
}

// read loads the collection. Callers must hold the mutex.
func (s *Store) read() ([]drivegate.TransferRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var records []drivegate.TransferRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("read index: decode: %w", err)
	}

	return records, nil
}

// write rewrites the whole collection through a temp file and rename so
// a crash mid-write never leaves a truncated index. Callers must hold
// the mutex.
func (s *Store) write(records []drivegate.TransferRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("write index: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmpPath := filepath.Join(dir, tmpFileName())

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write index: temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write index: rename: %w", err)
	}

	return nil
}

func tmpFileName() string {
	return fmt.Sprintf(".t%s", uuid.New().String())
}
