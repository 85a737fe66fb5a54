// Package history implements run record stores.
package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/zerr"
)

const recordExt = ".json"

var _ ports.RunStore = (*FileStore)(nil)

// FileStore implements ports.RunStore with one JSON file per run.
type FileStore struct {
	dir string
}

// NewFileStore creates a store keeping records in dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: filepath.Clean(dir)}
}

// Put writes the record, replacing an earlier one with the same ID.
func (s *FileStore) Put(_ context.Context, rec domain.RunRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return writeFailed(err, "id", rec.ID)
	}

	if err := os.MkdirAll(s.dir, domain.DirPerm); err != nil {
		return writeFailed(err, "path", s.dir)
	}

	// Renamed into place so List never reads a partial record.
	tmp, err := os.CreateTemp(s.dir, ".record-")
	if err != nil {
		return writeFailed(err, "path", s.dir)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return writeFailed(err, "path", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return writeFailed(err, "path", tmp.Name())
	}
	if err := os.Chmod(tmp.Name(), domain.FilePerm); err != nil {
		return writeFailed(err, "path", tmp.Name())
	}

	filename := s.filename(rec.ID)
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return writeFailed(err, "path", filename)
	}
	return nil
}

// List returns the stored records, newest first.
func (s *FileStore) List(_ context.Context, limit int) ([]domain.RunRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, readFailed(err, "path", s.dir)
	}

	records := make([]domain.RunRecord, 0, len(entries))
	for _, e := range entries {
		if !isRecordFile(e) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		//nolint:gosec // Path is constructed from the store directory
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, readFailed(err, "path", path)
		}
		var rec domain.RunRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, readFailed(err, "path", path)
		}
		records = append(records, rec)
	}

	SortNewestFirst(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Clear removes every record file.
func (s *FileStore) Clear(_ context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return writeFailed(err, "path", s.dir)
	}
	for _, e := range entries {
		if !isRecordFile(e) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return writeFailed(err, "path", path)
		}
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) filename(id string) string {
	hash := sha256.Sum256([]byte(id))
	return filepath.Join(s.dir, hex.EncodeToString(hash[:])+recordExt)
}

func isRecordFile(e fs.DirEntry) bool {
	return e.Type().IsRegular() && strings.HasSuffix(e.Name(), recordExt) && !strings.HasPrefix(e.Name(), ".")
}

// SortNewestFirst orders records by start time, newest first, breaking ties by ID.
func SortNewestFirst(records []domain.RunRecord) {
	slices.SortStableFunc(records, func(a, b domain.RunRecord) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}

func readFailed(err error, key string, value any) error {
	return zerr.With(fmt.Errorf("%w: %w", domain.ErrHistoryReadFailed, err), key, value)
}

func writeFailed(err error, key string, value any) error {
	return zerr.With(fmt.Errorf("%w: %w", domain.ErrHistoryWriteFailed, err), key, value)
}
