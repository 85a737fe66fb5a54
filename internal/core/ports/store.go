package ports

import (
	"context"

	"go.trai.ch/matrix/internal/core/domain"
)

// RunStore persists run records.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type RunStore interface {
	// Put stores a run record, replacing any record with the same ID.
	Put(ctx context.Context, rec domain.RunRecord) error

	// List returns at most limit records, newest first. limit <= 0 returns all records.
	List(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
