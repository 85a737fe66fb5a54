package history

import (
	"context"
	"path/filepath"

	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
)

// Opener opens the run store selected by a history configuration.
type Opener func(ctx context.Context, cfg domain.HistoryConfig, stateDir string) (ports.RunStore, error)

// Open returns a PostgresStore when cfg names a DSN, and a FileStore under
// stateDir otherwise.
func Open(ctx context.Context, cfg domain.HistoryConfig, stateDir string) (ports.RunStore, error) {
	if cfg.DSN != "" {
		return OpenPostgres(ctx, cfg.DSN)
	}
	return NewFileStore(filepath.Join(stateDir, domain.HistoryDirName)), nil
}
