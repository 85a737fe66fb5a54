package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"go.trai.ch/matrix/internal/core/domain"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	pingTimeout = 5 * time.Second

	createTable = `CREATE TABLE IF NOT EXISTS matrix_runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	succeeded   BOOLEAN NOT NULL,
	record      JSONB NOT NULL
)`

	upsertRun = `INSERT INTO matrix_runs (id, started_at, succeeded, record)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET started_at = EXCLUDED.started_at, succeeded = EXCLUDED.succeeded, record = EXCLUDED.record`

	// LIMIT NULL returns every row.
	listRuns = `SELECT record FROM matrix_runs ORDER BY started_at DESC, id DESC LIMIT $1`

	clearRuns = `DELETE FROM matrix_runs`
)

var _ ports.RunStore = (*PostgresStore)(nil)

// PostgresStore implements ports.RunStore on a PostgreSQL table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and creates the runs table when missing.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open history database")
	}
	db.SetMaxOpenConns(4)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, zerr.Wrap(err, "failed to reach history database")
	}

	if _, err := db.ExecContext(ctx, createTable); err != nil {
		_ = db.Close()
		return nil, zerr.Wrap(err, "failed to create history table")
	}
	return &PostgresStore{db: db}, nil
}

// Put upserts the record.
func (s *PostgresStore) Put(ctx context.Context, rec domain.RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return writeFailed(err, "id", rec.ID)
	}
	if _, err := s.db.ExecContext(ctx, upsertRun, rec.ID, rec.StartedAt, rec.Succeeded, data); err != nil {
		return writeFailed(err, "id", rec.ID)
	}
	return nil
}

// List returns the stored records, newest first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	var arg sql.NullInt64
	if limit > 0 {
		arg = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, listRuns, arg)
	if err != nil {
		return nil, readFailed(err, "table", "matrix_runs")
	}
	defer func() { _ = rows.Close() }()

	var records []domain.RunRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, readFailed(err, "table", "matrix_runs")
		}
		var rec domain.RunRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, readFailed(err, "table", "matrix_runs")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, readFailed(err, "table", "matrix_runs")
	}
	return records, nil
}

// Clear deletes every record.
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, clearRuns); err != nil {
		return writeFailed(err, "table", "matrix_runs")
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
