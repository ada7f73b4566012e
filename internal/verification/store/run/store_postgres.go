package run

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "vcbatch/pkg/domain"
	dErrors "vcbatch/pkg/domain-errors"
)

// PostgresStore archives runs in the verification_runs table. Summary and
// results are stored as JSONB; runs are queried whole, never by result row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema is the DDL for the run archive, applied by the migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS verification_runs (
    id          UUID PRIMARY KEY,
    phase       TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    summary     JSONB NOT NULL,
    results     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS verification_runs_finished_at_idx
    ON verification_runs (finished_at DESC);
`

func (s *PostgresStore) Save(ctx context.Context, record *Record) error {
	if record == nil || record.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "record requires a run id")
	}

	summary, err := json.Marshal(record.Summary)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode run summary")
	}
	results, err := json.Marshal(record.Results)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode run results")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO verification_runs (id, phase, started_at, finished_at, summary, results)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			finished_at = EXCLUDED.finished_at,
			summary = EXCLUDED.summary,
			results = EXCLUDED.results`,
		uuid.UUID(record.ID), record.Phase, record.StartedAt, record.FinishedAt, summary, results,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save verification run")
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, runID id.RunID) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, phase, started_at, finished_at, summary, results
		FROM verification_runs WHERE id = $1`,
		uuid.UUID(runID),
	)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "run not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load verification run")
	}
	return record, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, phase, started_at, finished_at, summary, results
		FROM verification_runs ORDER BY finished_at DESC`)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list verification runs")
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "scan verification run")
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "iterate verification runs")
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		record  Record
		rawID   uuid.UUID
		summary []byte
		results []byte
	)
	if err := row.Scan(&rawID, &record.Phase, &record.StartedAt, &record.FinishedAt, &summary, &results); err != nil {
		return nil, err
	}
	record.ID = id.RunID(rawID)
	if err := json.Unmarshal(summary, &record.Summary); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(results, &record.Results); err != nil {
		return nil, err
	}
	return &record, nil
}
