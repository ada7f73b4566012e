package batch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"vcbatch/internal/bulkissue/models"
	id "vcbatch/pkg/domain"
	dErrors "vcbatch/pkg/domain-errors"
)

// PostgresStore archives batches in the bulk_issuance_batches table.
// Per-recipient credential and failure records are stored as JSONB; batches
// are read whole.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the DDL for batch history, applied by the migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS bulk_issuance_batches (
    id              UUID PRIMARY KEY,
    template_id     TEXT NOT NULL,
    issuer_did      TEXT NOT NULL,
    total_requested INTEGER NOT NULL,
    success_count   INTEGER NOT NULL,
    failure_count   INTEGER NOT NULL,
    status          TEXT NOT NULL,
    credentials     JSONB NOT NULL,
    failures        JSONB NOT NULL,
    processed_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS bulk_issuance_batches_processed_at_idx
    ON bulk_issuance_batches (processed_at DESC);
`

func (s *PostgresStore) Save(ctx context.Context, batch *models.BulkIssuanceBatch) error {
	if batch == nil || batch.BatchID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "batch requires an id")
	}

	credentials, err := json.Marshal(nonNilCredentials(batch.Credentials))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode issued credentials")
	}
	failures, err := json.Marshal(nonNilFailures(batch.Failures))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode batch failures")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bulk_issuance_batches
			(id, template_id, issuer_did, total_requested, success_count, failure_count, status, credentials, failures, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			success_count = EXCLUDED.success_count,
			failure_count = EXCLUDED.failure_count,
			status = EXCLUDED.status,
			credentials = EXCLUDED.credentials,
			failures = EXCLUDED.failures,
			processed_at = EXCLUDED.processed_at`,
		uuid.UUID(batch.BatchID), batch.TemplateID, batch.IssuerDID,
		batch.TotalRequested, batch.SuccessCount, batch.FailureCount,
		string(batch.Status), credentials, failures, batch.ProcessedAt,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save issuance batch")
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, batchID id.BatchID) (*models.BulkIssuanceBatch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, template_id, issuer_did, total_requested, success_count, failure_count, status, credentials, failures, processed_at
		FROM bulk_issuance_batches WHERE id = $1`,
		uuid.UUID(batchID),
	)
	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "batch not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load issuance batch")
	}
	return batch, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.BulkIssuanceBatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, template_id, issuer_did, total_requested, success_count, failure_count, status, credentials, failures, processed_at
		FROM bulk_issuance_batches ORDER BY processed_at DESC`)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list issuance batches")
	}
	defer rows.Close()

	var out []*models.BulkIssuanceBatch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "scan issuance batch")
		}
		out = append(out, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "iterate issuance batches")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*models.BulkIssuanceBatch, error) {
	var (
		batch       models.BulkIssuanceBatch
		rawID       uuid.UUID
		status      string
		credentials []byte
		failures    []byte
	)
	err := row.Scan(&rawID, &batch.TemplateID, &batch.IssuerDID,
		&batch.TotalRequested, &batch.SuccessCount, &batch.FailureCount,
		&status, &credentials, &failures, &batch.ProcessedAt)
	if err != nil {
		return nil, err
	}
	batch.BatchID = id.BatchID(rawID)
	batch.Status = models.BatchStatus(status)
	if err := json.Unmarshal(credentials, &batch.Credentials); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(failures, &batch.Failures); err != nil {
		return nil, err
	}
	if len(batch.Credentials) == 0 {
		batch.Credentials = nil
	}
	if len(batch.Failures) == 0 {
		batch.Failures = nil
	}
	return &batch, nil
}

// JSONB columns are NOT NULL; nil slices marshal as SQL-friendly empty arrays.
func nonNilCredentials(in []models.IssuedCredentialRecord) []models.IssuedCredentialRecord {
	if in == nil {
		return []models.IssuedCredentialRecord{}
	}
	return in
}

func nonNilFailures(in []models.FailureRecord) []models.FailureRecord {
	if in == nil {
		return []models.FailureRecord{}
	}
	return in
}
