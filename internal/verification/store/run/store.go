// Package run persists finished verification runs so exports stay available
// after the in-memory run registry lets go of them.
package run

import (
	"context"
	"time"

	"vcbatch/internal/verification/aggregator"
	"vcbatch/internal/verification/models"
	id "vcbatch/pkg/domain"
)

// Record is the archived form of a finished run. Immutable once saved: a
// re-verification is a new run with a new id.
type Record struct {
	ID         id.RunID                    `json:"id"`
	Phase      string                      `json:"phase"`
	StartedAt  time.Time                   `json:"started_at"`
	FinishedAt time.Time                   `json:"finished_at"`
	Summary    aggregator.Summary          `json:"summary"`
	Results    []models.VerificationResult `json:"results"`
}

// Store archives finished runs.
type Store interface {
	// Save archives a finished run. Saving the same run id twice replaces
	// the record (last write wins, used only for crash-recovery paths).
	Save(ctx context.Context, record *Record) error

	// Get retrieves an archived run. Returns a not_found domain error if
	// the run was never archived.
	Get(ctx context.Context, runID id.RunID) (*Record, error)

	// List returns archived runs, most recently finished first.
	List(ctx context.Context) ([]*Record, error)
}
