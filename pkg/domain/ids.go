// Package domain holds shared domain primitives: typed identifiers parsed and
// validated at trust boundaries so the rest of the code never handles raw
// strings.
package domain

import (
	"github.com/google/uuid"

	dErrors "vcbatch/pkg/domain-errors"
)

// RunID identifies one batch verification run.
type RunID uuid.UUID

// BatchID identifies one bulk issuance batch as assigned by the remote
// issuance service.
type BatchID uuid.UUID

// RecipientID is the correlation id assigned to a bulk recipient at
// validation time. Submission and result processing correlate by this id,
// never by DID or email comparison.
type RecipientID uuid.UUID

func NewRunID() RunID             { return RunID(uuid.New()) }
func NewBatchID() BatchID         { return BatchID(uuid.New()) }
func NewRecipientID() RecipientID { return RecipientID(uuid.New()) }

func (id RunID) String() string       { return uuid.UUID(id).String() }
func (id BatchID) String() string     { return uuid.UUID(id).String() }
func (id RecipientID) String() string { return uuid.UUID(id).String() }

func (id RunID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id BatchID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id RecipientID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared invariant: IDs must be valid, non-nil UUIDs.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be the nil UUID")
	}
	return parsed, nil
}

// ParseRunID validates and converts a string into a RunID.
func ParseRunID(s string) (RunID, error) {
	parsed, err := parseUUID(s, "run_id")
	if err != nil {
		return RunID(uuid.Nil), err
	}
	return RunID(parsed), nil
}

// ParseBatchID validates and converts a string into a BatchID.
func ParseBatchID(s string) (BatchID, error) {
	parsed, err := parseUUID(s, "batch_id")
	if err != nil {
		return BatchID(uuid.Nil), err
	}
	return BatchID(parsed), nil
}

// ParseRecipientID validates and converts a string into a RecipientID.
func ParseRecipientID(s string) (RecipientID, error) {
	parsed, err := parseUUID(s, "recipient_id")
	if err != nil {
		return RecipientID(uuid.Nil), err
	}
	return RecipientID(parsed), nil
}
