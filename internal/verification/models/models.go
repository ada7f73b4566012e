// Package models defines the verification domain types shared by the
// scheduler, aggregator, client, and handlers.
package models

import (
	"encoding/json"
	"time"
)

// VerificationItem is one unit of work for a verification run: an opaque
// caller-supplied identifier plus either a credential or a presentation
// payload (a presentation may embed zero or more credentials). Immutable once
// enqueued.
//
// Item IDs are not required to be unique; results are keyed by their position
// in the run (Seq), so duplicate IDs never collide.
type VerificationItem struct {
	ID           string          `json:"id"`
	Credential   json.RawMessage `json:"credential,omitempty"`
	Presentation json.RawMessage `json:"presentation,omitempty"`
}

// IsPresentation reports whether the item carries a presentation payload.
// Items with both payloads are treated as presentations.
func (i VerificationItem) IsPresentation() bool {
	return len(i.Presentation) > 0
}

// ResultStatus is the terminal (or pending) state of one verified item.
type ResultStatus string

const (
	StatusPending  ResultStatus = "pending"
	StatusVerified ResultStatus = "verified"
	StatusFailed   ResultStatus = "failed"
	StatusWarning  ResultStatus = "warning"
)

// CheckStatus is the outcome of a single named check inside a result.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckFailed  CheckStatus = "failed"
	CheckSkipped CheckStatus = "skipped"
	CheckWarning CheckStatus = "warning"
)

// VerificationCheck is one sub-check reported by the remote verifier. Order
// is insertion order from the verifier and must be preserved for display
// fidelity.
type VerificationCheck struct {
	Name    string         `json:"name"`
	Status  CheckStatus    `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ResultMetadata carries the verifier's boolean sub-checks and trust score.
//
// TrustScore is always an integer percentage in [0,100]. Verifier builds that
// report a [0,1] fraction are normalized at the client boundary; nothing past
// the client ever sees the fractional scale.
type ResultMetadata struct {
	IssuerVerified bool `json:"issuer_verified"`
	SchemaValid    bool `json:"schema_valid"`
	SignatureValid bool `json:"signature_valid"`
	NotExpired     bool `json:"not_expired"`
	NotRevoked     bool `json:"not_revoked"`
	TrustScore     int  `json:"trust_score"`
}

// VerificationResult is the immutable outcome of verifying one item. A
// re-verification produces a new result with a new timestamp; results are
// never mutated after creation.
type VerificationResult struct {
	// Seq is the item's position in the run input. It is the unique key for
	// a result within a run; ItemID may repeat.
	Seq    int    `json:"seq"`
	ItemID string `json:"item_id"`

	Status   ResultStatus        `json:"status"`
	Errors   []string            `json:"errors,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
	Checks   []VerificationCheck `json:"checks,omitempty"`

	DurationMS int64          `json:"duration_ms"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   ResultMetadata `json:"metadata"`
}

// FailedResult converts a verification error into a terminal failed result:
// all metadata booleans false, trust score zero. A single item's failure never
// aborts a run, so every error must become one of these.
func FailedResult(seq int, itemID string, errMsg string, duration time.Duration) VerificationResult {
	return VerificationResult{
		Seq:        seq,
		ItemID:     itemID,
		Status:     StatusFailed,
		Errors:     []string{errMsg},
		DurationMS: duration.Milliseconds(),
		Timestamp:  time.Now(),
		Metadata:   ResultMetadata{},
	}
}

// BatchProgress is the per-chunk progress snapshot for a run.
//
// Invariants after every update:
//   - Completed == Verified + Failed + Warnings
//   - Completed <= Total
type BatchProgress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Verified  int `json:"verified"`
	Failed    int `json:"failed"`
	Warnings  int `json:"warnings"`

	// CurrentItem is the ID of the next item to be dispatched, empty once
	// the run has no further work.
	CurrentItem string `json:"current_item,omitempty"`

	// ETASeconds estimates time remaining as
	// averageElapsedPerCompletedItem * remainingItemCount. Nil until at
	// least one item has completed.
	ETASeconds *float64 `json:"estimated_time_remaining_seconds,omitempty"`
}

// Remaining returns the number of items not yet completed.
func (p BatchProgress) Remaining() int {
	return p.Total - p.Completed
}
