// Package models defines the bulk issuance domain types.
package models

import (
	"strings"
	"time"

	id "vcbatch/pkg/domain"
)

// RecipientStatus tracks a recipient through the submission pipeline.
type RecipientStatus string

const (
	RecipientPending    RecipientStatus = "pending"
	RecipientProcessing RecipientStatus = "processing"
	RecipientSuccess    RecipientStatus = "success"
	RecipientError      RecipientStatus = "error"
)

// BulkRecipient is one issuance target. At least one of RecipientDID or
// RecipientEmail must be non-empty for the recipient to be eligible for
// submission; ineligible recipients are excluded before dispatch, never
// submitted and then rejected.
//
// RecipientID is assigned during validation and is the correlation key
// between submitted recipients and per-recipient outcomes; DIDs and emails
// may repeat across rows.
type BulkRecipient struct {
	RecipientID       id.RecipientID  `json:"recipient_id"`
	RecipientDID      string          `json:"recipient_did,omitempty"`
	RecipientEmail    string          `json:"recipient_email,omitempty"`
	CredentialSubject map[string]any  `json:"credential_subject,omitempty"`
	CustomClaims      map[string]any  `json:"custom_claims,omitempty"`
	Status            RecipientStatus `json:"status"`
	Error             string          `json:"error,omitempty"`
	CredentialID      string          `json:"credential_id,omitempty"`
}

// HasIdentifier reports whether the recipient carries a usable DID or email
// after whitespace trimming.
func (r BulkRecipient) HasIdentifier() bool {
	return strings.TrimSpace(r.RecipientDID) != "" || strings.TrimSpace(r.RecipientEmail) != ""
}

// BatchStatus is the remote service's authoritative batch state. Transitions
// are observed, never computed locally: processing resolves to completed
// (failureCount=0), partial (0 < failureCount < totalRequested), or failed
// (successCount=0).
type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchPartial    BatchStatus = "partial"
	BatchFailed     BatchStatus = "failed"
)

// Terminal reports whether the batch will no longer change on refresh.
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchPartial || s == BatchFailed
}

// IssuedCredentialRecord is one successfully issued credential within a batch.
type IssuedCredentialRecord struct {
	CredentialID   string    `json:"credential_id"`
	RecipientDID   string    `json:"recipient_did,omitempty"`
	RecipientEmail string    `json:"recipient_email,omitempty"`
	IssuedAt       time.Time `json:"issued_at"`
}

// FailureRecord is one per-recipient failure reported by the remote service.
type FailureRecord struct {
	RecipientDID   string `json:"recipient_did,omitempty"`
	RecipientEmail string `json:"recipient_email,omitempty"`
	Reason         string `json:"reason"`
}

// BulkIssuanceBatch is the unit of bulk issuance history. Created by a
// submission call, refreshed by polling, immutable once terminal; a new
// submission always creates a new batch.
type BulkIssuanceBatch struct {
	BatchID        id.BatchID               `json:"batch_id"`
	TemplateID     string                   `json:"template_id"`
	IssuerDID      string                   `json:"issuer_did"`
	TotalRequested int                      `json:"total_requested"`
	SuccessCount   int                      `json:"success_count"`
	FailureCount   int                      `json:"failure_count"`
	Status         BatchStatus              `json:"status"`
	Credentials    []IssuedCredentialRecord `json:"credentials,omitempty"`
	Failures       []FailureRecord          `json:"failures,omitempty"`
	ProcessedAt    time.Time                `json:"processed_at"`
}
