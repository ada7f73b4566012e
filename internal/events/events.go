// Package events defines the domain events emitted by the verification and
// bulk issuance pipelines. Orchestration code emits events; presentation
// concerns (notifications, dashboards, SIEM) subscribe to them. Keep the event
// shape transport-agnostic so sinks can fan out.
package events

import (
	"context"
	"log/slog"
	"time"

	"vcbatch/internal/platform/middleware"
)

// Category classifies events by their primary purpose so sinks can apply
// different retention and routing.
type Category string

const (
	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations Category = "operations"

	// CategorySecurity covers events relevant to security monitoring.
	// Examples: rejected submissions, auth-adjacent failures.
	CategorySecurity Category = "security"
)

// Action names the thing that happened. Values are part of the consumer
// contract; add, never rename.
type Action string

const (
	ActionItemFailed        Action = "verification_item_failed"
	ActionRunCompleted      Action = "verification_run_completed"
	ActionRunStopped        Action = "verification_run_stopped"
	ActionSubmissionOK      Action = "bulk_submission_accepted"
	ActionSubmissionFailed  Action = "bulk_submission_failed"
	ActionRecipientsDropped Action = "bulk_recipients_rejected"
)

// Event is emitted from orchestration logic to capture key outcomes.
type Event struct {
	Category  Category  `json:"category"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`

	// RunID or BatchID identifies the unit of work; at most one is set.
	RunID   string `json:"run_id,omitempty"`
	BatchID string `json:"batch_id,omitempty"`

	// Aggregate counters at the time of emission.
	Total     int `json:"total,omitempty"`
	Succeeded int `json:"succeeded,omitempty"`
	Failed    int `json:"failed,omitempty"`
	Warnings  int `json:"warnings,omitempty"`

	Reason string `json:"reason,omitempty"`

	// Caller metadata, filled from request context by Emit.
	Operator  string `json:"operator,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Publisher delivers events to a sink. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Emit enriches the event with caller metadata from the context, stamps it,
// and hands it to the publisher. Publish failures are logged and swallowed:
// event delivery never fails a batch operation.
func Emit(ctx context.Context, logger *slog.Logger, pub Publisher, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Operator == "" {
		event.Operator = middleware.GetOperator(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = middleware.GetClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = middleware.GetClientName(ctx)
	}

	if pub == nil {
		return
	}
	if err := pub.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "event publish failed",
			"action", event.Action,
			"run_id", event.RunID,
			"batch_id", event.BatchID,
			"error", err,
		)
	}
}
