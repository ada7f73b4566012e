// Package service orchestrates the bulk issuance pipeline: validate
// recipients, submit the valid subset, persist batch history, and refresh
// batch status on demand.
package service

import (
	"context"
	"log/slog"
	"time"

	"vcbatch/internal/bulkissue/client"
	"vcbatch/internal/bulkissue/metrics"
	"vcbatch/internal/bulkissue/models"
	"vcbatch/internal/bulkissue/store/batch"
	"vcbatch/internal/bulkissue/validator"
	"vcbatch/internal/events"
	id "vcbatch/pkg/domain"
	dErrors "vcbatch/pkg/domain-errors"
)

// StatusCache is the optional read-through cache for batch snapshots.
type StatusCache interface {
	Put(ctx context.Context, batch *models.BulkIssuanceBatch) error
	Fetch(ctx context.Context, batchID id.BatchID) (*models.BulkIssuanceBatch, error)
}

// SubmitOutcome pairs the accepted batch with the recipients rejected during
// local validation. Rejections are informational; they were never sent.
type SubmitOutcome struct {
	Batch    *models.BulkIssuanceBatch `json:"batch"`
	Rejected []validator.Rejection     `json:"rejected,omitempty"`
}

// Service runs bulk issuance submissions against the remote issuer.
type Service struct {
	issuer    client.Issuer
	store     batch.Store
	cache     StatusCache
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithPublisher wires an event sink.
func WithPublisher(pub events.Publisher) Option {
	return func(s *Service) { s.publisher = pub }
}

// WithMetrics wires prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithStatusCache wires the Redis snapshot cache.
func WithStatusCache(cache StatusCache) Option {
	return func(s *Service) { s.cache = cache }
}

// New creates a bulk issuance service.
func New(issuer client.Issuer, store batch.Store, opts ...Option) *Service {
	s := &Service{
		issuer: issuer,
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates the recipient list and submits only the valid subset.
// Validation is fail-open per recipient: rejected entries are reported in the
// outcome while the rest proceed. Submission errors from the issuer propagate
// to the caller untouched; re-submitting is the caller's decision.
func (s *Service) Submit(ctx context.Context, templateID, issuerDID string, recipients []models.BulkRecipient, opts client.Options) (*SubmitOutcome, error) {
	if templateID == "" || issuerDID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "template id and issuer did are required")
	}

	result := validator.Validate(recipients)
	s.recordRejections(ctx, result.Rejected)

	if len(result.Valid) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "no valid recipients to submit")
	}

	issued, err := s.dispatch(ctx, func() (*models.BulkIssuanceBatch, error) {
		return s.issuer.Submit(ctx, templateID, issuerDID, result.Valid, opts)
	})
	if err != nil {
		return nil, err
	}

	return &SubmitOutcome{Batch: issued, Rejected: result.Rejected}, nil
}

// SubmitCSV parses the file fail-closed: any structural problem blocks the
// whole upload and the row-level messages are returned for a one-pass fix.
// When every row is eligible the original file is forwarded as-is; when some
// rows lack identifiers, the eligible subset is submitted as a structured
// list so ineligible recipients are never dispatched.
func (s *Service) SubmitCSV(ctx context.Context, templateID, issuerDID, filename string, csvData []byte) (*SubmitOutcome, []string, error) {
	if templateID == "" || issuerDID == "" {
		return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "template id and issuer did are required")
	}

	candidates, problems := validator.FromCSV(string(csvData))
	if len(problems) > 0 {
		return nil, problems, dErrors.New(dErrors.CodeInvalidInput, "csv file failed validation")
	}

	result := validator.Validate(candidates)
	s.recordRejections(ctx, result.Rejected)

	if len(result.Valid) == 0 {
		return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "no valid recipients to submit")
	}

	var issued *models.BulkIssuanceBatch
	var err error
	if len(result.Rejected) == 0 {
		issued, err = s.dispatch(ctx, func() (*models.BulkIssuanceBatch, error) {
			return s.issuer.SubmitCSV(ctx, templateID, issuerDID, filename, csvData)
		})
	} else {
		issued, err = s.dispatch(ctx, func() (*models.BulkIssuanceBatch, error) {
			return s.issuer.Submit(ctx, templateID, issuerDID, result.Valid, client.Options{})
		})
	}
	if err != nil {
		return nil, nil, err
	}

	return &SubmitOutcome{Batch: issued, Rejected: result.Rejected}, nil, nil
}

// dispatch wraps one submission call with metrics, events, and persistence.
func (s *Service) dispatch(ctx context.Context, call func() (*models.BulkIssuanceBatch, error)) (*models.BulkIssuanceBatch, error) {
	start := time.Now()
	issued, err := call()
	if s.metrics != nil {
		s.metrics.ObserveSubmit(start)
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.SubmissionsFailed.Inc()
		}
		events.Emit(ctx, s.logger, s.publisher, events.Event{
			Category: events.CategorySecurity,
			Action:   events.ActionSubmissionFailed,
			Reason:   err.Error(),
		})
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SubmissionsAccepted.Inc()
		s.metrics.RecipientsSubmitted.Add(float64(issued.TotalRequested))
	}
	events.Emit(ctx, s.logger, s.publisher, events.Event{
		Category:  events.CategoryOperations,
		Action:    events.ActionSubmissionOK,
		BatchID:   issued.BatchID.String(),
		Total:     issued.TotalRequested,
		Succeeded: issued.SuccessCount,
		Failed:    issued.FailureCount,
	})

	s.persist(ctx, issued)
	return issued, nil
}

// persist archives the snapshot and warms the cache. Failures are logged but
// do not fail the submission; the remote batch already exists.
func (s *Service) persist(ctx context.Context, issued *models.BulkIssuanceBatch) {
	if err := s.store.Save(ctx, issued); err != nil {
		s.logger.ErrorContext(ctx, "failed to archive issuance batch",
			"batch_id", issued.BatchID.String(), "error", err)
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, issued); err != nil {
			s.logger.WarnContext(ctx, "failed to cache batch status",
				"batch_id", issued.BatchID.String(), "error", err)
		}
	}
}

func (s *Service) recordRejections(ctx context.Context, rejected []validator.Rejection) {
	if len(rejected) == 0 {
		return
	}
	if s.metrics != nil {
		s.metrics.RecipientsRejected.Add(float64(len(rejected)))
	}
	events.Emit(ctx, s.logger, s.publisher, events.Event{
		Category: events.CategorySecurity,
		Action:   events.ActionRecipientsDropped,
		Failed:   len(rejected),
		Reason:   rejected[0].Reason,
	})
}

// Get returns the stored batch snapshot, preferring the cache.
func (s *Service) Get(ctx context.Context, batchID id.BatchID) (*models.BulkIssuanceBatch, error) {
	if s.cache != nil {
		if cached, err := s.cache.Fetch(ctx, batchID); err != nil {
			s.logger.WarnContext(ctx, "batch status cache read failed",
				"batch_id", batchID.String(), "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	stored, err := s.store.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, stored); err != nil {
			s.logger.WarnContext(ctx, "failed to cache batch status",
				"batch_id", batchID.String(), "error", err)
		}
	}
	return stored, nil
}

// Refresh polls the remote service for the batch's current state and stores
// the new snapshot. Polling cadence is the caller's: Refresh runs once per
// invocation, there is no built-in interval.
func (s *Service) Refresh(ctx context.Context, batchID id.BatchID) (*models.BulkIssuanceBatch, error) {
	stored, err := s.store.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}

	refreshed, err := s.issuer.PollStatus(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.StatusRefreshes.Inc()
	}

	// PollStatus responses carry no template context; keep the stored one.
	refreshed.TemplateID = stored.TemplateID
	refreshed.IssuerDID = stored.IssuerDID

	s.persist(ctx, refreshed)
	return refreshed, nil
}

// List returns batch history, newest first.
func (s *Service) List(ctx context.Context) ([]*models.BulkIssuanceBatch, error) {
	return s.store.List(ctx)
}

// Template returns the downloadable CSV template.
func (s *Service) Template() string {
	return validator.CSVTemplate()
}
