// Package service orchestrates verification runs. Each run owns a scheduler
// and lives in an in-memory registry while active; finished runs are archived
// to the run store and evicted from the registry.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vcbatch/internal/events"
	"vcbatch/internal/verification/aggregator"
	"vcbatch/internal/verification/client"
	"vcbatch/internal/verification/metrics"
	"vcbatch/internal/verification/models"
	"vcbatch/internal/verification/scheduler"
	"vcbatch/internal/verification/store/run"
	id "vcbatch/pkg/domain"
	dErrors "vcbatch/pkg/domain-errors"
)

// Status is a point-in-time view of one run, live or archived.
type Status struct {
	RunID      id.RunID             `json:"run_id"`
	Phase      scheduler.Phase      `json:"phase"`
	Progress   models.BatchProgress `json:"progress"`
	Summary    aggregator.Summary   `json:"summary"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
}

// Service starts and controls verification runs. Multiple runs may be active
// concurrently; each is addressed by its RunID.
type Service struct {
	verifier  client.Verifier
	store     run.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	schedOpts scheduler.Options

	mu   sync.Mutex
	runs map[id.RunID]*liveRun
}

type liveRun struct {
	sched     *scheduler.Scheduler
	startedAt time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithPublisher wires an event sink. Without one, events are dropped.
func WithPublisher(pub events.Publisher) Option {
	return func(s *Service) { s.publisher = pub }
}

// WithMetrics wires prometheus counters. Without them, nothing is recorded.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a run service. schedOpts applies to every run it starts.
func New(verifier client.Verifier, store run.Store, schedOpts scheduler.Options, opts ...Option) *Service {
	s := &Service{
		verifier:  verifier,
		store:     store,
		logger:    slog.Default(),
		schedOpts: schedOpts,
		runs:      make(map[id.RunID]*liveRun),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartRun validates the items, assigns a RunID, and launches the run on its
// own goroutine. It returns as soon as the run is registered; progress is
// observed through Status. The run outlives the originating request, so it
// detaches from the caller's cancellation.
func (s *Service) StartRun(ctx context.Context, items []models.VerificationItem) (id.RunID, error) {
	for _, item := range items {
		if len(item.Credential) == 0 && len(item.Presentation) == 0 {
			return id.RunID{}, dErrors.New(dErrors.CodeInvalidInput,
				"item "+item.ID+" has neither credential nor presentation")
		}
	}

	runID := id.NewRunID()
	bgCtx := context.WithoutCancel(ctx)
	runLogger := s.logger.With("run_id", runID.String())

	sched := scheduler.New(s.verifier,
		scheduler.WithLogger(runLogger),
		scheduler.OnItemFailed(func(result models.VerificationResult) {
			reason := ""
			if len(result.Errors) > 0 {
				reason = result.Errors[0]
			}
			events.Emit(bgCtx, runLogger, s.publisher, events.Event{
				Category: events.CategoryOperations,
				Action:   events.ActionItemFailed,
				RunID:    runID.String(),
				Reason:   reason,
			})
		}),
	)

	lr := &liveRun{sched: sched, startedAt: time.Now()}
	s.mu.Lock()
	s.runs[runID] = lr
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RunsStarted.Inc()
	}
	runLogger.InfoContext(ctx, "verification run started", "items", len(items))

	go func() {
		results, err := sched.Run(bgCtx, items, s.schedOpts)
		if err != nil {
			runLogger.ErrorContext(bgCtx, "verification run aborted", "error", err)
		}
		s.finishRun(bgCtx, runID, lr, results)
	}()

	return runID, nil
}

// finishRun archives the run and emits the terminal event. The registry entry
// is evicted only after a successful archive so the run stays addressable if
// the store is down.
func (s *Service) finishRun(ctx context.Context, runID id.RunID, lr *liveRun, results []models.VerificationResult) {
	phase := lr.sched.Phase()
	finished := time.Now()

	agg := aggregator.New()
	agg.AddAll(results)
	summary := agg.Summary()

	if s.metrics != nil {
		s.metrics.ItemsVerified.Add(float64(summary.Verified))
		s.metrics.ItemsFailed.Add(float64(summary.Failed))
		s.metrics.ItemsWarned.Add(float64(summary.Warnings))
		if phase == scheduler.PhaseStopped {
			s.metrics.RunsStopped.Inc()
		} else {
			s.metrics.RunsCompleted.Inc()
		}
		s.metrics.ObserveRun(lr.startedAt)
	}

	action := events.ActionRunCompleted
	if phase == scheduler.PhaseStopped {
		action = events.ActionRunStopped
	}
	events.Emit(ctx, s.logger, s.publisher, events.Event{
		Category:  events.CategoryOperations,
		Action:    action,
		RunID:     runID.String(),
		Total:     summary.Total,
		Succeeded: summary.Verified,
		Failed:    summary.Failed,
		Warnings:  summary.Warnings,
	})

	record := &run.Record{
		ID:         runID,
		Phase:      string(phase),
		StartedAt:  lr.startedAt,
		FinishedAt: finished,
		Summary:    summary,
		Results:    results,
	}
	if err := s.store.Save(ctx, record); err != nil {
		s.logger.ErrorContext(ctx, "failed to archive verification run",
			"run_id", runID.String(), "error", err)
		return
	}

	s.mu.Lock()
	delete(s.runs, runID)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "verification run finished",
		"run_id", runID.String(),
		"phase", phase,
		"total", summary.Total,
		"verified", summary.Verified,
		"failed", summary.Failed,
	)
}

func (s *Service) live(runID id.RunID) (*liveRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lr, ok := s.runs[runID]
	return lr, ok
}

// Status reports the current phase, progress, and running summary of a run.
// Archived runs report their final state.
func (s *Service) Status(ctx context.Context, runID id.RunID) (*Status, error) {
	if lr, ok := s.live(runID); ok {
		agg := aggregator.New()
		agg.AddAll(lr.sched.Results())
		return &Status{
			RunID:     runID,
			Phase:     lr.sched.Phase(),
			Progress:  lr.sched.Progress(),
			Summary:   agg.Summary(),
			StartedAt: lr.startedAt,
		}, nil
	}

	record, err := s.store.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	return statusFromRecord(record), nil
}

func statusFromRecord(record *run.Record) *Status {
	finished := record.FinishedAt
	return &Status{
		RunID: record.ID,
		Phase: scheduler.Phase(record.Phase),
		Progress: models.BatchProgress{
			Total:     record.Summary.Total,
			Completed: record.Summary.Total,
			Verified:  record.Summary.Verified,
			Failed:    record.Summary.Failed,
			Warnings:  record.Summary.Warnings,
		},
		Summary:    record.Summary,
		StartedAt:  record.StartedAt,
		FinishedAt: &finished,
	}
}

// Pause defers the run's next chunk. Finished runs cannot be paused.
func (s *Service) Pause(ctx context.Context, runID id.RunID) error {
	lr, err := s.requireLive(ctx, runID)
	if err != nil {
		return err
	}
	return lr.sched.Pause()
}

// Resume continues a paused run from its first unprocessed chunk.
func (s *Service) Resume(ctx context.Context, runID id.RunID) error {
	lr, err := s.requireLive(ctx, runID)
	if err != nil {
		return err
	}
	return lr.sched.Resume()
}

// Stop terminates the run. In-flight items complete and are recorded.
func (s *Service) Stop(ctx context.Context, runID id.RunID) error {
	lr, err := s.requireLive(ctx, runID)
	if err != nil {
		return err
	}
	return lr.sched.Stop()
}

func (s *Service) requireLive(ctx context.Context, runID id.RunID) (*liveRun, error) {
	if lr, ok := s.live(runID); ok {
		return lr, nil
	}
	if _, err := s.store.Get(ctx, runID); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "run already finished")
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "run not found")
}

// Export builds the downloadable artifact for a run. Live runs export the
// results recorded so far; archived runs export the full log.
func (s *Service) Export(ctx context.Context, runID id.RunID) (aggregator.Export, error) {
	if lr, ok := s.live(runID); ok {
		agg := aggregator.New()
		agg.AddAll(lr.sched.Results())
		return agg.Export(), nil
	}

	record, err := s.store.Get(ctx, runID)
	if err != nil {
		return aggregator.Export{}, err
	}
	return aggregator.Export{
		Summary:     record.Summary,
		GeneratedAt: time.Now().UTC(),
		Results:     record.Results,
	}, nil
}

// List returns archived runs, newest first. Live runs are not included.
func (s *Service) List(ctx context.Context) ([]*Status, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Status, 0, len(records))
	for _, record := range records {
		out = append(out, statusFromRecord(record))
	}
	return out, nil
}
