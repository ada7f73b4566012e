// Package scheduler drives a fixed list of verification items through the
// remote verifier with bounded, chunked concurrency.
//
// Concurrency model: items are partitioned into consecutive chunks. All items
// in a chunk are dispatched together and awaited together (fan-out/fan-in);
// chunk n+1 never dispatches before chunk n fully resolves. Within a chunk,
// completion order is network-dependent and not guaranteed.
//
// Control: Pause defers the next chunk (in-flight items complete normally),
// Resume continues from the first unprocessed chunk on the run's own
// goroutine, Stop is terminal and prevents further dispatch without
// cancelling in-flight requests; their results are still recorded.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vcbatch/internal/verification/client"
	"vcbatch/internal/verification/models"
	dErrors "vcbatch/pkg/domain-errors"
)

// Phase is the lifecycle state of a scheduler.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhasePaused  Phase = "paused"
	PhaseStopped Phase = "stopped"
	PhaseDone    Phase = "done"
)

// Terminal reports whether the phase ends a run.
func (p Phase) Terminal() bool { return p == PhaseStopped || p == PhaseDone }

// Options holds the chunking parameters for one run.
type Options struct {
	// ChunkSize is the number of items dispatched concurrently. Default 3.
	ChunkSize int
	// InterChunkDelay is slept between chunks to avoid hammering the
	// verifier. Default 100ms.
	InterChunkDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 3
	}
	if o.InterChunkDelay < 0 {
		o.InterChunkDelay = 0
	} else if o.InterChunkDelay == 0 {
		o.InterChunkDelay = 100 * time.Millisecond
	}
	return o
}

// ProgressFunc receives a progress snapshot after every completed chunk.
type ProgressFunc func(models.BatchProgress)

// CompleteFunc receives the full result log once, at run end (completed or
// stopped). Not invoked for empty runs.
type CompleteFunc func([]models.VerificationResult)

// ItemFailedFunc is invoked for each item whose verification call errored and
// was converted into a failed result.
type ItemFailedFunc func(models.VerificationResult)

// Scheduler owns the mutable progress and result log for the duration of one
// run. It is single-use per run: Run rejects overlapping invocations, and a
// finished scheduler may be reused for a subsequent run.
type Scheduler struct {
	verifier client.Verifier
	logger   *slog.Logger

	onProgress   ProgressFunc
	onComplete   CompleteFunc
	onItemFailed ItemFailedFunc

	mu       sync.Mutex
	cond     *sync.Cond
	phase    Phase
	progress models.BatchProgress
	results  []models.VerificationResult
	started  time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// OnProgress registers the per-chunk progress callback.
func OnProgress(fn ProgressFunc) Option {
	return func(s *Scheduler) { s.onProgress = fn }
}

// OnComplete registers the end-of-run callback.
func OnComplete(fn CompleteFunc) Option {
	return func(s *Scheduler) { s.onComplete = fn }
}

// OnItemFailed registers the per-item failure callback.
func OnItemFailed(fn ItemFailedFunc) Option {
	return func(s *Scheduler) { s.onItemFailed = fn }
}

// New creates a scheduler bound to a verifier.
func New(verifier client.Verifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		verifier: verifier,
		logger:   slog.Default(),
		phase:    PhaseIdle,
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes items to completion and returns the result log. It blocks
// until the run completes, is stopped, or ctx is cancelled (treated as Stop:
// no further chunks dispatch). A second Run while one is active is rejected
// with CodeConflict. An empty item list resolves immediately with total 0 and
// fires no callbacks.
//
// A per-item verification error never propagates out of Run; it becomes a
// failed result with all metadata booleans false and trust score zero.
func (s *Scheduler) Run(ctx context.Context, items []models.VerificationItem, opts Options) ([]models.VerificationResult, error) {
	opts = opts.withDefaults()

	s.mu.Lock()
	if s.phase == PhaseRunning || s.phase == PhasePaused {
		s.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeConflict, "a verification run is already active")
	}
	s.phase = PhaseRunning
	s.results = s.results[:0]
	s.progress = models.BatchProgress{Total: len(items)}
	s.started = time.Now()
	s.mu.Unlock()

	if len(items) == 0 {
		s.setPhase(PhaseDone)
		return nil, nil
	}

	for offset := 0; offset < len(items); offset += opts.ChunkSize {
		if !s.awaitDispatch(ctx) {
			break
		}

		end := offset + opts.ChunkSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[offset:end]

		s.processChunk(ctx, offset, chunk)
		snapshot := s.advance(chunk, items, end)

		if s.onProgress != nil {
			s.onProgress(snapshot)
		}

		if end < len(items) && s.Phase() == PhaseRunning {
			time.Sleep(opts.InterChunkDelay)
		}
	}

	s.mu.Lock()
	if s.phase != PhaseStopped {
		s.phase = PhaseDone
	}
	final := make([]models.VerificationResult, len(s.results))
	copy(final, s.results)
	s.mu.Unlock()

	if s.onComplete != nil {
		s.onComplete(final)
	}
	return final, nil
}

// awaitDispatch blocks while paused and reports whether the next chunk may
// dispatch. Context cancellation counts as a stop.
func (s *Scheduler) awaitDispatch(ctx context.Context) bool {
	if ctx.Err() != nil {
		s.setPhase(PhaseStopped)
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.phase == PhasePaused {
		s.cond.Wait()
	}
	return s.phase == PhaseRunning
}

// processChunk fans the chunk out against the verifier and records results in
// input order. Results are keyed by sequence number (input position), so
// duplicate item IDs never collide.
func (s *Scheduler) processChunk(ctx context.Context, offset int, chunk []models.VerificationItem) {
	chunkResults := make([]models.VerificationResult, len(chunk))

	var g errgroup.Group
	for j, item := range chunk {
		seq := offset + j
		slot := j
		g.Go(func() error {
			start := time.Now()
			result, err := s.verifier.Verify(ctx, item)
			if err != nil {
				s.logger.WarnContext(ctx, "verification item failed",
					"item_id", item.ID, "seq", seq, "error", err)
				result = models.FailedResult(seq, item.ID, err.Error(), time.Since(start))
				if s.onItemFailed != nil {
					s.onItemFailed(result)
				}
			} else {
				result.Seq = seq
				if result.ItemID == "" {
					result.ItemID = item.ID
				}
			}
			chunkResults[slot] = result
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	s.results = append(s.results, chunkResults...)
	s.mu.Unlock()
}

// advance recomputes counters and the ETA after a chunk completes, returning
// an invariant-preserving snapshot (completed = verified + failed + warnings).
func (s *Scheduler) advance(chunk []models.VerificationItem, items []models.VerificationItem, end int) models.BatchProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	tail := s.results[len(s.results)-len(chunk):]
	for _, r := range tail {
		s.progress.Completed++
		switch r.Status {
		case models.StatusVerified:
			s.progress.Verified++
		case models.StatusWarning:
			s.progress.Warnings++
		default:
			s.progress.Failed++
		}
	}

	if end < len(items) {
		s.progress.CurrentItem = items[end].ID
	} else {
		s.progress.CurrentItem = ""
	}

	if s.progress.Completed > 0 && s.progress.Remaining() > 0 {
		avg := time.Since(s.started) / time.Duration(s.progress.Completed)
		eta := (avg * time.Duration(s.progress.Remaining())).Seconds()
		s.progress.ETASeconds = &eta
	} else {
		s.progress.ETASeconds = nil
	}

	return s.progress
}

// Pause defers the next chunk. In-flight chunk items complete normally.
func (s *Scheduler) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case PhaseRunning:
		s.phase = PhasePaused
		return nil
	case PhasePaused:
		return nil
	default:
		return dErrors.New(dErrors.CodeConflict, "no active run to pause")
	}
}

// Resume clears the pause and auto-continues from the first unprocessed
// chunk; callers do not re-invoke Run.
func (s *Scheduler) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case PhasePaused:
		s.phase = PhaseRunning
		s.cond.Broadcast()
		return nil
	case PhaseRunning:
		return nil
	default:
		return dErrors.New(dErrors.CodeConflict, "no paused run to resume")
	}
}

// Stop is terminal: no further chunks dispatch. In-flight requests are not
// cancelled and their results are still recorded.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case PhaseRunning, PhasePaused:
		s.phase = PhaseStopped
		s.cond.Broadcast()
		return nil
	case PhaseStopped:
		return nil
	default:
		return dErrors.New(dErrors.CodeConflict, "no active run to stop")
	}
}

// Phase returns the current lifecycle state.
func (s *Scheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Progress returns the latest invariant-preserving snapshot.
func (s *Scheduler) Progress() models.BatchProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Results returns a copy of the result log recorded so far.
func (s *Scheduler) Results() []models.VerificationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.VerificationResult, len(s.results))
	copy(out, s.results)
	return out
}

func (s *Scheduler) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}
