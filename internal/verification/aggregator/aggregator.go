// Package aggregator folds verification results into export-ready summaries.
package aggregator

import (
	"sync"
	"time"

	"vcbatch/internal/verification/models"
)

// Summary is the counter view over an aggregated result log.
type Summary struct {
	Total    int `json:"total"`
	Verified int `json:"verified"`
	Failed   int `json:"failed"`
	Warnings int `json:"warnings"`
	// SuccessRatePercent is round(verified/total*100); zero when the log is
	// empty.
	SuccessRatePercent int `json:"success_rate_percent"`
}

// Export is the downloadable artifact for a run. Every field is JSON-primitive
// or plain object/array so the artifact round-trips through JSON without loss.
type Export struct {
	Summary     Summary                     `json:"summary"`
	GeneratedAt time.Time                   `json:"generated_at"`
	Results     []models.VerificationResult `json:"results"`
}

// Aggregator accumulates results for one run. It has a single logical owner
// (the run) while the run is live; ownership of the accumulated log transfers
// to the caller at run end. Safe for concurrent Add calls.
type Aggregator struct {
	mu       sync.Mutex
	results  []models.VerificationResult
	verified int
	failed   int
	warnings int
}

func New() *Aggregator {
	return &Aggregator{}
}

// Add appends a result to the log and buckets it by status. Pending results
// are logged but not counted in any terminal bucket.
func (a *Aggregator) Add(result models.VerificationResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.results = append(a.results, result)
	switch result.Status {
	case models.StatusVerified:
		a.verified++
	case models.StatusFailed:
		a.failed++
	case models.StatusWarning:
		a.warnings++
	}
}

// AddAll appends a batch of results in order.
func (a *Aggregator) AddAll(results []models.VerificationResult) {
	for _, r := range results {
		a.Add(r)
	}
}

// Summary returns the current counters. With an empty log the success rate is
// zero rather than a division-by-zero panic.
func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summaryLocked()
}

func (a *Aggregator) summaryLocked() Summary {
	s := Summary{
		Total:    len(a.results),
		Verified: a.verified,
		Failed:   a.failed,
		Warnings: a.warnings,
	}
	if s.Total > 0 {
		s.SuccessRatePercent = int(float64(s.Verified)/float64(s.Total)*100 + 0.5)
	}
	return s
}

// Export snapshots the log into a serializable artifact. The result slice is
// copied; the caller owns the returned value outright.
func (a *Aggregator) Export() Export {
	a.mu.Lock()
	defer a.mu.Unlock()

	results := make([]models.VerificationResult, len(a.results))
	copy(results, a.results)
	return Export{
		Summary:     a.summaryLocked(),
		GeneratedAt: time.Now().UTC(),
		Results:     results,
	}
}
