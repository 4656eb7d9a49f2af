package stats

import "sync"

// RunStats is an immutable snapshot of the counters for one batch run.
// All counters are monotonically non-decreasing over the run's lifetime.
type RunStats struct {
	TotalFiles     int
	ProcessedFiles int
	TotalPages     int
	RotatedPages   int
	FailedPages    int
	FailedFiles    int
}

// Aggregator accumulates per-file outcomes into run-level totals.
// Guarded so a host UI may poll Summary while a background run mutates.
type Aggregator struct {
	mu sync.Mutex
	s  RunStats
}

func NewAggregator(totalFiles int) *Aggregator {
	return &Aggregator{s: RunStats{TotalFiles: totalFiles}}
}

// AddFileResult folds one processed document into the run totals.
// A file counts as failed iff at least one of its pages failed.
func (a *Aggregator) AddFileResult(pages, rotated, failed int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.s.ProcessedFiles++
	a.s.TotalPages += pages
	a.s.RotatedPages += rotated
	a.s.FailedPages += failed
	if failed > 0 {
		a.s.FailedFiles++
	}
}

// AddFailedFile records a document that failed before yielding any page
// outcome (unopenable, corrupt). It still counts as processed so the walk
// total stays consistent.
func (a *Aggregator) AddFailedFile() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.s.ProcessedFiles++
	a.s.FailedFiles++
}

// Summary returns a snapshot of all counters.
func (a *Aggregator) Summary() RunStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.s
}
