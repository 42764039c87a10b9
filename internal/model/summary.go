package model

import (
	"sync"
	"time"
)

// Summary aggregates the outcome of a mirror run.
// It is safe for concurrent use while the crawl is running;
// read the exported fields only after the crawl has returned.
type Summary struct {
	// RunID uniquely identifies the run (a UUID string).
	RunID string `json:"run_id"`

	// Seed is the URL the crawl started from.
	Seed string `json:"seed"`

	// Root is the mirror root directory.
	Root string `json:"root"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl ended. Zero while running.
	FinishedAt time.Time `json:"finished_at"`

	// Counts holds the number of resources per outcome.
	Counts map[Outcome]int `json:"counts"`

	// BytesWritten is the total number of raw bytes downloaded.
	BytesWritten int64 `json:"bytes_written"`

	// Failures lists every resource with a failed outcome, in completion order.
	Failures []Resource `json:"failures,omitempty"`

	// Cancelled is true when the crawl stopped before the frontier was empty.
	Cancelled bool `json:"cancelled"`

	mu sync.Mutex
}

// NewSummary creates a Summary for a run starting now.
func NewSummary(runID, seed, root string) *Summary {
	return &Summary{
		RunID:     runID,
		Seed:      seed,
		Root:      root,
		StartedAt: time.Now(),
		Counts:    make(map[Outcome]int, len(Outcomes)),
	}
}

// Add records one processed resource.
func (s *Summary) Add(r Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Counts[r.Outcome]++
	s.BytesWritten += r.Bytes
	if r.Outcome.IsFailure() {
		s.Failures = append(s.Failures, r)
	}
}

// Finish stamps the end time.
func (s *Summary) Finish(cancelled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.FinishedAt = time.Now()
	s.Cancelled = cancelled
}

// Count returns the number of resources recorded with the given outcome.
func (s *Summary) Count(o Outcome) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Counts[o]
}

// Total returns the number of resources recorded.
func (s *Summary) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total
}

// FailureCount returns the number of failed resources.
func (s *Summary) FailureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Failures)
}

// Elapsed returns the crawl duration. For a running crawl it is the time since start.
func (s *Summary) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
