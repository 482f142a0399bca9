// Package compaction folds runs of step messages into summary memories
// so a long-running agent stays inside its model context window.
package compaction

import "errors"

// Compaction errors.
var (
	// ErrInvalidCadence indicates a non-positive summarization cadence.
	ErrInvalidCadence = errors.New("compaction: summarize_every_n_steps must be positive")

	// ErrNoProvider indicates that no provider is configured for summarization.
	ErrNoProvider = errors.New("compaction: provider not configured")

	// ErrNoManager indicates that no history manager was supplied.
	ErrNoManager = errors.New("compaction: history manager not configured")

	// ErrEmptySummary indicates that the backend returned no summary text.
	ErrEmptySummary = errors.New("compaction: backend returned an empty summary")

	// ErrNothingToSummarize indicates too few step messages to compact.
	ErrNothingToSummarize = errors.New("compaction: not enough step messages to summarize")
)
