// Package syncjobs holds the batch and incremental jobs that populate,
// repair and keep current the local price and fundamentals store under
// provider rate limits and partial failures. Jobs never propagate
// per-batch errors past their own Run boundary; each returns a statistics
// summary instead.
package syncjobs

import "time"

// BatchOutcome is the explicit per-batch result the backfill loop
// accumulates. The checkpoint / retry-queue transitions are decided from
// this value at batch end, keeping the state machine separate from I/O.
type BatchOutcome struct {
	BatchNumber int
	Symbols     []string
	Records     int
	Err         error // nil means the batch succeeded
}

// BackfillStats is the aggregate summary a bulk backfill run returns.
type BackfillStats struct {
	TotalTickers     int       `json:"total_tickers"`
	TotalBatches     int       `json:"total_batches"`
	CompletedBatches int       `json:"completed_batches"`
	SkippedBatches   int       `json:"skipped_batches"`
	FailedBatches    int       `json:"failed_batches"`
	RecordsInserted  int       `json:"records_inserted"`
	FailedTickers    int       `json:"failed_tickers"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
}

// RetryStats summarizes one retry-queue pass.
type RetryStats struct {
	Eligible        int       `json:"eligible"`
	Recovered       int       `json:"recovered"`
	StillPending    int       `json:"still_pending"`
	Permanent       int       `json:"permanent"`
	RecordsInserted int       `json:"records_inserted"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
}

// DeltaStats summarizes one delta sync run. SkipReason is set when the
// run was a deliberate no-op (non-trading day, empty store, up to date).
type DeltaStats struct {
	SkipReason      string    `json:"skip_reason,omitempty"`
	TotalTickers    int       `json:"total_tickers"`
	UpdatedTickers  int       `json:"updated_tickers"`
	FailedTickers   int       `json:"failed_tickers"`
	RecordsInserted int       `json:"records_inserted"`
	DeltaStart      time.Time `json:"delta_start"`
	DeltaEnd        time.Time `json:"delta_end"`
}

// RotationStats summarizes one fundamentals rotation day.
type RotationStats struct {
	CycleDay     int `json:"cycle_day"`
	TotalTickers int `json:"total_tickers"`
	SegmentSize  int `json:"segment_size"`
	Updated      int `json:"updated"`
	Failed       int `json:"failed"`
}

// RetentionStats summarizes one retention trim run.
type RetentionStats struct {
	PricesDeleted    int64     `json:"prices_deleted"`
	DividendsDeleted int64     `json:"dividends_deleted"`
	SplitsDeleted    int64     `json:"splits_deleted"`
	Cutoff           time.Time `json:"cutoff"`
}
