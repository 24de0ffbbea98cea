package models

import (
	"time"

	"gorm.io/gorm"
)

// Batch checkpoint statuses
const (
	CheckpointInProgress = "in_progress"
	CheckpointCompleted  = "completed"
	CheckpointFailed     = "failed"
)

// Failed ticker statuses
const (
	FailedPending   = "pending"
	FailedRetrying  = "retrying"
	FailedPermanent = "permanent_failure"
)

// MaxRetryAttempts caps individual ticker retries before an entry is
// marked permanent_failure.
const MaxRetryAttempts = 3

// BatchCheckpoint is the durable per-batch record the bulk backfill job
// writes before and after each batch. Batch numbers come from a stable
// partitioning of the ticker universe, so the same number means the same
// ticker set across restarts. Rows are never deleted; a completed
// checkpoint is the resume cursor that lets a restarted run skip the batch.
type BatchCheckpoint struct {
	BatchNumber     int       `gorm:"primaryKey;autoIncrement:false" json:"batch_number"`
	TickerList      []string  `gorm:"serializer:json" json:"ticker_list"`
	StartTime       time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	Status          string    `gorm:"size:20" json:"status"`
	ErrorMessage    string    `json:"error_message"`
	RecordsInserted int       `json:"records_inserted"`
}

// FailedTicker is one entry in the retry queue. Created when a batch or
// individual fetch fails terminally for a symbol; removed entirely once a
// retry succeeds.
type FailedTicker struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Symbol       string    `gorm:"size:10;index;not null" json:"symbol"`
	BatchNumber  int       `json:"batch_number"`
	ErrorMessage string    `json:"error_message"`
	RetryCount   int       `gorm:"default:0" json:"retry_count"`
	LastAttempt  time.Time `json:"last_attempt"`
	Status       string    `gorm:"size:20;default:pending;index" json:"status"`
}

// MigrateSyncModels runs database migrations for sync bookkeeping models
func MigrateSyncModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&BatchCheckpoint{},
		&FailedTicker{},
	)
}
