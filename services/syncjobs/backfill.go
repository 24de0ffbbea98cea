package syncjobs

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go_screener_backend/models"
	"go_screener_backend/services/cache"
	"go_screener_backend/services/marketcalendar"
	"go_screener_backend/services/providers"
)

// BulkBackfillJob walks the full ticker universe in fixed-size batches and
// loads multi-year daily history for each, persisting a durable checkpoint
// per batch. Batches that return nothing are routed into the retry queue
// and never abort the run. Safe to restart: with resume enabled, batches
// whose checkpoint is already completed are skipped.
type BulkBackfillJob struct {
	db           *gorm.DB
	provider     providers.MarketDataProvider
	invalidator  *cache.Invalidator
	logger       *logrus.Entry
	seedSymbols  []string
	batchSize    int
	historyYears int
	now          func() time.Time
}

// NewBulkBackfillJob wires a backfill job.
func NewBulkBackfillJob(db *gorm.DB, provider providers.MarketDataProvider, invalidator *cache.Invalidator,
	logger *logrus.Logger, seedSymbols []string, batchSize, historyYears int) *BulkBackfillJob {
	return &BulkBackfillJob{
		db:           db,
		provider:     provider,
		invalidator:  invalidator,
		logger:       logger.WithField("job", "bulk_backfill"),
		seedSymbols:  seedSymbols,
		batchSize:    batchSize,
		historyYears: historyYears,
		now:          time.Now,
	}
}

// Run executes the backfill. Only a failure to enumerate the universe
// aborts the run; every per-batch error is recorded in checkpoint/retry
// state and processing continues. Returns aggregate statistics.
func (j *BulkBackfillJob) Run(ctx context.Context, resume bool) (stats BackfillStats, err error) {
	stats.StartTime = j.now()
	defer func() { stats.EndTime = j.now() }()

	universe, err := LoadUniverse(j.db, j.seedSymbols)
	if err != nil {
		return stats, err
	}
	if len(universe) == 0 {
		return stats, fmt.Errorf("ticker universe is empty")
	}

	batches := PartitionSymbols(universe, j.batchSize)
	stats.TotalTickers = len(universe)
	stats.TotalBatches = len(batches)

	end := marketcalendar.LastTradingDay(j.now())
	start := end.AddDate(-j.historyYears, 0, 0)

	completed := map[int]bool{}
	if resume {
		var done []models.BatchCheckpoint
		if err := j.db.Where("status = ?", models.CheckpointCompleted).Find(&done).Error; err != nil {
			return stats, fmt.Errorf("failed to load checkpoints: %w", err)
		}
		for _, cp := range done {
			completed[cp.BatchNumber] = true
		}
		if len(completed) > 0 {
			j.logger.Infof("Resuming from checkpoint: %d batches already completed", len(completed))
		}
	}

	j.logger.Infof("Bulk backfill started: %d tickers, %d batches, range %s to %s",
		stats.TotalTickers, stats.TotalBatches, start.Format("2006-01-02"), end.Format("2006-01-02"))

	for i, batch := range batches {
		batchNum := i + 1

		if completed[batchNum] {
			stats.SkippedBatches++
			continue
		}

		outcome := j.processBatch(ctx, batchNum, batch, start, end)
		j.applyOutcome(ctx, outcome, &stats)
	}

	j.logger.Infof("Bulk backfill complete: %d/%d batches, %d failed, %d records, %d tickers queued for retry",
		stats.CompletedBatches, stats.TotalBatches, stats.FailedBatches, stats.RecordsInserted, stats.FailedTickers)

	return stats, nil
}

// processBatch writes the in_progress checkpoint, fetches and upserts one
// batch, and returns its outcome. All errors are captured in the outcome.
func (j *BulkBackfillJob) processBatch(ctx context.Context, batchNum int, symbols []string, start, end time.Time) BatchOutcome {
	outcome := BatchOutcome{BatchNumber: batchNum, Symbols: symbols}

	checkpoint := models.BatchCheckpoint{
		BatchNumber: batchNum,
		TickerList:  symbols,
		StartTime:   j.now(),
		Status:      models.CheckpointInProgress,
	}
	// A restarted run may be re-attempting a previously failed batch, so
	// the checkpoint row is upserted rather than inserted.
	if err := j.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "batch_number"}},
		UpdateAll: true,
	}).Create(&checkpoint).Error; err != nil {
		outcome.Err = fmt.Errorf("checkpoint write failed: %w", err)
		return outcome
	}

	history := j.provider.BatchHistoricalPrices(ctx, symbols, start, end, true)
	if history.Empty() {
		outcome.Err = fmt.Errorf("no data returned from provider")
		return outcome
	}

	records, err := UpsertHistory(j.db, history)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Records = records
	return outcome
}

// applyOutcome runs the checkpoint / retry-queue state machine for one
// finished batch and folds it into the aggregate stats.
func (j *BulkBackfillJob) applyOutcome(ctx context.Context, outcome BatchOutcome, stats *BackfillStats) {
	endTime := j.now()

	if outcome.Err != nil {
		j.logger.Warnf("Batch %d failed: %v", outcome.BatchNumber, outcome.Err)

		if err := j.db.Model(&models.BatchCheckpoint{}).
			Where("batch_number = ?", outcome.BatchNumber).
			Updates(map[string]interface{}{
				"status":        models.CheckpointFailed,
				"error_message": outcome.Err.Error(),
				"end_time":      endTime,
			}).Error; err != nil {
			j.logger.Errorf("Failed to mark checkpoint %d failed: %v", outcome.BatchNumber, err)
		}

		j.enqueueRetries(outcome)
		stats.FailedBatches++
		stats.FailedTickers += len(outcome.Symbols)
		return
	}

	if err := j.db.Model(&models.BatchCheckpoint{}).
		Where("batch_number = ?", outcome.BatchNumber).
		Updates(map[string]interface{}{
			"status":           models.CheckpointCompleted,
			"records_inserted": outcome.Records,
			"end_time":         endTime,
		}).Error; err != nil {
		j.logger.Errorf("Failed to mark checkpoint %d completed: %v", outcome.BatchNumber, err)
	}

	j.invalidator.PricesMutated(ctx, outcome.Symbols)

	stats.CompletedBatches++
	stats.RecordsInserted += outcome.Records
	j.logger.Infof("Batch %d complete (%d records)", outcome.BatchNumber, outcome.Records)
}

// enqueueRetries adds every symbol of a failed batch to the retry queue.
func (j *BulkBackfillJob) enqueueRetries(outcome BatchOutcome) {
	entries := make([]models.FailedTicker, 0, len(outcome.Symbols))
	for _, symbol := range outcome.Symbols {
		entries = append(entries, models.FailedTicker{
			Symbol:       symbol,
			BatchNumber:  outcome.BatchNumber,
			ErrorMessage: outcome.Err.Error(),
			Status:       models.FailedPending,
			LastAttempt:  j.now(),
		})
	}
	if err := j.db.CreateInBatches(entries, 500).Error; err != nil {
		j.logger.Errorf("Failed to enqueue retries for batch %d: %v", outcome.BatchNumber, err)
	}
}
