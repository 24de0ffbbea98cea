package syncjobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"go_screener_backend/models"
)

func backfillJob(db *gorm.DB, p *fakeProvider, seed []string, batchSize int) *BulkBackfillJob {
	job := NewBulkBackfillJob(db, p, nil, testLogger(), seed, batchSize, 5)
	job.now = fixedNow(time.Date(2024, time.July, 12, 12, 0, 0, 0, time.UTC))
	return job
}

func seedBars(p *fakeProvider, symbols ...string) {
	for _, symbol := range symbols {
		p.bars[symbol] = append(p.bars[symbol],
			bar(symbol, day(2024, time.July, 10), 100, 1000),
			bar(symbol, day(2024, time.July, 11), 101, 1100),
			bar(symbol, day(2024, time.July, 12), 102, 1200),
		)
	}
}

func TestBulkBackfillPersistsPricesAndCheckpoints(t *testing.T) {
	p := newFakeProvider()
	seedBars(p, "AAPL", "GOOG", "MSFT")

	db := newTestDB(t)
	job := backfillJob(db, p, []string{"AAPL", "GOOG", "MSFT"}, 2)

	stats, err := job.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalTickers)
	assert.Equal(t, 2, stats.TotalBatches)
	assert.Equal(t, 2, stats.CompletedBatches)
	assert.Equal(t, 0, stats.FailedBatches)
	assert.Equal(t, 9, stats.RecordsInserted)

	assert.EqualValues(t, 3, countRows(t, db, &models.Ticker{}))
	assert.EqualValues(t, 9, countRows(t, db, &models.DailyPrice{}))

	var checkpoints []models.BatchCheckpoint
	require.NoError(t, db.Order("batch_number").Find(&checkpoints).Error)
	require.Len(t, checkpoints, 2)
	assert.Equal(t, models.CheckpointCompleted, checkpoints[0].Status)
	assert.Equal(t, []string{"AAPL", "GOOG"}, checkpoints[0].TickerList)
	assert.Equal(t, []string{"MSFT"}, checkpoints[1].TickerList)
	assert.Equal(t, 6, checkpoints[0].RecordsInserted)
	require.NotNil(t, checkpoints[0].EndTime)
}

func TestBulkBackfillEmptyBatchQueuesRetries(t *testing.T) {
	p := newFakeProvider()
	seedBars(p, "AAPL", "GOOG")
	// MSFT has no data, so its single-symbol batch comes back empty.

	db := newTestDB(t)
	job := backfillJob(db, p, []string{"AAPL", "GOOG", "MSFT"}, 2)

	stats, err := job.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.CompletedBatches)
	assert.Equal(t, 1, stats.FailedBatches)
	assert.Equal(t, 1, stats.FailedTickers)

	var cp models.BatchCheckpoint
	require.NoError(t, db.Where("batch_number = ?", 2).First(&cp).Error)
	assert.Equal(t, models.CheckpointFailed, cp.Status)
	assert.NotEmpty(t, cp.ErrorMessage)

	var queued []models.FailedTicker
	require.NoError(t, db.Find(&queued).Error)
	require.Len(t, queued, 1)
	assert.Equal(t, "MSFT", queued[0].Symbol)
	assert.Equal(t, 2, queued[0].BatchNumber)
	assert.Equal(t, models.FailedPending, queued[0].Status)
	assert.Equal(t, 0, queued[0].RetryCount)
}

func TestBulkBackfillPartialBatchCompletesWithoutRetry(t *testing.T) {
	p := newFakeProvider()
	seedBars(p, "AAPL", "MSFT")
	// Sorted universe batches as [AAPL, GOOG] and [MSFT]. The provider
	// returns AAPL only for batch 1: the batch still completes, and GOOG
	// is left to the read-path gap filler rather than the retry queue.
	db := newTestDB(t)
	job := backfillJob(db, p, []string{"AAPL", "MSFT", "GOOG"}, 2)

	stats, err := job.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.CompletedBatches)
	assert.Equal(t, 0, stats.FailedBatches)
	assert.EqualValues(t, 0, countRows(t, db, &models.FailedTicker{}))

	var cp models.BatchCheckpoint
	require.NoError(t, db.Where("batch_number = ?", 1).First(&cp).Error)
	assert.Equal(t, models.CheckpointCompleted, cp.Status)
	assert.Equal(t, []string{"AAPL", "GOOG"}, cp.TickerList)

	// Only symbols that returned data got identity rows.
	var count int64
	require.NoError(t, db.Model(&models.Ticker{}).Where("symbol = ?", "GOOG").Count(&count).Error)
	assert.Zero(t, count)
}

func TestBulkBackfillResumeSkipsCompletedBatches(t *testing.T) {
	p := newFakeProvider()
	seedBars(p, "AAPL", "GOOG", "MSFT")

	db := newTestDB(t)
	job := backfillJob(db, p, []string{"AAPL", "GOOG", "MSFT"}, 2)

	_, err := job.Run(context.Background(), false)
	require.NoError(t, err)
	firstCalls := len(p.batchCalls)

	stats, err := job.Run(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.SkippedBatches)
	assert.Equal(t, 0, stats.CompletedBatches)
	assert.Equal(t, firstCalls, len(p.batchCalls), "resume must not refetch completed batches")
}

func TestBulkBackfillRerunIsIdempotent(t *testing.T) {
	p := newFakeProvider()
	seedBars(p, "AAPL", "GOOG")

	db := newTestDB(t)
	job := backfillJob(db, p, []string{"AAPL", "GOOG"}, 2)

	_, err := job.Run(context.Background(), false)
	require.NoError(t, err)
	_, err = job.Run(context.Background(), false)
	require.NoError(t, err)

	assert.EqualValues(t, 6, countRows(t, db, &models.DailyPrice{}))
	assert.EqualValues(t, 2, countRows(t, db, &models.Ticker{}))
}

func TestBulkBackfillFailedBatchRetriedOnResume(t *testing.T) {
	p := newFakeProvider()
	seedBars(p, "AAPL")

	db := newTestDB(t)
	job := backfillJob(db, p, []string{"AAPL", "MSFT"}, 1)

	// First run: MSFT batch fails.
	_, err := job.Run(context.Background(), false)
	require.NoError(t, err)

	// Data arrives upstream; a resumed run re-attempts only the failed batch.
	seedBars(p, "MSFT")
	stats, err := job.Run(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.SkippedBatches)
	assert.Equal(t, 1, stats.CompletedBatches)

	var cp models.BatchCheckpoint
	require.NoError(t, db.Where("batch_number = ?", 2).First(&cp).Error)
	assert.Equal(t, models.CheckpointCompleted, cp.Status)
}

func TestBulkBackfillEmptyUniverseErrors(t *testing.T) {
	db := newTestDB(t)
	job := backfillJob(db, newFakeProvider(), nil, 2)

	_, err := job.Run(context.Background(), false)
	require.Error(t, err)
}
