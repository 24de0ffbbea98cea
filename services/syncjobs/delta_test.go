package syncjobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"go_screener_backend/models"
	"go_screener_backend/services/providers"
)

func deltaJob(db *gorm.DB, p *fakeProvider, now time.Time) *DeltaSyncJob {
	job := NewDeltaSyncJob(db, p, nil, testLogger(), 2)
	job.now = fixedNow(now)
	return job
}

func storeHistory(t *testing.T, db *gorm.DB, bars ...providers.PriceBar) {
	t.Helper()
	_, err := UpsertHistory(db, &providers.PriceHistory{Bars: bars})
	require.NoError(t, err)
}

func TestDeltaSkipsNonTradingDay(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t)

	// 2024-07-13 is a Saturday.
	stats, err := deltaJob(db, p, time.Date(2024, time.July, 13, 21, 0, 0, 0, time.UTC)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SkipNonTradingDay, stats.SkipReason)
	assert.Empty(t, p.batchCalls)
}

func TestDeltaSkipsEmptyStore(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t)

	stats, err := deltaJob(db, p, time.Date(2024, time.July, 12, 21, 0, 0, 0, time.UTC)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SkipEmptyStore, stats.SkipReason)
	assert.Empty(t, p.batchCalls)
}

func TestDeltaSkipsWhenCurrent(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t)
	storeHistory(t, db, bar("AAPL", day(2024, time.July, 12), 100, 1000))

	stats, err := deltaJob(db, p, time.Date(2024, time.July, 12, 21, 0, 0, 0, time.UTC)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SkipUpToDate, stats.SkipReason)
	assert.Empty(t, p.batchCalls)
}

func TestDeltaFetchesOnlyMissingRange(t *testing.T) {
	p := newFakeProvider()
	seedBars(p, "AAPL", "MSFT") // July 10-12

	db := newTestDB(t)
	storeHistory(t, db,
		bar("AAPL", day(2024, time.July, 10), 100, 1000),
		bar("MSFT", day(2024, time.July, 10), 100, 1000),
	)

	stats, err := deltaJob(db, p, time.Date(2024, time.July, 12, 21, 0, 0, 0, time.UTC)).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, stats.SkipReason)
	assert.Equal(t, day(2024, time.July, 11), stats.DeltaStart)
	assert.Equal(t, day(2024, time.July, 12), stats.DeltaEnd)
	assert.Equal(t, 2, stats.UpdatedTickers)
	assert.Equal(t, 4, stats.RecordsInserted)

	// One batch of two symbols, not one call per symbol.
	require.Len(t, p.batchCalls, 1)
	assert.Equal(t, []string{"AAPL", "MSFT"}, p.batchCalls[0])

	assert.EqualValues(t, 6, countRows(t, db, &models.DailyPrice{}))
}

func TestDeltaStretchesOverMissedNights(t *testing.T) {
	p := newFakeProvider()
	seedBars(p, "AAPL") // July 10-12

	db := newTestDB(t)
	storeHistory(t, db, bar("AAPL", day(2024, time.July, 9), 99, 900))

	stats, err := deltaJob(db, p, time.Date(2024, time.July, 12, 21, 0, 0, 0, time.UTC)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, day(2024, time.July, 10), stats.DeltaStart)
	assert.Equal(t, 3, stats.RecordsInserted)
}

func TestDeltaCountsBatchesWithNoData(t *testing.T) {
	p := newFakeProvider() // nothing upstream

	db := newTestDB(t)
	storeHistory(t, db, bar("AAPL", day(2024, time.July, 10), 100, 1000))

	stats, err := deltaJob(db, p, time.Date(2024, time.July, 12, 21, 0, 0, 0, time.UTC)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FailedTickers)
	assert.Equal(t, 0, stats.UpdatedTickers)
}
