package syncjobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"go_screener_backend/models"
	"go_screener_backend/services/providers"
)

func f64(v float64) *float64 { return &v }

func fundamentalFor(symbol string, pe float64) *providers.FundamentalRecord {
	return &providers.FundamentalRecord{
		Symbol:  symbol,
		PERatio: f64(pe),
		Name:    symbol + " Inc",
		Sector:  "Technology",
		Extras:  map[string]interface{}{"trailingEps": 6.5},
	}
}

func rotationUpdater(db *gorm.DB, p *fakeProvider) *RotationUpdater {
	u := NewRotationUpdater(db, p, nil, testLogger(), 2, 7)
	u.now = fixedNow(time.Date(2024, time.July, 12, 22, 0, 0, 0, time.UTC))
	return u
}

func TestRotationSliceCoversUniverseExactlyOnce(t *testing.T) {
	for _, total := range []int{0, 1, 6, 7, 13, 100, 4387} {
		covered := 0
		prevHi := 0
		for d := 0; d < 7; d++ {
			lo, hi := rotationSlice(total, 7, d)
			assert.Equal(t, prevHi, lo, "total=%d day=%d: segments must be contiguous", total, d)
			assert.LessOrEqual(t, lo, hi)
			covered += hi - lo
			prevHi = hi
		}
		assert.Equal(t, total, covered, "total=%d: union of segments must be the whole universe", total)
		assert.Equal(t, total, prevHi)
	}
}

func TestRotationSliceLastDayAbsorbsRemainder(t *testing.T) {
	lo, hi := rotationSlice(100, 7, 6)
	assert.Equal(t, 84, lo)
	assert.Equal(t, 100, hi)

	lo, hi = rotationSlice(100, 7, 0)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 14, hi)
}

func TestCycleDayMondayIsZero(t *testing.T) {
	// 2024-07-08 is a Monday, 2024-07-14 a Sunday.
	assert.Equal(t, 0, cycleDay(day(2024, time.July, 8), 7))
	assert.Equal(t, 4, cycleDay(day(2024, time.July, 12), 7))
	assert.Equal(t, 6, cycleDay(day(2024, time.July, 14), 7))
}

func TestRotationRefreshesOnlyTodaysSegment(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t)

	// 14 tracked tickers, cycle of 7: each day owns exactly 2.
	var symbols []string
	for i := 0; i < 14; i++ {
		s := fmt.Sprintf("T%02d", i)
		symbols = append(symbols, s)
		require.NoError(t, db.Create(&models.Ticker{Symbol: s}).Error)
		p.fundamentals[s] = fundamentalFor(s, float64(10+i))
	}

	stats, err := rotationUpdater(db, p).runDay(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.CycleDay)
	assert.Equal(t, 14, stats.TotalTickers)
	assert.Equal(t, 2, stats.SegmentSize)
	assert.Equal(t, 2, stats.Updated)
	assert.Equal(t, 0, stats.Failed)

	assert.EqualValues(t, 2, countRows(t, db, &models.Fundamental{}))

	// Day 3 of a sorted 14-symbol universe owns T06 and T07.
	require.Len(t, p.fundCalls, 1)
	assert.Equal(t, []string{"T06", "T07"}, p.fundCalls[0])
}

func TestRotationUpsertOverwritesRow(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.Ticker{Symbol: "AAPL"}).Error)

	// With one tracked ticker, only the remainder-absorbing final cycle
	// day owns a non-empty segment.
	p.fundamentals["AAPL"] = fundamentalFor("AAPL", 28.5)
	u := rotationUpdater(db, p)
	_, err := u.runDay(context.Background(), 6)
	require.NoError(t, err)

	p.fundamentals["AAPL"] = fundamentalFor("AAPL", 31.2)
	_, err = u.runDay(context.Background(), 6)
	require.NoError(t, err)

	assert.EqualValues(t, 1, countRows(t, db, &models.Fundamental{}))

	var row models.Fundamental
	require.NoError(t, db.First(&row).Error)
	require.NotNil(t, row.PERatio)
	assert.InDelta(t, 31.2, *row.PERatio, 0.0001)
	assert.Equal(t, "Technology", row.Sector)
	assert.Equal(t, 6.5, row.Extras["trailingEps"])
}

func TestRotationCountsMissingRecordsAsFailed(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.Ticker{Symbol: "AAPL"}).Error)
	require.NoError(t, db.Create(&models.Ticker{Symbol: "MSFT"}).Error)
	p.fundamentals["AAPL"] = fundamentalFor("AAPL", 28.5)

	stats, err := rotationUpdater(db, p).runDay(context.Background(), 6)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Failed)
}

func TestRefreshTickerOnDemand(t *testing.T) {
	p := newFakeProvider()
	db := newTestDB(t)
	p.fundamentals["NVDA"] = fundamentalFor("NVDA", 65.1)

	u := rotationUpdater(db, p)
	require.NoError(t, u.RefreshTicker(context.Background(), "NVDA"))

	// Ticker identity is created on first sight, name filled from the record.
	var ticker models.Ticker
	require.NoError(t, db.Where("symbol = ?", "NVDA").First(&ticker).Error)
	assert.Equal(t, "NVDA Inc", ticker.Name)

	assert.EqualValues(t, 1, countRows(t, db, &models.Fundamental{}))

	require.Error(t, u.RefreshTicker(context.Background(), "UNKNOWN"))
}
