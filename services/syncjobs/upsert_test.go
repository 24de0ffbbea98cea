package syncjobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_screener_backend/models"
	"go_screener_backend/services/providers"
)

func TestUpsertHistoryCreatesTickersWithPrices(t *testing.T) {
	db := newTestDB(t)

	n, err := UpsertHistory(db, &providers.PriceHistory{
		Bars: []providers.PriceBar{
			bar("AAPL", day(2024, time.July, 10), 100, 1000),
			bar("AAPL", day(2024, time.July, 11), 101, 1100),
			bar("MSFT", day(2024, time.July, 10), 200, 2000),
		},
		Dividends: []providers.DividendEvent{
			{Symbol: "AAPL", Date: day(2024, time.July, 11), Amount: 0.24},
		},
		Splits: []providers.SplitEvent{
			{Symbol: "MSFT", Date: day(2024, time.July, 10), Ratio: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.EqualValues(t, 2, countRows(t, db, &models.Ticker{}))
	assert.EqualValues(t, 3, countRows(t, db, &models.DailyPrice{}))
	assert.EqualValues(t, 1, countRows(t, db, &models.Dividend{}))
	assert.EqualValues(t, 1, countRows(t, db, &models.StockSplit{}))
}

func TestUpsertHistoryOverwritesOnSameDay(t *testing.T) {
	db := newTestDB(t)

	_, err := UpsertHistory(db, &providers.PriceHistory{
		Bars: []providers.PriceBar{bar("AAPL", day(2024, time.July, 10), 100, 1000)},
	})
	require.NoError(t, err)

	// Same (ticker, date) arrives again with corrected values.
	_, err = UpsertHistory(db, &providers.PriceHistory{
		Bars: []providers.PriceBar{bar("AAPL", day(2024, time.July, 10), 105, 1500)},
	})
	require.NoError(t, err)

	assert.EqualValues(t, 1, countRows(t, db, &models.DailyPrice{}))

	var row models.DailyPrice
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, "105", row.Close.String())
	assert.EqualValues(t, 1500, row.Volume)
}

func TestUpsertHistoryNilIsNoop(t *testing.T) {
	db := newTestDB(t)
	n, err := UpsertHistory(db, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLatestStoredDate(t *testing.T) {
	db := newTestDB(t)

	_, ok, err := latestStoredDate(db)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = UpsertHistory(db, &providers.PriceHistory{
		Bars: []providers.PriceBar{
			bar("AAPL", day(2024, time.July, 10), 100, 1000),
			bar("AAPL", day(2024, time.July, 12), 102, 1200),
		},
	})
	require.NoError(t, err)

	latest, ok, err := latestStoredDate(db)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, day(2024, time.July, 12), latest)
}

func TestLoadUniverseMergesSeedAndStored(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.Ticker{Symbol: "MSFT"}).Error)
	require.NoError(t, db.Create(&models.Ticker{Symbol: "AAPL"}).Error)

	universe, err := LoadUniverse(db, []string{"GOOG", "AAPL", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "GOOG", "MSFT"}, universe)
}

func TestPartitionSymbols(t *testing.T) {
	batches := PartitionSymbols([]string{"A", "B", "C", "D", "E"}, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"A", "B"}, batches[0])
	assert.Equal(t, []string{"E"}, batches[2])

	assert.Nil(t, PartitionSymbols(nil, 2))
}

func TestRetentionTrimDeletesBeforeCutoff(t *testing.T) {
	db := newTestDB(t)

	_, err := UpsertHistory(db, &providers.PriceHistory{
		Bars: []providers.PriceBar{
			bar("AAPL", day(2018, time.July, 10), 50, 500),
			bar("AAPL", day(2024, time.July, 10), 100, 1000),
		},
		Dividends: []providers.DividendEvent{
			{Symbol: "AAPL", Date: day(2018, time.July, 10), Amount: 0.18},
		},
	})
	require.NoError(t, err)

	trimmer := NewRetentionTrimmer(db, testLogger(), 5)
	trimmer.now = fixedNow(time.Date(2024, time.July, 12, 3, 0, 0, 0, time.UTC))

	stats, err := trimmer.Run()
	require.NoError(t, err)

	assert.EqualValues(t, 1, stats.PricesDeleted)
	assert.EqualValues(t, 1, stats.DividendsDeleted)
	assert.Equal(t, day(2019, time.July, 12), stats.Cutoff)

	assert.EqualValues(t, 1, countRows(t, db, &models.DailyPrice{}))
	assert.EqualValues(t, 0, countRows(t, db, &models.Dividend{}))
}
