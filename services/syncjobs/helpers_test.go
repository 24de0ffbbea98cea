package syncjobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"go_screener_backend/models"
	"go_screener_backend/services/providers"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateMarketModels(db))
	require.NoError(t, models.MigrateFundamentalModels(db))
	require.NoError(t, models.MigrateSyncModels(db))
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func bar(symbol string, date time.Time, close float64, volume int64) providers.PriceBar {
	c := decimal.NewFromFloat(close)
	return providers.PriceBar{
		Symbol: symbol,
		Date:   date,
		Open:   c,
		High:   c,
		Low:    c,
		Close:  c,
		Volume: volume,
	}
}

// fakeProvider serves canned bars and fundamentals per symbol and records
// every call so tests can assert on batching and no-op behavior.
type fakeProvider struct {
	mu           sync.Mutex
	bars         map[string][]providers.PriceBar
	fundamentals map[string]*providers.FundamentalRecord

	singleCalls []string
	batchCalls  [][]string
	fundCalls   [][]string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		bars:         map[string][]providers.PriceBar{},
		fundamentals: map[string]*providers.FundamentalRecord{},
	}
}

func (f *fakeProvider) Name() string        { return "fake" }
func (f *fakeProvider) SupportsBatch() bool { return true }
func (f *fakeProvider) Usage() providers.Usage {
	return providers.Usage{Provider: "fake"}
}

func (f *fakeProvider) inRange(symbol string, start, end time.Time) []providers.PriceBar {
	var out []providers.PriceBar
	for _, b := range f.bars[symbol] {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (f *fakeProvider) HistoricalPrices(_ context.Context, symbol string, start, end time.Time) *providers.PriceHistory {
	f.mu.Lock()
	f.singleCalls = append(f.singleCalls, symbol)
	f.mu.Unlock()

	bars := f.inRange(symbol, start, end)
	if len(bars) == 0 {
		return nil
	}
	return &providers.PriceHistory{Bars: bars}
}

func (f *fakeProvider) BatchHistoricalPrices(_ context.Context, symbols []string, start, end time.Time, _ bool) *providers.PriceHistory {
	f.mu.Lock()
	f.batchCalls = append(f.batchCalls, append([]string(nil), symbols...))
	f.mu.Unlock()

	history := &providers.PriceHistory{}
	for _, symbol := range symbols {
		history.Bars = append(history.Bars, f.inRange(symbol, start, end)...)
	}
	if history.Empty() {
		return nil
	}
	return history
}

func (f *fakeProvider) Fundamentals(_ context.Context, symbol string) *providers.FundamentalRecord {
	return f.fundamentals[symbol]
}

func (f *fakeProvider) BatchFundamentals(_ context.Context, symbols []string) map[string]*providers.FundamentalRecord {
	f.mu.Lock()
	f.fundCalls = append(f.fundCalls, append([]string(nil), symbols...))
	f.mu.Unlock()

	out := map[string]*providers.FundamentalRecord{}
	for _, symbol := range symbols {
		if r, ok := f.fundamentals[symbol]; ok {
			out[symbol] = r
		}
	}
	return out
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
