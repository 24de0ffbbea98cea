// Package stockdata is the read path: price series and stock detail
// lookups that repair their own data on demand. A read that finds holes
// in the stored series fetches just the missing days, persists them, and
// answers from the merged result, so a cold or stale symbol still returns
// a complete series on first request.
package stockdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go_screener_backend/models"
	"go_screener_backend/services/cache"
	"go_screener_backend/services/marketcalendar"
	"go_screener_backend/services/providers"
	"go_screener_backend/services/syncjobs"
)

// ErrNotFound is returned when a symbol yields no data locally or
// upstream after gap filling.
var ErrNotFound = errors.New("no data available for symbol")

// PricePoint is one daily observation in the API-facing series shape.
type PricePoint struct {
	Date   string          `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// PriceSeries is the assembled response for one symbol and range.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Start  string       `json:"start"`
	End    string       `json:"end"`
	Points []PricePoint `json:"points"`
}

// PriceService serves price series, filling gaps from the provider as a
// side effect of reads.
type PriceService struct {
	db          *gorm.DB
	provider    providers.MarketDataProvider
	invalidator *cache.Invalidator
	logger      *logrus.Entry
	now         func() time.Time
}

func NewPriceService(db *gorm.DB, provider providers.MarketDataProvider, invalidator *cache.Invalidator,
	logger *logrus.Logger) *PriceService {
	return &PriceService{
		db:          db,
		provider:    provider,
		invalidator: invalidator,
		logger:      logger.WithField("component", "price_service"),
		now:         time.Now,
	}
}

// PriceHistory returns the daily series for [start, end], fetching
// whatever the store is missing first. Read-your-writes: freshly fetched
// rows appear in this call's result, not just the next one.
func (s *PriceService) PriceHistory(ctx context.Context, symbol string, start, end time.Time) (*PriceSeries, error) {
	start = marketcalendar.Date(start)
	end = marketcalendar.Date(end)
	target := marketcalendar.LastTradingDay(s.now())
	if end.After(target) {
		end = target
	}
	if start.After(end) {
		return nil, fmt.Errorf("invalid range: start after end")
	}

	stored, err := s.storedRange(symbol, start, end)
	if err != nil {
		return nil, err
	}

	fetched := s.fillGaps(ctx, symbol, stored, start, end, target)
	if fetched {
		s.invalidator.SeriesMutated(ctx, symbol)
		if stored, err = s.storedRange(symbol, start, end); err != nil {
			return nil, err
		}
	}

	if len(stored) == 0 {
		return nil, ErrNotFound
	}

	series := &PriceSeries{
		Symbol: symbol,
		Start:  start.Format("2006-01-02"),
		End:    end.Format("2006-01-02"),
		Points: make([]PricePoint, 0, len(stored)),
	}
	for _, row := range stored {
		series.Points = append(series.Points, PricePoint{
			Date:   marketcalendar.Date(row.Date).Format("2006-01-02"),
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}
	return series, nil
}

// fillGaps fetches the stale tail and interior holes of a symbol's
// series, persists what came back, and reports whether anything was
// written. Fetch failures degrade to serving what the store has.
func (s *PriceService) fillGaps(ctx context.Context, symbol string, stored []models.DailyPrice, start, end, target time.Time) bool {
	dates := make([]time.Time, 0, len(stored))
	for _, row := range stored {
		dates = append(dates, marketcalendar.Date(row.Date))
	}

	var runs [][2]time.Time

	// Cold symbol: one fetch for the whole requested range.
	if len(dates) == 0 {
		runs = append(runs, [2]time.Time{start, end})
	} else {
		// Stale tail beyond the newest stored day in range.
		newest := dates[len(dates)-1]
		if newest.Before(end) {
			runs = append(runs, [2]time.Time{newest.AddDate(0, 0, 1), end})
		}
		// Interior holes, grouped into contiguous trading-day runs.
		missing := marketcalendar.MissingTradingDays(dates, start, newest)
		runs = append(runs, contiguousRuns(missing)...)
	}

	fetched := false
	for _, run := range runs {
		history := s.provider.HistoricalPrices(ctx, symbol, run[0], run[1])
		if history.Empty() {
			s.logger.Debugf("No data for %s in gap %s..%s", symbol,
				run[0].Format("2006-01-02"), run[1].Format("2006-01-02"))
			continue
		}
		if _, err := syncjobs.UpsertHistory(s.db, history); err != nil {
			s.logger.Errorf("Gap fill upsert failed for %s: %v", symbol, err)
			continue
		}
		fetched = true
	}
	return fetched
}

func (s *PriceService) storedRange(symbol string, start, end time.Time) ([]models.DailyPrice, error) {
	var ticker models.Ticker
	err := s.db.Where("symbol = ?", symbol).First(&ticker).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ticker lookup failed: %w", err)
	}

	var rows []models.DailyPrice
	if err := s.db.Where("ticker_id = ? AND date >= ? AND date <= ?", ticker.ID, start, end).
		Order("date").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("price query failed: %w", err)
	}
	return rows, nil
}

// contiguousRuns groups an ascending list of missing trading days into
// [first, last] runs with no trading day between consecutive members, so
// each run becomes one provider request.
func contiguousRuns(days []time.Time) [][2]time.Time {
	var runs [][2]time.Time
	for i := 0; i < len(days); {
		j := i
		for j+1 < len(days) && days[j+1].Equal(marketcalendar.NextTradingDay(days[j])) {
			j++
		}
		runs = append(runs, [2]time.Time{days[i], days[j]})
		i = j + 1
	}
	return runs
}
