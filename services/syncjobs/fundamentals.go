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
	"go_screener_backend/services/providers"
)

// RotationUpdater refreshes fundamentals for a rotating slice of the
// universe each night so that every ticker is touched once per cycle
// without ever fetching the whole universe in one run.
type RotationUpdater struct {
	db          *gorm.DB
	provider    providers.MarketDataProvider
	invalidator *cache.Invalidator
	logger      *logrus.Entry
	batchSize   int
	cycleDays   int
	now         func() time.Time
}

func NewRotationUpdater(db *gorm.DB, provider providers.MarketDataProvider, invalidator *cache.Invalidator,
	logger *logrus.Logger, batchSize, cycleDays int) *RotationUpdater {
	return &RotationUpdater{
		db:          db,
		provider:    provider,
		invalidator: invalidator,
		logger:      logger.WithField("job", "fundamentals_rotation"),
		batchSize:   batchSize,
		cycleDays:   cycleDays,
		now:         time.Now,
	}
}

// Run refreshes today's rotation segment. The segment is selected purely
// from the weekday and the sorted universe, so consecutive days cover
// disjoint slices and a full cycle covers every ticker exactly once.
func (u *RotationUpdater) Run(ctx context.Context) (RotationStats, error) {
	day := cycleDay(u.now(), u.cycleDays)
	return u.runDay(ctx, day)
}

func (u *RotationUpdater) runDay(ctx context.Context, day int) (RotationStats, error) {
	stats := RotationStats{CycleDay: day}

	symbols, err := TrackedSymbols(u.db)
	if err != nil {
		return stats, err
	}
	stats.TotalTickers = len(symbols)

	lo, hi := rotationSlice(len(symbols), u.cycleDays, day)
	segment := symbols[lo:hi]
	stats.SegmentSize = len(segment)
	if len(segment) == 0 {
		u.logger.Infof("Rotation day %d: empty segment, nothing to do", day)
		return stats, nil
	}

	u.logger.Infof("Rotation day %d: refreshing %d of %d tickers", day, len(segment), len(symbols))

	var touched []string
	for _, batch := range PartitionSymbols(segment, u.batchSize) {
		records := u.provider.BatchFundamentals(ctx, batch)
		for _, symbol := range batch {
			record, ok := records[symbol]
			if !ok || record == nil {
				stats.Failed++
				continue
			}
			if err := upsertFundamental(u.db, record, u.now()); err != nil {
				u.logger.Errorf("Fundamentals upsert failed for %s: %v", symbol, err)
				stats.Failed++
				continue
			}
			stats.Updated++
			touched = append(touched, symbol)
		}
	}

	if len(touched) > 0 {
		u.invalidator.FundamentalsMutated(ctx, touched)
	}

	u.logger.Infof("Rotation day %d complete: %d updated, %d failed", day, stats.Updated, stats.Failed)
	return stats, nil
}

// RefreshTicker refreshes fundamentals for a single symbol outside the
// rotation, used by the on-demand read path.
func (u *RotationUpdater) RefreshTicker(ctx context.Context, symbol string) error {
	record := u.provider.Fundamentals(ctx, symbol)
	if record == nil {
		return fmt.Errorf("no fundamentals available for %s", symbol)
	}
	if err := upsertFundamental(u.db, record, u.now()); err != nil {
		return err
	}
	u.invalidator.FundamentalsMutated(ctx, []string{symbol})
	return nil
}

// cycleDay maps a wall-clock time to a rotation day index with Monday as
// day 0, matching the sorted-universe slicing.
func cycleDay(t time.Time, cycleDays int) int {
	return (int(t.Weekday()) + 6) % 7 % cycleDays
}

// rotationSlice returns the [lo, hi) bounds of the segment owned by the
// given day. Equal segments of total/cycleDays, with the final day
// absorbing the remainder so the union over a cycle is the whole universe.
func rotationSlice(total, cycleDays, day int) (int, int) {
	if cycleDays <= 0 || day < 0 || day >= cycleDays {
		return 0, 0
	}
	seg := total / cycleDays
	lo := day * seg
	hi := lo + seg
	if day == cycleDays-1 {
		hi = total
	}
	if lo > total {
		lo = total
	}
	if hi > total {
		hi = total
	}
	return lo, hi
}

// upsertFundamental overwrites the single fundamentals row for a symbol,
// creating the ticker first if it has never been seen.
func upsertFundamental(db *gorm.DB, record *providers.FundamentalRecord, at time.Time) error {
	return db.Transaction(func(tx *gorm.DB) error {
		ids, err := ensureTickers(tx, []string{record.Symbol})
		if err != nil {
			return err
		}
		tickerID := ids[record.Symbol]

		if record.Name != "" || record.Exchange != "" {
			updates := map[string]interface{}{}
			if record.Name != "" {
				updates["name"] = record.Name
			}
			if record.Exchange != "" {
				updates["exchange"] = record.Exchange
			}
			if err := tx.Model(&models.Ticker{}).Where("id = ?", tickerID).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update ticker %s: %w", record.Symbol, err)
			}
		}

		row := fundamentalRow(tickerID, record, at)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticker_id"}},
			UpdateAll: true,
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to upsert fundamentals for %s: %w", record.Symbol, err)
		}
		return nil
	})
}

func fundamentalRow(tickerID uint, r *providers.FundamentalRecord, at time.Time) models.Fundamental {
	return models.Fundamental{
		TickerID:         tickerID,
		PERatio:          r.PERatio,
		ForwardPE:        r.ForwardPE,
		PEGRatio:         r.PEGRatio,
		PriceToBook:      r.PriceToBook,
		PriceToSales:     r.PriceToSales,
		EVToEBITDA:       r.EVToEBITDA,
		ProfitMargin:     r.ProfitMargin,
		OperatingMargin:  r.OperatingMargin,
		ROE:              r.ROE,
		ROA:              r.ROA,
		DebtToEquity:     r.DebtToEquity,
		CurrentRatio:     r.CurrentRatio,
		QuickRatio:       r.QuickRatio,
		RevenueGrowth:    r.RevenueGrowth,
		EarningsGrowth:   r.EarningsGrowth,
		DividendYield:    r.DividendYield,
		DividendRate:     r.DividendRate,
		PayoutRatio:      r.PayoutRatio,
		MarketCap:        r.MarketCap,
		Volume:           r.Volume,
		AvgVolume:        r.AvgVolume,
		Beta:             r.Beta,
		CurrentPrice:     r.CurrentPrice,
		DayChangePercent: r.DayChangePercent,
		FiftyTwoWeekHigh: r.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:  r.FiftyTwoWeekLow,
		Sector:           r.Sector,
		Industry:         r.Industry,
		Extras:           r.Extras,
		LastUpdated:      at,
	}
}
