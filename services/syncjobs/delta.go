package syncjobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go_screener_backend/services/cache"
	"go_screener_backend/services/marketcalendar"
	"go_screener_backend/services/providers"
)

// Skip reasons reported by a delta run that made no provider calls.
const (
	SkipNonTradingDay = "non_trading_day"
	SkipEmptyStore    = "empty_store"
	SkipUpToDate      = "up_to_date"
)

// DeltaSyncJob fetches only the trading days between the newest stored
// price date and the last completed trading day. It is the nightly
// steady-state job: cheap when the store is current, self-healing after
// missed nights because the window stretches to cover them.
type DeltaSyncJob struct {
	db          *gorm.DB
	provider    providers.MarketDataProvider
	invalidator *cache.Invalidator
	logger      *logrus.Entry
	batchSize   int
	now         func() time.Time
}

func NewDeltaSyncJob(db *gorm.DB, provider providers.MarketDataProvider, invalidator *cache.Invalidator,
	logger *logrus.Logger, batchSize int) *DeltaSyncJob {
	return &DeltaSyncJob{
		db:          db,
		provider:    provider,
		invalidator: invalidator,
		logger:      logger.WithField("job", "delta_sync"),
		batchSize:   batchSize,
		now:         time.Now,
	}
}

// Run performs one delta pass. Three conditions make it a deliberate
// no-op: today is not a trading day, the store holds no prices at all
// (backfill territory), or the store is already current.
func (j *DeltaSyncJob) Run(ctx context.Context) (DeltaStats, error) {
	stats := DeltaStats{}
	today := j.now()

	if !marketcalendar.IsTradingDay(today) {
		stats.SkipReason = SkipNonTradingDay
		j.logger.Info("Delta sync skipped: not a trading day")
		return stats, nil
	}

	latest, ok, err := latestStoredDate(j.db)
	if err != nil {
		return stats, err
	}
	if !ok {
		stats.SkipReason = SkipEmptyStore
		j.logger.Warn("Delta sync skipped: no stored prices, run a bulk backfill first")
		return stats, nil
	}

	target := marketcalendar.LastTradingDay(today)
	if !latest.Before(target) {
		stats.SkipReason = SkipUpToDate
		j.logger.Info("Delta sync skipped: store already current")
		return stats, nil
	}

	stats.DeltaStart = latest.AddDate(0, 0, 1)
	stats.DeltaEnd = target

	symbols, err := TrackedSymbols(j.db)
	if err != nil {
		return stats, err
	}
	stats.TotalTickers = len(symbols)
	if len(symbols) == 0 {
		return stats, nil
	}

	j.logger.Infof("Delta sync: %d tickers, range %s to %s",
		len(symbols), stats.DeltaStart.Format("2006-01-02"), stats.DeltaEnd.Format("2006-01-02"))

	var touched []string
	for _, batch := range PartitionSymbols(symbols, j.batchSize) {
		history := j.provider.BatchHistoricalPrices(ctx, batch, stats.DeltaStart, stats.DeltaEnd, false)
		if history.Empty() {
			stats.FailedTickers += len(batch)
			j.logger.Warnf("Delta batch returned no data (%d tickers)", len(batch))
			continue
		}

		records, err := UpsertHistory(j.db, history)
		if err != nil {
			stats.FailedTickers += len(batch)
			j.logger.Errorf("Delta batch upsert failed: %v", err)
			continue
		}

		got := historySymbols(history)
		stats.UpdatedTickers += len(got)
		stats.FailedTickers += len(batch) - len(got)
		stats.RecordsInserted += records
		touched = append(touched, got...)
	}

	if len(touched) > 0 {
		j.invalidator.PricesMutated(ctx, touched)
	}

	j.logger.Infof("Delta sync complete: %d updated, %d failed, %d records",
		stats.UpdatedTickers, stats.FailedTickers, stats.RecordsInserted)

	return stats, nil
}
