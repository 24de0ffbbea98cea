package syncjobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go_screener_backend/models"
	"go_screener_backend/services/cache"
	"go_screener_backend/services/marketcalendar"
	"go_screener_backend/services/providers"
)

// RetryProcessor drains the failed-ticker queue one symbol at a time.
// A symbol gets at most MaxRetryAttempts fetches; after that it is marked
// permanent_failure and left in the table for operator review.
type RetryProcessor struct {
	db           *gorm.DB
	provider     providers.MarketDataProvider
	invalidator  *cache.Invalidator
	logger       *logrus.Entry
	historyYears int
	now          func() time.Time
}

func NewRetryProcessor(db *gorm.DB, provider providers.MarketDataProvider, invalidator *cache.Invalidator,
	logger *logrus.Logger, historyYears int) *RetryProcessor {
	return &RetryProcessor{
		db:           db,
		provider:     provider,
		invalidator:  invalidator,
		logger:       logger.WithField("job", "retry_queue"),
		historyYears: historyYears,
		now:          time.Now,
	}
}

// Run processes every eligible entry: status pending and retry budget
// remaining. Per-symbol failures never abort the sweep.
func (p *RetryProcessor) Run(ctx context.Context) (stats RetryStats, err error) {
	stats.StartTime = p.now()
	defer func() { stats.EndTime = p.now() }()

	var pending []models.FailedTicker
	if err := p.db.Where("status = ? AND retry_count < ?", models.FailedPending, models.MaxRetryAttempts).
		Order("symbol").Find(&pending).Error; err != nil {
		return stats, err
	}
	stats.Eligible = len(pending)
	if len(pending) == 0 {
		return stats, nil
	}

	end := marketcalendar.LastTradingDay(p.now())
	start := end.AddDate(-p.historyYears, 0, 0)

	p.logger.Infof("Retry queue: %d eligible tickers", len(pending))

	var recovered []string
	for i := range pending {
		if p.retryOne(ctx, &pending[i], start, end, &stats) {
			recovered = append(recovered, pending[i].Symbol)
		}
	}

	if len(recovered) > 0 {
		p.invalidator.PricesMutated(ctx, recovered)
	}

	p.logger.Infof("Retry queue done: %d recovered, %d still pending, %d permanent failures",
		stats.Recovered, stats.StillPending, stats.Permanent)

	return stats, nil
}

// retryOne attempts a single queue entry. The attempt is stamped before
// the fetch so a crash mid-fetch still consumes retry budget.
func (p *RetryProcessor) retryOne(ctx context.Context, entry *models.FailedTicker, start, end time.Time, stats *RetryStats) bool {
	entry.RetryCount++
	updates := map[string]interface{}{
		"status":       models.FailedRetrying,
		"retry_count":  entry.RetryCount,
		"last_attempt": p.now(),
	}
	if err := p.db.Model(entry).Updates(updates).Error; err != nil {
		p.logger.Errorf("Failed to mark %s retrying: %v", entry.Symbol, err)
		stats.StillPending++
		return false
	}

	history := p.provider.HistoricalPrices(ctx, entry.Symbol, start, end)
	if history.Empty() {
		p.recordFailure(entry, "no data returned from provider", stats)
		return false
	}

	records, err := UpsertHistory(p.db, history)
	if err != nil {
		p.recordFailure(entry, err.Error(), stats)
		return false
	}

	if err := p.db.Delete(entry).Error; err != nil {
		p.logger.Errorf("Failed to remove recovered ticker %s from queue: %v", entry.Symbol, err)
	}
	stats.Recovered++
	stats.RecordsInserted += records
	p.logger.Infof("Recovered %s (%d records, attempt %d)", entry.Symbol, records, entry.RetryCount)
	return true
}

func (p *RetryProcessor) recordFailure(entry *models.FailedTicker, message string, stats *RetryStats) {
	status := models.FailedPending
	if entry.RetryCount >= models.MaxRetryAttempts {
		status = models.FailedPermanent
		stats.Permanent++
		p.logger.Warnf("Ticker %s exhausted retry budget, marking permanent failure", entry.Symbol)
	} else {
		stats.StillPending++
	}
	if err := p.db.Model(entry).Updates(map[string]interface{}{
		"status":        status,
		"error_message": message,
	}).Error; err != nil {
		p.logger.Errorf("Failed to record retry failure for %s: %v", entry.Symbol, err)
	}
}
