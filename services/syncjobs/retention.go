package syncjobs

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go_screener_backend/models"
	"go_screener_backend/services/marketcalendar"
)

// RetentionTrimmer deletes price and corporate-action rows older than the
// retention window so the store stays bounded. Runs weekly off-hours.
type RetentionTrimmer struct {
	db           *gorm.DB
	logger       *logrus.Entry
	historyYears int
	now          func() time.Time
}

func NewRetentionTrimmer(db *gorm.DB, logger *logrus.Logger, historyYears int) *RetentionTrimmer {
	return &RetentionTrimmer{
		db:           db,
		logger:       logger.WithField("job", "retention_trim"),
		historyYears: historyYears,
		now:          time.Now,
	}
}

// Run deletes everything dated before the retention cutoff.
func (t *RetentionTrimmer) Run() (RetentionStats, error) {
	cutoff := marketcalendar.Date(t.now().AddDate(-t.historyYears, 0, 0))
	stats := RetentionStats{Cutoff: cutoff}

	res := t.db.Where("date < ?", cutoff).Delete(&models.DailyPrice{})
	if res.Error != nil {
		return stats, res.Error
	}
	stats.PricesDeleted = res.RowsAffected

	res = t.db.Where("date < ?", cutoff).Delete(&models.Dividend{})
	if res.Error != nil {
		return stats, res.Error
	}
	stats.DividendsDeleted = res.RowsAffected

	res = t.db.Where("date < ?", cutoff).Delete(&models.StockSplit{})
	if res.Error != nil {
		return stats, res.Error
	}
	stats.SplitsDeleted = res.RowsAffected

	t.logger.Infof("Retention trim complete: %d prices, %d dividends, %d splits removed before %s",
		stats.PricesDeleted, stats.DividendsDeleted, stats.SplitsDeleted, cutoff.Format("2006-01-02"))

	return stats, nil
}
