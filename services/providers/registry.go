package providers

import (
	"github.com/sirupsen/logrus"

	"go_screener_backend/config"
)

// Registry holds the provider instances for the process. It is built once
// at startup and passed into each job by reference, so providers keep
// their sessions and request counters without hidden global state.
type Registry struct {
	historical   MarketDataProvider
	fundamentals MarketDataProvider
}

// NewRegistry constructs the provider set from config.
func NewRegistry(cfg *config.Config, logger *logrus.Logger) *Registry {
	jitter := JitterPolicy{
		Enabled:  cfg.RateLimitEnabled,
		BulkMin:  cfg.BulkJitterMin,
		BulkMax:  cfg.BulkJitterMax,
		DailyMin: cfg.DailyJitterMin,
		DailyMax: cfg.DailyJitterMax,
	}

	return &Registry{
		historical:   NewChartProvider(cfg.HistoricalBaseURL, jitter, logger),
		fundamentals: NewQuoteProvider(cfg.QuoteBaseURL, jitter, logger),
	}
}

// Historical returns the provider used for OHLCV series.
func (r *Registry) Historical() MarketDataProvider { return r.historical }

// Fundamentals returns the batch-capable fundamentals provider.
func (r *Registry) Fundamentals() MarketDataProvider { return r.fundamentals }

// Usage reports rate-limit/usage counters for every registered provider.
func (r *Registry) Usage() []Usage {
	return []Usage{r.historical.Usage(), r.fundamentals.Usage()}
}
