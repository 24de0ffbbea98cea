package cache

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Cache key builders shared by the read path and the invalidator.
func StockKey(symbol string) string {
	return fmt.Sprintf("stock:%s", symbol)
}

func PricesKey(symbol, period string) string {
	return fmt.Sprintf("prices:%s:%s", symbol, period)
}

// Invalidator is the thin policy layer the sync jobs call after a
// successful mutation batch. Invalidation is best-effort: a cache failure
// is logged and never fails the owning job; staleness beats blocking
// ingestion.
type Invalidator struct {
	store  Store
	logger *logrus.Entry
}

// NewInvalidator wraps a cache store. A nil store yields an invalidator
// whose calls are no-ops, so jobs run unchanged without Redis configured.
func NewInvalidator(store Store, logger *logrus.Logger) *Invalidator {
	return &Invalidator{
		store:  store,
		logger: logger.WithField("component", "invalidator"),
	}
}

// PricesMutated purges price-series caches after OHLCV rows change:
// the prices:* pattern plus each symbol's detail key.
func (inv *Invalidator) PricesMutated(ctx context.Context, symbols []string) {
	if inv == nil || inv.store == nil {
		return
	}
	if err := inv.store.DeleteByPattern(ctx, "prices:*"); err != nil {
		inv.logger.Warnf("Price pattern purge failed: %v", err)
	}
	for _, symbol := range symbols {
		if err := inv.store.Delete(ctx, StockKey(symbol)); err != nil {
			inv.logger.Warnf("Detail key purge failed for %s: %v", symbol, err)
		}
	}
}

// SeriesMutated purges the cached views of one symbol's price series.
func (inv *Invalidator) SeriesMutated(ctx context.Context, symbol string) {
	if inv == nil || inv.store == nil {
		return
	}
	if err := inv.store.DeleteByPattern(ctx, fmt.Sprintf("prices:%s:*", symbol)); err != nil {
		inv.logger.Warnf("Series purge failed for %s: %v", symbol, err)
	}
}

// FundamentalsMutated purges each symbol's detail key plus screener
// results, which are derived from fundamentals and must not serve stale
// filter output.
func (inv *Invalidator) FundamentalsMutated(ctx context.Context, symbols []string) {
	if inv == nil || inv.store == nil {
		return
	}
	for _, symbol := range symbols {
		if err := inv.store.Delete(ctx, StockKey(symbol)); err != nil {
			inv.logger.Warnf("Detail key purge failed for %s: %v", symbol, err)
		}
	}
	if err := inv.store.DeleteByPattern(ctx, "screener:*"); err != nil {
		inv.logger.Warnf("Screener pattern purge failed: %v", err)
	}
}
