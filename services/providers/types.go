package providers

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar is one normalized daily OHLCV observation in long format.
type PriceBar struct {
	Symbol string
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// DividendEvent is a normalized cash dividend.
type DividendEvent struct {
	Symbol string
	Date   time.Time
	Amount float64
}

// SplitEvent is a normalized stock split.
type SplitEvent struct {
	Symbol string
	Date   time.Time
	Ratio  float64
}

// PriceHistory bundles everything a historical fetch can return. Dividends
// and splits ride alongside the bars as explicit slices rather than
// side-channel attributes on the price table.
type PriceHistory struct {
	Bars      []PriceBar
	Dividends []DividendEvent
	Splits    []SplitEvent
}

// Empty reports whether the fetch produced no usable price rows.
func (h *PriceHistory) Empty() bool {
	return h == nil || len(h.Bars) == 0
}

// Merge appends another history's rows into h.
func (h *PriceHistory) Merge(other *PriceHistory) {
	if other == nil {
		return
	}
	h.Bars = append(h.Bars, other.Bars...)
	h.Dividends = append(h.Dividends, other.Dividends...)
	h.Splits = append(h.Splits, other.Splits...)
}

// FundamentalRecord is the normalized fundamentals shape every provider
// adapter produces. Common metrics are named optional fields; anything
// provider-specific lands in Extras.
type FundamentalRecord struct {
	Symbol string

	// Valuation
	PERatio      *float64
	ForwardPE    *float64
	PEGRatio     *float64
	PriceToBook  *float64
	PriceToSales *float64
	EVToEBITDA   *float64

	// Profitability
	ProfitMargin    *float64
	OperatingMargin *float64
	ROE             *float64
	ROA             *float64

	// Financial health
	DebtToEquity *float64
	CurrentRatio *float64
	QuickRatio   *float64

	// Growth
	RevenueGrowth  *float64
	EarningsGrowth *float64

	// Dividends
	DividendYield *float64
	DividendRate  *float64
	PayoutRatio   *float64

	// Size & trading
	MarketCap *int64
	Volume    *int64
	AvgVolume *int64
	Beta      *float64

	// Current price info
	CurrentPrice     *float64
	DayChangePercent *float64
	FiftyTwoWeekHigh *float64
	FiftyTwoWeekLow  *float64

	// Classification
	Name     string
	Exchange string
	Sector   string
	Industry string

	Extras map[string]interface{}
}

// Usage is rate-limit/usage introspection for observability.
type Usage struct {
	Provider      string `json:"provider"`
	RequestsMade  int64  `json:"requests_made"`
	JitterEnabled bool   `json:"jitter_enabled"`
}

// MarketDataProvider normalizes heterogeneous upstream APIs into one
// contract. Failure policy: any upstream error or empty response comes
// back as nil (or an empty map), never an error value. Callers treat nil
// and empty as the uniform "no data" signal and never see error subtypes.
type MarketDataProvider interface {
	Name() string

	// HistoricalPrices fetches daily OHLCV for a single symbol.
	HistoricalPrices(ctx context.Context, symbol string, start, end time.Time) *PriceHistory

	// BatchHistoricalPrices fetches daily OHLCV for many symbols into one
	// long-format history. bulk selects the longer inter-request jitter
	// used by the multi-hour backfill; daily delta uses the short window.
	BatchHistoricalPrices(ctx context.Context, symbols []string, start, end time.Time, bulk bool) *PriceHistory

	// Fundamentals fetches the normalized fundamentals record for one symbol.
	Fundamentals(ctx context.Context, symbol string) *FundamentalRecord

	// BatchFundamentals fetches fundamentals for many symbols. Providers
	// without native batch support fall back to sequential per-symbol
	// calls with an inter-call delay.
	BatchFundamentals(ctx context.Context, symbols []string) map[string]*FundamentalRecord

	SupportsBatch() bool
	Usage() Usage
}
