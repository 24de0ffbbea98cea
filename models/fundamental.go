package models

import (
	"time"

	"gorm.io/gorm"
)

// Fundamental is the mutable current-state snapshot of a ticker's
// fundamental metrics, one row per ticker. The whole row is overwritten
// on each refresh; LastUpdated advances monotonically.
//
// Common metrics are typed columns so the screener can index them;
// provider-specific leftovers go into Extras.
type Fundamental struct {
	TickerID uint `gorm:"primaryKey;autoIncrement:false" json:"ticker_id"`

	// Valuation
	PERatio      *float64 `gorm:"index" json:"pe_ratio"`
	ForwardPE    *float64 `json:"forward_pe"`
	PEGRatio     *float64 `json:"peg_ratio"`
	PriceToBook  *float64 `json:"price_to_book"`
	PriceToSales *float64 `json:"price_to_sales"`
	EVToEBITDA   *float64 `json:"ev_to_ebitda"`

	// Profitability
	ProfitMargin    *float64 `json:"profit_margin"`
	OperatingMargin *float64 `json:"operating_margin"`
	ROE             *float64 `gorm:"index" json:"roe"`
	ROA             *float64 `json:"roa"`

	// Financial health
	DebtToEquity *float64 `gorm:"index" json:"debt_to_equity"`
	CurrentRatio *float64 `json:"current_ratio"`
	QuickRatio   *float64 `json:"quick_ratio"`

	// Growth
	RevenueGrowth  *float64 `json:"revenue_growth"`
	EarningsGrowth *float64 `json:"earnings_growth"`

	// Dividends
	DividendYield *float64 `gorm:"index" json:"dividend_yield"`
	DividendRate  *float64 `json:"dividend_rate"`
	PayoutRatio   *float64 `json:"payout_ratio"`

	// Size & trading
	MarketCap *int64   `gorm:"index" json:"market_cap"`
	Volume    *int64   `json:"volume"`
	AvgVolume *int64   `json:"avg_volume"`
	Beta      *float64 `json:"beta"`

	// Current price info
	CurrentPrice     *float64 `json:"current_price"`
	DayChangePercent *float64 `json:"day_change_percent"`
	FiftyTwoWeekHigh *float64 `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  *float64 `json:"fifty_two_week_low"`

	// Classification
	Sector   string `gorm:"size:100;index" json:"sector"`
	Industry string `gorm:"size:100" json:"industry"`

	// Open-ended extension bag for fields not promoted to columns
	Extras map[string]interface{} `gorm:"serializer:json" json:"extras,omitempty"`

	LastUpdated time.Time `json:"last_updated"`
}

// MigrateFundamentalModels runs database migrations for fundamentals
func MigrateFundamentalModels(db *gorm.DB) error {
	return db.AutoMigrate(&Fundamental{})
}
