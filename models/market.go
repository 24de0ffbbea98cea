package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ticker is the identity record for a tracked symbol. Rows are created
// lazily the first time a sync job observes the symbol and are never
// deleted by the sync engine.
type Ticker struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Symbol    string    `gorm:"uniqueIndex;not null" json:"symbol"`
	Name      string    `json:"name"`
	Exchange  string    `json:"exchange"` // NYSE, NASDAQ, AMEX
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DailyPrice is one OHLCV row keyed by (ticker, trading date).
// Re-fetching a known date overwrites the row instead of duplicating it.
type DailyPrice struct {
	TickerID uint            `gorm:"primaryKey;autoIncrement:false" json:"ticker_id"`
	Date     time.Time       `gorm:"primaryKey" json:"date"`
	Open     decimal.Decimal `gorm:"type:decimal(15,4)" json:"open"`
	High     decimal.Decimal `gorm:"type:decimal(15,4)" json:"high"`
	Low      decimal.Decimal `gorm:"type:decimal(15,4)" json:"low"`
	Close    decimal.Decimal `gorm:"type:decimal(15,4)" json:"close"`
	Volume   int64           `json:"volume"`
}

// StockSplit records a split event by (ticker, date).
type StockSplit struct {
	TickerID uint      `gorm:"primaryKey;autoIncrement:false" json:"ticker_id"`
	Date     time.Time `gorm:"primaryKey" json:"date"`
	Ratio    float64   `gorm:"not null" json:"ratio"`
}

// Dividend records a cash dividend by (ticker, date).
type Dividend struct {
	TickerID uint      `gorm:"primaryKey;autoIncrement:false" json:"ticker_id"`
	Date     time.Time `gorm:"primaryKey" json:"date"`
	Amount   float64   `gorm:"not null" json:"amount"`
}

// MigrateMarketModels runs database migrations for price-series models
func MigrateMarketModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Ticker{},
		&DailyPrice{},
		&StockSplit{},
		&Dividend{},
	)
}
