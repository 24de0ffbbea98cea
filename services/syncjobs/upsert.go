package syncjobs

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go_screener_backend/models"
	"go_screener_backend/services/marketcalendar"
	"go_screener_backend/services/providers"
)

// UpsertHistory writes a provider batch into the store inside one
// transaction: tickers unknown to the store are created first, then the
// price rows (and any dividend/split events) go in as a single set-based
// insert-or-update on the (ticker_id, date) composite key. New-ticker
// creation and its first price batch become visible together or not at
// all. Returns the number of price rows written.
func UpsertHistory(db *gorm.DB, history *providers.PriceHistory) (int, error) {
	if history.Empty() {
		return 0, nil
	}

	var inserted int
	err := db.Transaction(func(tx *gorm.DB) error {
		idBySymbol, err := ensureTickers(tx, historySymbols(history))
		if err != nil {
			return err
		}

		rows := make([]models.DailyPrice, 0, len(history.Bars))
		for _, bar := range history.Bars {
			id, ok := idBySymbol[bar.Symbol]
			if !ok {
				continue
			}
			rows = append(rows, models.DailyPrice{
				TickerID: id,
				Date:     marketcalendar.Date(bar.Date),
				Open:     bar.Open,
				High:     bar.High,
				Low:      bar.Low,
				Close:    bar.Close,
				Volume:   bar.Volume,
			})
		}
		if len(rows) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "ticker_id"}, {Name: "date"}},
				DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
			}).CreateInBatches(rows, 500).Error; err != nil {
				return fmt.Errorf("price upsert failed: %w", err)
			}
			inserted = len(rows)
		}

		if err := upsertDividends(tx, history.Dividends, idBySymbol); err != nil {
			return err
		}
		return upsertSplits(tx, history.Splits, idBySymbol)
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ensureTickers resolves symbol -> ticker id, creating identity rows for
// symbols not yet in the store. Must run inside the caller's transaction.
func ensureTickers(tx *gorm.DB, symbols []string) (map[string]uint, error) {
	if len(symbols) == 0 {
		return map[string]uint{}, nil
	}

	var existing []models.Ticker
	if err := tx.Where("symbol IN ?", symbols).Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("ticker lookup failed: %w", err)
	}

	idBySymbol := make(map[string]uint, len(symbols))
	for _, t := range existing {
		idBySymbol[t.Symbol] = t.ID
	}

	var missing []models.Ticker
	for _, s := range symbols {
		if _, ok := idBySymbol[s]; !ok {
			missing = append(missing, models.Ticker{Symbol: s})
		}
	}
	if len(missing) > 0 {
		if err := tx.Create(&missing).Error; err != nil {
			return nil, fmt.Errorf("ticker creation failed: %w", err)
		}
		for _, t := range missing {
			idBySymbol[t.Symbol] = t.ID
		}
	}

	return idBySymbol, nil
}

func upsertDividends(tx *gorm.DB, events []providers.DividendEvent, idBySymbol map[string]uint) error {
	rows := make([]models.Dividend, 0, len(events))
	for _, ev := range events {
		id, ok := idBySymbol[ev.Symbol]
		if !ok {
			continue
		}
		rows = append(rows, models.Dividend{
			TickerID: id,
			Date:     marketcalendar.Date(ev.Date),
			Amount:   ev.Amount,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount"}),
	}).Create(&rows).Error; err != nil {
		return fmt.Errorf("dividend upsert failed: %w", err)
	}
	return nil
}

func upsertSplits(tx *gorm.DB, events []providers.SplitEvent, idBySymbol map[string]uint) error {
	rows := make([]models.StockSplit, 0, len(events))
	for _, ev := range events {
		id, ok := idBySymbol[ev.Symbol]
		if !ok {
			continue
		}
		rows = append(rows, models.StockSplit{
			TickerID: id,
			Date:     marketcalendar.Date(ev.Date),
			Ratio:    ev.Ratio,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"ratio"}),
	}).Create(&rows).Error; err != nil {
		return fmt.Errorf("split upsert failed: %w", err)
	}
	return nil
}

// historySymbols lists the distinct symbols appearing anywhere in a
// provider history, in first-seen order.
func historySymbols(history *providers.PriceHistory) []string {
	seen := map[string]bool{}
	var symbols []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}
	for _, bar := range history.Bars {
		add(bar.Symbol)
	}
	for _, ev := range history.Dividends {
		add(ev.Symbol)
	}
	for _, ev := range history.Splits {
		add(ev.Symbol)
	}
	return symbols
}

// latestStoredDate returns the most recent price date in the store, or
// false when the store is empty.
func latestStoredDate(db *gorm.DB) (time.Time, bool, error) {
	var row models.DailyPrice
	err := db.Order("date DESC").First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest date lookup failed: %w", err)
	}
	return marketcalendar.Date(row.Date), true, nil
}
