package syncjobs

import (
	"fmt"
	"sort"

	"gorm.io/gorm"

	"go_screener_backend/models"
)

// LoadUniverse returns the full tracked symbol list in a stable order.
// The stable sort is what makes batch numbering reproducible across
// restarts: batch N always names the same ticker set.
//
// Seed symbols (from config or an exchange listing file) are merged with
// whatever tickers already exist in the store, deduplicated, and sorted.
func LoadUniverse(db *gorm.DB, seed []string) ([]string, error) {
	var stored []string
	if err := db.Model(&models.Ticker{}).Pluck("symbol", &stored).Error; err != nil {
		return nil, fmt.Errorf("failed to enumerate ticker universe: %w", err)
	}

	seen := make(map[string]bool, len(stored)+len(seed))
	var universe []string
	for _, s := range append(stored, seed...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		universe = append(universe, s)
	}

	sort.Strings(universe)
	return universe, nil
}

// TrackedSymbols returns only the symbols already present in the store,
// symbol-ordered. Delta sync batches these rather than the full universe.
func TrackedSymbols(db *gorm.DB) ([]string, error) {
	var symbols []string
	if err := db.Model(&models.Ticker{}).Order("symbol").Pluck("symbol", &symbols).Error; err != nil {
		return nil, fmt.Errorf("failed to list tracked symbols: %w", err)
	}
	return symbols, nil
}

// PartitionSymbols splits symbols into fixed-size batches, preserving
// order. The final batch holds the remainder.
func PartitionSymbols(symbols []string, batchSize int) [][]string {
	if batchSize <= 0 {
		batchSize = 100
	}
	var batches [][]string
	for i := 0; i < len(symbols); i += batchSize {
		end := i + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batches = append(batches, symbols[i:end])
	}
	return batches
}
