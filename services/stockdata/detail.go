package stockdata

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go_screener_backend/models"
)

// Refresher pulls current fundamentals for one symbol into the store.
// Satisfied by the rotation updater.
type Refresher interface {
	RefreshTicker(ctx context.Context, symbol string) error
}

// StockDetail is the API-facing detail response: identity plus the
// current fundamentals snapshot.
type StockDetail struct {
	Symbol      string              `json:"symbol"`
	Name        string              `json:"name"`
	Exchange    string              `json:"exchange,omitempty"`
	Fundamental *models.Fundamental `json:"fundamentals,omitempty"`
}

// DetailService serves stock detail, refreshing fundamentals on demand
// when a symbol has no snapshot yet.
type DetailService struct {
	db        *gorm.DB
	refresher Refresher
	logger    *logrus.Entry
	maxAge    time.Duration
	now       func() time.Time
}

// NewDetailService wires a detail service. maxAge bounds how stale a
// stored fundamentals snapshot may be before a read triggers a refresh.
func NewDetailService(db *gorm.DB, refresher Refresher, logger *logrus.Logger, maxAge time.Duration) *DetailService {
	return &DetailService{
		db:        db,
		refresher: refresher,
		logger:    logger.WithField("component", "detail_service"),
		maxAge:    maxAge,
		now:       time.Now,
	}
}

// Detail returns the detail view for a symbol. Unknown or stale symbols
// get one refresh attempt; ErrNotFound when nothing is obtainable.
func (s *DetailService) Detail(ctx context.Context, symbol string) (*StockDetail, error) {
	detail, fresh, err := s.load(symbol)
	if err != nil {
		return nil, err
	}
	if detail != nil && fresh {
		return detail, nil
	}

	if err := s.refresher.RefreshTicker(ctx, symbol); err != nil {
		// Stale beats nothing.
		if detail != nil {
			s.logger.Warnf("Serving stale fundamentals for %s: %v", symbol, err)
			return detail, nil
		}
		return nil, ErrNotFound
	}

	detail, _, err = s.load(symbol)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, ErrNotFound
	}
	return detail, nil
}

// load reads the stored detail. fresh reports whether the fundamentals
// snapshot exists and is within maxAge.
func (s *DetailService) load(symbol string) (*StockDetail, bool, error) {
	var ticker models.Ticker
	err := s.db.Where("symbol = ?", symbol).First(&ticker).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ticker lookup failed: %w", err)
	}

	detail := &StockDetail{
		Symbol:   ticker.Symbol,
		Name:     ticker.Name,
		Exchange: ticker.Exchange,
	}

	var fundamental models.Fundamental
	err = s.db.Where("ticker_id = ?", ticker.ID).First(&fundamental).Error
	if err == gorm.ErrRecordNotFound {
		return detail, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fundamentals lookup failed: %w", err)
	}

	detail.Fundamental = &fundamental
	fresh := s.maxAge <= 0 || s.now().Sub(fundamental.LastUpdated) <= s.maxAge
	return detail, fresh, nil
}
