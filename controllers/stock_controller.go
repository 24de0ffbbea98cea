package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go_screener_backend/config"
	"go_screener_backend/services/cache"
	"go_screener_backend/services/stockdata"
)

// periodWindows maps the ?period= query to a lookback from today.
var periodWindows = map[string]func(t time.Time) time.Time{
	"1mo": func(t time.Time) time.Time { return t.AddDate(0, -1, 0) },
	"3mo": func(t time.Time) time.Time { return t.AddDate(0, -3, 0) },
	"6mo": func(t time.Time) time.Time { return t.AddDate(0, -6, 0) },
	"1y":  func(t time.Time) time.Time { return t.AddDate(-1, 0, 0) },
	"2y":  func(t time.Time) time.Time { return t.AddDate(-2, 0, 0) },
	"5y":  func(t time.Time) time.Time { return t.AddDate(-5, 0, 0) },
}

// StockController serves the stock read endpoints, fronting the services
// with short-lived response caches.
type StockController struct {
	prices *stockdata.PriceService
	detail *stockdata.DetailService
	store  cache.Store
	cfg    *config.Config
	logger *logrus.Entry
}

func NewStockController(prices *stockdata.PriceService, detail *stockdata.DetailService,
	store cache.Store, cfg *config.Config, logger *logrus.Logger) *StockController {
	return &StockController{
		prices: prices,
		detail: detail,
		store:  store,
		cfg:    cfg,
		logger: logger.WithField("component", "stock_controller"),
	}
}

// GetStockPrices returns the daily price series for a symbol.
// GET /api/stocks/:symbol/prices?period=1y
func (sc *StockController) GetStockPrices(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	period := c.DefaultQuery("period", "1y")

	window, ok := periodWindows[period]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid period"})
		return
	}

	key := cache.PricesKey(symbol, period)
	if sc.serveCached(c, key) {
		return
	}

	end := time.Now()
	series, err := sc.prices.PriceHistory(c.Request.Context(), symbol, window(end), end)
	if err == stockdata.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
		return
	}
	if err != nil {
		sc.logger.Errorf("Price history failed for %s: %v", symbol, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch prices"})
		return
	}

	sc.respondAndCache(c, key, series, sc.cfg.PriceViewTTL)
}

// GetStock returns identity plus current fundamentals for a symbol.
// GET /api/stocks/:symbol
func (sc *StockController) GetStock(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	key := cache.StockKey(symbol)
	if sc.serveCached(c, key) {
		return
	}

	detail, err := sc.detail.Detail(c.Request.Context(), symbol)
	if err == stockdata.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
		return
	}
	if err != nil {
		sc.logger.Errorf("Detail failed for %s: %v", symbol, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stock"})
		return
	}

	sc.respondAndCache(c, key, detail, sc.cfg.StockDetailTTL)
}

func (sc *StockController) serveCached(c *gin.Context, key string) bool {
	if sc.store == nil {
		return false
	}
	body, ok := sc.store.Get(c.Request.Context(), key)
	if !ok {
		return false
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	return true
}

func (sc *StockController) respondAndCache(c *gin.Context, key string, payload interface{}, ttl time.Duration) {
	if sc.store != nil {
		if body, err := json.Marshal(payload); err == nil {
			if err := sc.store.Set(c.Request.Context(), key, body, ttl); err != nil {
				sc.logger.Warnf("Cache set failed for %s: %v", key, err)
			}
		}
	}
	c.JSON(http.StatusOK, payload)
}
