package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"go_screener_backend/services/marketcalendar"
)

// ChartProvider fetches daily OHLCV plus dividend/split events from the
// Yahoo Finance v8 chart endpoint. The endpoint is single-symbol only, so
// batch calls degrade to sequential per-symbol requests with jitter
// between them.
type ChartProvider struct {
	baseURL    string
	httpClient *http.Client
	throttle   *throttle
	logger     *logrus.Entry
}

// NewChartProvider creates a chart-endpoint historical provider.
func NewChartProvider(baseURL string, jitter JitterPolicy, logger *logrus.Logger) *ChartProvider {
	return &ChartProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		throttle:   newThrottle(jitter),
		logger:     logger.WithField("provider", "chart"),
	}
}

func (p *ChartProvider) Name() string { return "chart" }

// SupportsBatch is false: the chart endpoint takes one symbol per request.
func (p *ChartProvider) SupportsBatch() bool { return false }

func (p *ChartProvider) Usage() Usage {
	return Usage{
		Provider:      p.Name(),
		RequestsMade:  p.throttle.requestCount(),
		JitterEnabled: p.throttle.policy.Enabled,
	}
}

// chartResponse mirrors the v8 chart payload.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol       string `json:"symbol"`
				ExchangeName string `json:"exchangeName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
			Events struct {
				Dividends map[string]struct {
					Amount float64 `json:"amount"`
					Date   int64   `json:"date"`
				} `json:"dividends"`
				Splits map[string]struct {
					Numerator   float64 `json:"numerator"`
					Denominator float64 `json:"denominator"`
					Date        int64   `json:"date"`
				} `json:"splits"`
			} `json:"events"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// HistoricalPrices fetches one symbol's daily series. Returns nil on any
// upstream error or empty payload.
func (p *ChartProvider) HistoricalPrices(ctx context.Context, symbol string, start, end time.Time) *PriceHistory {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(marketcalendar.Date(start).Unix(), 10))
	// period2 is exclusive upstream; push it one day past the requested end
	q.Set("period2", strconv.FormatInt(marketcalendar.Date(end).AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "div|split")

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		p.logger.Warnf("Failed to build request for %s: %v", symbol, err)
		return nil
	}
	req.Header.Set("User-Agent", p.throttle.userAgent())
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warnf("Request failed for %s: %v", symbol, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Warnf("Upstream status %d for %s", resp.StatusCode, symbol)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.Warnf("Failed to read response for %s: %v", symbol, err)
		return nil
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		p.logger.Warnf("Failed to parse response for %s: %v", symbol, err)
		return nil
	}

	if parsed.Chart.Error != nil || len(parsed.Chart.Result) == 0 {
		p.logger.Warnf("No data for %s", symbol)
		return nil
	}

	history := normalizeChart(symbol, parsed)
	if history.Empty() {
		p.logger.Warnf("Empty series for %s", symbol)
		return nil
	}
	return history
}

// BatchHistoricalPrices fetches each symbol sequentially, jittering
// between requests, and concatenates the results into one long-format
// history. Symbols that return nothing are silently skipped; the batch
// as a whole is nil only when every symbol came back empty.
func (p *ChartProvider) BatchHistoricalPrices(ctx context.Context, symbols []string, start, end time.Time, bulk bool) *PriceHistory {
	combined := &PriceHistory{}
	for i, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		combined.Merge(p.HistoricalPrices(ctx, symbol, start, end))

		// Jitter between symbols, not after the last one
		if i < len(symbols)-1 {
			p.throttle.wait(bulk)
		}
	}
	if combined.Empty() {
		return nil
	}
	return combined
}

// Fundamentals is not served by the chart endpoint.
func (p *ChartProvider) Fundamentals(ctx context.Context, symbol string) *FundamentalRecord {
	return nil
}

// BatchFundamentals is not served by the chart endpoint.
func (p *ChartProvider) BatchFundamentals(ctx context.Context, symbols []string) map[string]*FundamentalRecord {
	return map[string]*FundamentalRecord{}
}

// normalizeChart flattens the column-oriented chart payload into rows,
// dropping entries with missing OHLC values.
func normalizeChart(symbol string, parsed chartResponse) *PriceHistory {
	result := parsed.Chart.Result[0]
	history := &PriceHistory{}

	if len(result.Indicators.Quote) > 0 {
		quote := result.Indicators.Quote[0]
		for i, ts := range result.Timestamp {
			if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
				break
			}
			if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
				continue
			}
			var volume int64
			if i < len(quote.Volume) && quote.Volume[i] != nil {
				volume = *quote.Volume[i]
			}
			history.Bars = append(history.Bars, PriceBar{
				Symbol: symbol,
				Date:   marketcalendar.Date(time.Unix(ts, 0).UTC()),
				Open:   decimal.NewFromFloat(*quote.Open[i]),
				High:   decimal.NewFromFloat(*quote.High[i]),
				Low:    decimal.NewFromFloat(*quote.Low[i]),
				Close:  decimal.NewFromFloat(*quote.Close[i]),
				Volume: volume,
			})
		}
	}

	for _, div := range result.Events.Dividends {
		if div.Amount <= 0 {
			continue
		}
		history.Dividends = append(history.Dividends, DividendEvent{
			Symbol: symbol,
			Date:   marketcalendar.Date(time.Unix(div.Date, 0).UTC()),
			Amount: div.Amount,
		})
	}

	for _, split := range result.Events.Splits {
		if split.Denominator == 0 {
			continue
		}
		history.Splits = append(history.Splits, SplitEvent{
			Symbol: symbol,
			Date:   marketcalendar.Date(time.Unix(split.Date, 0).UTC()),
			Ratio:  split.Numerator / split.Denominator,
		})
	}

	return history
}
