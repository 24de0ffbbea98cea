package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// QuoteProvider fetches fundamentals from the Yahoo Finance v7 quote
// endpoint, which accepts a comma-separated symbol list, so one upstream
// call covers a whole batch.
type QuoteProvider struct {
	baseURL    string
	httpClient *http.Client
	throttle   *throttle
	logger     *logrus.Entry
}

// NewQuoteProvider creates a quote-endpoint fundamentals provider.
func NewQuoteProvider(baseURL string, jitter JitterPolicy, logger *logrus.Logger) *QuoteProvider {
	return &QuoteProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		throttle:   newThrottle(jitter),
		logger:     logger.WithField("provider", "quote"),
	}
}

func (p *QuoteProvider) Name() string { return "quote" }

// SupportsBatch is true: one request serves a whole symbol list.
func (p *QuoteProvider) SupportsBatch() bool { return true }

func (p *QuoteProvider) Usage() Usage {
	return Usage{
		Provider:      p.Name(),
		RequestsMade:  p.throttle.requestCount(),
		JitterEnabled: p.throttle.policy.Enabled,
	}
}

// Historical prices are not served by the quote endpoint.
func (p *QuoteProvider) HistoricalPrices(ctx context.Context, symbol string, start, end time.Time) *PriceHistory {
	return nil
}

func (p *QuoteProvider) BatchHistoricalPrices(ctx context.Context, symbols []string, start, end time.Time, bulk bool) *PriceHistory {
	return nil
}

// Fundamentals fetches a single symbol's record.
func (p *QuoteProvider) Fundamentals(ctx context.Context, symbol string) *FundamentalRecord {
	return p.BatchFundamentals(ctx, []string{symbol})[symbol]
}

// BatchFundamentals issues one upstream call for the whole batch and
// normalizes each quote into a FundamentalRecord. Missing symbols are
// simply absent from the returned map.
func (p *QuoteProvider) BatchFundamentals(ctx context.Context, symbols []string) map[string]*FundamentalRecord {
	records := map[string]*FundamentalRecord{}
	if len(symbols) == 0 {
		return records
	}

	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	reqURL := fmt.Sprintf("%s/v7/finance/quote?%s", p.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		p.logger.Warnf("Failed to build quote request: %v", err)
		return records
	}
	req.Header.Set("User-Agent", p.throttle.userAgent())
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warnf("Quote request failed: %v", err)
		return records
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Warnf("Upstream status %d for quote batch", resp.StatusCode)
		return records
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.Warnf("Failed to read quote response: %v", err)
		return records
	}

	// Quotes are decoded as loose maps: known metrics are promoted to
	// typed fields, everything else stays in Extras.
	var parsed struct {
		QuoteResponse struct {
			Result []map[string]interface{} `json:"result"`
			Error  *struct {
				Code string `json:"code"`
			} `json:"error"`
		} `json:"quoteResponse"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		p.logger.Warnf("Failed to parse quote response: %v", err)
		return records
	}
	if parsed.QuoteResponse.Error != nil {
		p.logger.Warnf("Upstream quote error: %s", parsed.QuoteResponse.Error.Code)
		return records
	}

	for _, raw := range parsed.QuoteResponse.Result {
		rec := normalizeQuote(raw)
		if rec != nil {
			records[rec.Symbol] = rec
		}
	}

	p.throttle.wait(false)
	return records
}

// Quote fields promoted to typed columns; everything else goes to Extras.
var promotedQuoteFields = map[string]bool{
	"symbol": true, "longName": true, "shortName": true, "fullExchangeName": true,
	"trailingPE": true, "forwardPE": true, "pegRatio": true,
	"priceToBook": true, "priceToSalesTrailing12Months": true, "enterpriseToEbitda": true,
	"profitMargins": true, "operatingMargins": true, "returnOnEquity": true, "returnOnAssets": true,
	"debtToEquity": true, "currentRatio": true, "quickRatio": true,
	"revenueGrowth": true, "earningsGrowth": true,
	"trailingAnnualDividendYield": true, "trailingAnnualDividendRate": true, "payoutRatio": true,
	"marketCap": true, "regularMarketVolume": true, "averageDailyVolume3Month": true, "beta": true,
	"regularMarketPrice": true, "regularMarketChangePercent": true,
	"fiftyTwoWeekHigh": true, "fiftyTwoWeekLow": true,
	"sector": true, "industry": true,
}

func normalizeQuote(raw map[string]interface{}) *FundamentalRecord {
	symbol, _ := raw["symbol"].(string)
	if symbol == "" {
		return nil
	}

	rec := &FundamentalRecord{
		Symbol: symbol,

		PERatio:      fnum(raw, "trailingPE"),
		ForwardPE:    fnum(raw, "forwardPE"),
		PEGRatio:     fnum(raw, "pegRatio"),
		PriceToBook:  fnum(raw, "priceToBook"),
		PriceToSales: fnum(raw, "priceToSalesTrailing12Months"),
		EVToEBITDA:   fnum(raw, "enterpriseToEbitda"),

		ProfitMargin:    fnum(raw, "profitMargins"),
		OperatingMargin: fnum(raw, "operatingMargins"),
		ROE:             fnum(raw, "returnOnEquity"),
		ROA:             fnum(raw, "returnOnAssets"),

		DebtToEquity: fnum(raw, "debtToEquity"),
		CurrentRatio: fnum(raw, "currentRatio"),
		QuickRatio:   fnum(raw, "quickRatio"),

		RevenueGrowth:  fnum(raw, "revenueGrowth"),
		EarningsGrowth: fnum(raw, "earningsGrowth"),

		DividendYield: fnum(raw, "trailingAnnualDividendYield"),
		DividendRate:  fnum(raw, "trailingAnnualDividendRate"),
		PayoutRatio:   fnum(raw, "payoutRatio"),

		MarketCap: inum(raw, "marketCap"),
		Volume:    inum(raw, "regularMarketVolume"),
		AvgVolume: inum(raw, "averageDailyVolume3Month"),
		Beta:      fnum(raw, "beta"),

		CurrentPrice:     fnum(raw, "regularMarketPrice"),
		DayChangePercent: fnum(raw, "regularMarketChangePercent"),
		FiftyTwoWeekHigh: fnum(raw, "fiftyTwoWeekHigh"),
		FiftyTwoWeekLow:  fnum(raw, "fiftyTwoWeekLow"),

		Sector:   sval(raw, "sector"),
		Industry: sval(raw, "industry"),
		Exchange: sval(raw, "fullExchangeName"),
		Extras:   map[string]interface{}{},
	}

	rec.Name = sval(raw, "longName")
	if rec.Name == "" {
		rec.Name = sval(raw, "shortName")
	}

	for k, v := range raw {
		if !promotedQuoteFields[k] {
			rec.Extras[k] = v
		}
	}

	return rec
}

func fnum(raw map[string]interface{}, key string) *float64 {
	if v, ok := raw[key].(float64); ok {
		return &v
	}
	return nil
}

func inum(raw map[string]interface{}, key string) *int64 {
	if v, ok := raw[key].(float64); ok {
		n := int64(v)
		return &n
	}
	return nil
}

func sval(raw map[string]interface{}, key string) string {
	s, _ := raw[key].(string)
	return s
}
