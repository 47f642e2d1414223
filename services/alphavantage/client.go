package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"papertrade-api/models"
)

const (
	defaultBaseURL = "https://www.alphavantage.co/query"

	// Endpoints
	functionGlobalQuote = "GLOBAL_QUOTE"
	functionDailySeries = "TIME_SERIES_DAILY"

	defaultTimeout    = 5 * time.Second
	defaultMaxRetries = 3
)

// Client is a thin wrapper over the Alpha Vantage HTTP API. It retries
// transient failures with exponential backoff and maps responses to the
// domain error taxonomy. It does NOT rate limit; callers own the quota.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// ClientConfig holds configuration for the client.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// NewClient creates a client with default configuration.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(&ClientConfig{APIKey: apiKey})
}

// NewClientWithConfig creates a client, filling in defaults for any zero
// config values.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaultMaxRetries
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &Client{
		apiKey:     config.APIKey,
		baseURL:    config.BaseURL,
		httpClient: httpClient,
		maxRetries: config.MaxRetries,
	}
}

// GlobalQuoteResponse is the GLOBAL_QUOTE envelope.
type GlobalQuoteResponse struct {
	GlobalQuote QuoteData `json:"Global Quote"`
}

// QuoteData is the quote payload. All numbers arrive as strings.
type QuoteData struct {
	Symbol           string `json:"01. symbol"`
	Open             string `json:"02. open"`
	High             string `json:"03. high"`
	Low              string `json:"04. low"`
	Price            string `json:"05. price"`
	Volume           string `json:"06. volume"`
	LatestTradingDay string `json:"07. latest trading day"`
	PreviousClose    string `json:"08. previous close"`
	Change           string `json:"09. change"`
	ChangePercent    string `json:"10. change percent"`
}

// DailySeriesResponse is the TIME_SERIES_DAILY envelope.
type DailySeriesResponse struct {
	TimeSeries map[string]DailyBar `json:"Time Series (Daily)"`
}

// DailyBar is one day of OHLCV, string-typed.
type DailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// Quote fetches the latest daily close for a ticker. The returned
// PricePoint is timestamped at fetch time (not market close) because the
// timestamp drives cache-freshness accounting downstream.
func (c *Client) Quote(ctx context.Context, ticker string) (*models.PricePoint, error) {
	params := url.Values{}
	params.Set("function", functionGlobalQuote)
	params.Set("symbol", strings.ToUpper(ticker))
	params.Set("apikey", c.apiKey)

	body, err := c.doRequestWithRetry(ctx, ticker, params)
	if err != nil {
		return nil, err
	}

	var result GlobalQuoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &models.InvalidPriceDataError{
			Ticker: ticker,
			Reason: fmt.Sprintf("failed to decode response: %v", err),
		}
	}

	// An empty quote object is how the API signals an unknown symbol.
	if result.GlobalQuote == (QuoteData{}) {
		return nil, &models.TickerNotFoundError{
			Ticker: ticker,
			Reason: "not found in Alpha Vantage database",
		}
	}
	if result.GlobalQuote.Price == "" {
		return nil, &models.InvalidPriceDataError{
			Ticker: ticker,
			Reason: "missing price field in API response",
		}
	}

	price, err := decimal.NewFromString(result.GlobalQuote.Price)
	if err != nil {
		return nil, &models.InvalidPriceDataError{
			Ticker: ticker,
			Reason: fmt.Sprintf("unparseable price %q", result.GlobalQuote.Price),
		}
	}
	if !price.IsPositive() {
		return nil, &models.InvalidPriceDataError{
			Ticker: ticker,
			Reason: fmt.Sprintf("non-positive price %s", price),
		}
	}

	return &models.PricePoint{
		Ticker:    strings.ToUpper(ticker),
		Price:     models.NewMoney(price, "USD"),
		Timestamp: time.Now().UTC(),
		Source:    models.SourceAlphaVantage,
		Interval:  models.Interval1Day,
	}, nil
}

// DailyHistory fetches up to ~100 trading days of daily OHLCV, ordered
// ascending. Each point is timestamped 21:00 UTC of its trading date.
func (c *Client) DailyHistory(ctx context.Context, ticker string) ([]models.PricePoint, error) {
	params := url.Values{}
	params.Set("function", functionDailySeries)
	params.Set("symbol", strings.ToUpper(ticker))
	params.Set("outputsize", "compact")
	params.Set("apikey", c.apiKey)

	body, err := c.doRequestWithRetry(ctx, ticker, params)
	if err != nil {
		return nil, err
	}

	var result DailySeriesResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &models.InvalidPriceDataError{
			Ticker: ticker,
			Reason: fmt.Sprintf("failed to decode daily series: %v", err),
		}
	}
	if len(result.TimeSeries) == 0 {
		return nil, &models.TickerNotFoundError{
			Ticker: ticker,
			Reason: "not found in Alpha Vantage database",
		}
	}

	points := make([]models.PricePoint, 0, len(result.TimeSeries))
	for dateStr, bar := range result.TimeSeries {
		point, err := c.parseDailyBar(ticker, dateStr, bar)
		if err != nil {
			// Skip incomplete rows rather than failing the whole series.
			continue
		}
		points = append(points, *point)
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

func (c *Client) parseDailyBar(ticker, dateStr string, bar DailyBar) (*models.PricePoint, error) {
	closeVal, err := decimal.NewFromString(bar.Close)
	if err != nil || !closeVal.IsPositive() {
		return nil, fmt.Errorf("bad close %q", bar.Close)
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("bad date %q", dateStr)
	}
	// 16:00 ET market close expressed in UTC.
	timestamp := time.Date(date.Year(), date.Month(), date.Day(), 21, 0, 0, 0, time.UTC)

	closeMoney := models.NewMoney(closeVal, "USD")
	point := &models.PricePoint{
		Ticker:    strings.ToUpper(ticker),
		Price:     closeMoney,
		Timestamp: timestamp,
		Source:    models.SourceAlphaVantage,
		Interval:  models.Interval1Day,
		Close:     &closeMoney,
	}
	if open, err := decimal.NewFromString(bar.Open); err == nil {
		m := models.NewMoney(open, "USD")
		point.Open = &m
	}
	if high, err := decimal.NewFromString(bar.High); err == nil {
		m := models.NewMoney(high, "USD")
		point.High = &m
	}
	if low, err := decimal.NewFromString(bar.Low); err == nil {
		m := models.NewMoney(low, "USD")
		point.Low = &m
	}
	if volume, err := strconv.ParseInt(bar.Volume, 10, 64); err == nil {
		point.Volume = &volume
	}
	return point, nil
}

// doRequestWithRetry performs the GET with exponential backoff (1s, 2s,
// 4s, ...) on transient failures: network errors, timeouts, and non-404
// HTTP errors. A 404 is terminal (TickerNotFound); the last attempt is not
// followed by a sleep.
func (c *Client) doRequestWithRetry(ctx context.Context, ticker string, params url.Values) ([]byte, error) {
	requestURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, &models.MarketDataUnavailableError{Reason: err.Error()}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &models.MarketDataUnavailableError{
				Reason: fmt.Sprintf("request failed: %v", err),
			}
		} else {
			switch {
			case resp.StatusCode == http.StatusOK:
				body, readErr := readBody(resp)
				if readErr != nil {
					lastErr = &models.MarketDataUnavailableError{
						Reason: fmt.Sprintf("failed to read response: %v", readErr),
					}
				} else {
					return body, nil
				}
			case resp.StatusCode == http.StatusNotFound:
				resp.Body.Close()
				return nil, &models.TickerNotFoundError{Ticker: ticker}
			default:
				resp.Body.Close()
				lastErr = &models.MarketDataUnavailableError{
					Reason: fmt.Sprintf("API returned status %d", resp.StatusCode),
				}
			}
		}

		if attempt < c.maxRetries-1 {
			delay := time.Duration(1<<uint(attempt)) * time.Second
			select {
			case <-ctx.Done():
				return nil, &models.MarketDataUnavailableError{Reason: ctx.Err().Error()}
			case <-time.After(delay):
			}
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &models.MarketDataUnavailableError{Reason: "API request failed after retries"}
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
