package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade-api/models"
)

const mockGlobalQuoteResponse = `{
	"Global Quote": {
		"01. symbol": "AAPL",
		"02. open": "150.00",
		"03. high": "152.00",
		"04. low": "149.50",
		"05. price": "151.25",
		"06. volume": "75000000",
		"07. latest trading day": "2026-01-12",
		"08. previous close": "149.80",
		"09. change": "1.45",
		"10. change percent": "0.97%"
	}
}`

const mockEmptyQuoteResponse = `{"Global Quote": {}}`

const mockDailySeriesResponse = `{
	"Meta Data": {
		"1. Information": "Daily Prices (open, high, low, close) and Volumes",
		"2. Symbol": "AAPL"
	},
	"Time Series (Daily)": {
		"2026-01-12": {
			"1. open": "150.00",
			"2. high": "152.00",
			"3. low": "149.50",
			"4. close": "151.25",
			"5. volume": "75000000"
		},
		"2026-01-09": {
			"1. open": "148.00",
			"2. high": "150.50",
			"3. low": "147.50",
			"4. close": "149.80",
			"5. volume": "62000000"
		},
		"2026-01-08": {
			"1. open": "147.00",
			"2. high": "149.00",
			"3. low": "146.00",
			"4. close": "148.10",
			"5. volume": "58000000"
		}
	}
}`

func newTestClient(serverURL string, maxRetries int) *Client {
	return NewClientWithConfig(&ClientConfig{
		APIKey:     "test-key",
		BaseURL:    serverURL,
		Timeout:    2 * time.Second,
		MaxRetries: maxRetries,
	})
}

func TestQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		assert.Equal(t, "GLOBAL_QUOTE", query.Get("function"))
		assert.Equal(t, "AAPL", query.Get("symbol"))
		assert.NotEmpty(t, query.Get("apikey"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(mockGlobalQuoteResponse))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	before := time.Now().UTC()

	quote, err := client.Quote(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", quote.Ticker)
	assert.Equal(t, "151.25", quote.Price.Amount.String())
	assert.Equal(t, "USD", quote.Price.Currency)
	assert.Equal(t, models.SourceAlphaVantage, quote.Source)
	assert.Equal(t, models.Interval1Day, quote.Interval)
	// Timestamp is fetch time, not the trading day: it feeds freshness
	// accounting downstream.
	assert.False(t, quote.Timestamp.Before(before))
	assert.Equal(t, time.UTC, quote.Timestamp.Location())
}

func TestQuoteEmptyResponseIsTickerNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mockEmptyQuoteResponse))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.Quote(context.Background(), "NOPE")

	var notFound *models.TickerNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "NOPE", notFound.Ticker)
}

func TestQuote404IsTickerNotFoundWithoutRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.Quote(context.Background(), "GONE")

	var notFound *models.TickerNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "404 must not be retried")
}

func TestQuoteMalformedBodyIsInvalidPriceData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.Quote(context.Background(), "AAPL")

	var invalid *models.InvalidPriceDataError
	require.ErrorAs(t, err, &invalid)
}

func TestQuoteNonPositivePriceIsInvalidPriceData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote": {"01. symbol": "AAPL", "05. price": "0.00"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.Quote(context.Background(), "AAPL")

	var invalid *models.InvalidPriceDataError
	require.ErrorAs(t, err, &invalid)
}

func TestQuoteRetriesTransientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(mockGlobalQuoteResponse))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 2)
	quote, err := client.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "151.25", quote.Price.Amount.String())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQuoteExhaustedRetriesIsUnavailable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 2)
	_, err := client.Quote(context.Background(), "AAPL")

	var unavailable *models.MarketDataUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDailyHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		assert.Equal(t, "TIME_SERIES_DAILY", query.Get("function"))
		assert.Equal(t, "AAPL", query.Get("symbol"))
		assert.Equal(t, "compact", query.Get("outputsize"))

		w.Write([]byte(mockDailySeriesResponse))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	points, err := client.DailyHistory(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, points, 3)

	// Ascending order, each at 21:00 UTC of its trading day.
	assert.Equal(t, time.Date(2026, 1, 8, 21, 0, 0, 0, time.UTC), points[0].Timestamp)
	assert.Equal(t, time.Date(2026, 1, 9, 21, 0, 0, 0, time.UTC), points[1].Timestamp)
	assert.Equal(t, time.Date(2026, 1, 12, 21, 0, 0, 0, time.UTC), points[2].Timestamp)

	last := points[2]
	assert.Equal(t, "151.25", last.Price.Amount.String())
	require.NotNil(t, last.Open)
	assert.Equal(t, "150", last.Open.Amount.String())
	require.NotNil(t, last.High)
	assert.Equal(t, "152", last.High.Amount.String())
	require.NotNil(t, last.Low)
	assert.Equal(t, "149.5", last.Low.Amount.String())
	require.NotNil(t, last.Close)
	assert.Equal(t, "151.25", last.Close.Amount.String())
	require.NotNil(t, last.Volume)
	assert.Equal(t, int64(75000000), *last.Volume)

	for _, p := range points {
		assert.NoError(t, p.Validate())
	}
}

func TestDailyHistoryEmptySeriesIsTickerNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Time Series (Daily)": {}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.DailyHistory(context.Background(), "NOPE")

	var notFound *models.TickerNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestDailyHistorySkipsBadRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Time Series (Daily)": {
			"2026-01-12": {"1. open": "150.00", "2. high": "152.00", "3. low": "149.50", "4. close": "151.25", "5. volume": "75000000"},
			"2026-01-09": {"4. close": "not-a-number"},
			"2026-01-08": {"4. close": "-5.00"}
		}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	points, err := client.DailyHistory(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "151.25", points[0].Price.Amount.String())
}
