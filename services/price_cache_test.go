package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade-api/models"
)

func testPricePoint(ticker string, ts time.Time, price string) *models.PricePoint {
	amount, _ := decimal.NewFromString(price)
	return &models.PricePoint{
		Ticker:    ticker,
		Price:     models.NewMoney(amount, "USD"),
		Timestamp: ts,
		Source:    models.SourceAlphaVantage,
		Interval:  models.Interval1Day,
	}
}

func testOHLCVPoint(ticker string, ts time.Time, closePrice string) *models.PricePoint {
	p := testPricePoint(ticker, ts, closePrice)
	open := models.NewMoney(p.Price.Amount.Sub(decimal.NewFromInt(1)), "USD")
	high := models.NewMoney(p.Price.Amount.Add(decimal.NewFromInt(2)), "USD")
	low := models.NewMoney(p.Price.Amount.Sub(decimal.NewFromInt(2)), "USD")
	closeM := p.Price
	volume := int64(1000000)
	p.Open, p.High, p.Low, p.Close, p.Volume = &open, &high, &low, &closeM, &volume
	return p
}

func TestPriceCacheRoundtrip(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewPriceCache(client, "papertrade:price", time.Hour)
	ctx := context.Background()

	original := testOHLCVPoint("AAPL", time.Date(2026, 1, 12, 15, 0, 0, 0, time.UTC), "150.25")
	require.NoError(t, cache.PutLatest(ctx, original, time.Hour))

	got, err := cache.GetLatest(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.True(t, original.Equal(got))
	require.NotNil(t, got.Open)
	assert.True(t, original.Open.Equal(*got.Open))
	assert.True(t, original.High.Equal(*got.High))
	assert.True(t, original.Low.Equal(*got.Low))
	assert.True(t, original.Close.Equal(*got.Close))
	require.NotNil(t, got.Volume)
	assert.Equal(t, *original.Volume, *got.Volume)
}

func TestPriceCacheMiss(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewPriceCache(client, "papertrade:price", time.Hour)

	got, err := cache.GetLatest(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPriceCacheCorruptedEntryIsAMiss(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewPriceCache(client, "papertrade:price", time.Hour)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "papertrade:price:AAPL", "{not json", 0).Err())

	got, err := cache.GetLatest(ctx, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPriceCacheTTLAndDelete(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewPriceCache(client, "papertrade:price", time.Hour)
	ctx := context.Background()

	p := testPricePoint("AAPL", time.Now().UTC(), "150.00")
	require.NoError(t, cache.PutLatest(ctx, p, 2*time.Hour))

	ttl, err := cache.TTL(ctx, "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, float64(2*time.Hour), float64(ttl), float64(time.Second))

	exists, err := cache.Exists(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, cache.Delete(ctx, "AAPL"))
	exists, err = cache.Exists(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, exists)

	// Entries expire on their own too.
	require.NoError(t, cache.PutLatest(ctx, p, time.Hour))
	mr.FastForward(2 * time.Hour)
	got, err := cache.GetLatest(ctx, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func historyFixture(ticker string, start time.Time, days int) []models.PricePoint {
	points := make([]models.PricePoint, 0, days)
	for i := 0; i < days; i++ {
		ts := start.AddDate(0, 0, i).Add(21 * time.Hour)
		points = append(points, *testPricePoint(ticker, ts, "150.00"))
	}
	return points
}

func TestPriceCacheHistoryExactMatch(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewPriceCache(client, "papertrade:price", time.Hour)
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	points := historyFixture("AAPL", start, 31)

	require.NoError(t, cache.PutHistory(ctx, "AAPL", start, end, models.Interval1Day, points, time.Hour))

	got, err := cache.GetHistory(ctx, "AAPL", start, end, models.Interval1Day)
	require.NoError(t, err)
	assert.Len(t, got, 31)
}

func TestPriceCacheHistorySubsetMatch(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewPriceCache(client, "papertrade:price", time.Hour)
	ctx := context.Background()

	// Cache the whole of January, then ask for the last week.
	cachedStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cachedEnd := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	points := historyFixture("AAPL", cachedStart, 31)
	require.NoError(t, cache.PutHistory(ctx, "AAPL", cachedStart, cachedEnd, models.Interval1Day, points, time.Hour))

	reqStart := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)
	reqEnd := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	got, err := cache.GetHistory(ctx, "AAPL", reqStart, reqEnd, models.Interval1Day)
	require.NoError(t, err)
	require.Len(t, got, 7)
	for _, p := range got {
		assert.False(t, p.Timestamp.Before(reqStart), "point %s before requested start", p.Timestamp)
		assert.False(t, p.Timestamp.After(reqEnd), "point %s after requested end", p.Timestamp)
	}
}

func TestPriceCacheHistorySubsetIgnoresNarrowerAndOtherIntervals(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewPriceCache(client, "papertrade:price", time.Hour)
	ctx := context.Background()

	// A narrower cached range must not satisfy a broader request.
	cachedStart := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	cachedEnd := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	points := historyFixture("AAPL", cachedStart, 6)
	require.NoError(t, cache.PutHistory(ctx, "AAPL", cachedStart, cachedEnd, models.Interval1Day, points, time.Hour))

	got, err := cache.GetHistory(ctx, "AAPL",
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		models.Interval1Day)
	require.NoError(t, err)
	assert.Nil(t, got)

	// A different interval must not match either.
	got, err = cache.GetHistory(ctx, "AAPL",
		time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		models.Interval1Hour)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPriceCacheHistorySkipsMalformedKeys(t *testing.T) {
	_, client := newTestRedis(t)
	cache := NewPriceCache(client, "papertrade:price", time.Hour)
	ctx := context.Background()

	// Malformed key that still matches the scan pattern.
	require.NoError(t, client.Set(ctx, "papertrade:price:AAPL:history:not-a-date:also-bad:1day", "[]", 0).Err())
	// Corrupted value under a well-formed broad key.
	require.NoError(t, client.Set(ctx, "papertrade:price:AAPL:history:2026-01-01:2026-12-31:1day", "{broken", 0).Err())

	got, err := cache.GetHistory(ctx, "AAPL",
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC),
		models.Interval1Day)
	require.NoError(t, err)
	assert.Nil(t, got)
}
