package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"papertrade-api/models"
)

// PriceCache is the Redis hot tier for price data. PricePoints are stored
// as JSON with string-typed decimals and ISO-8601 timestamps so entries
// stay readable across instances and languages.
//
// Key formats, shared by every instance pointed at the same Redis:
//
//	{prefix}:{TICKER}
//	{prefix}:{TICKER}:history:{YYYY-MM-DD}:{YYYY-MM-DD}:{interval}
type PriceCache struct {
	redis      *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
}

// NewPriceCache creates a cache with the given key prefix and default TTL.
func NewPriceCache(rdb *redis.Client, keyPrefix string, defaultTTL time.Duration) *PriceCache {
	return &PriceCache{redis: rdb, keyPrefix: keyPrefix, defaultTTL: defaultTTL}
}

func (c *PriceCache) latestKey(ticker string) string {
	return fmt.Sprintf("%s:%s", c.keyPrefix, ticker)
}

func (c *PriceCache) historyKey(ticker string, start, end time.Time, interval string) string {
	return fmt.Sprintf("%s:%s:history:%s:%s:%s",
		c.keyPrefix, ticker,
		start.UTC().Format("2006-01-02"),
		end.UTC().Format("2006-01-02"),
		interval)
}

// cachedPrice is the wire format of one PricePoint. Decimals travel as
// strings to survive any JSON reader without float drift.
type cachedPrice struct {
	Ticker        string  `json:"ticker"`
	PriceAmount   string  `json:"price_amount"`
	PriceCurrency string  `json:"price_currency"`
	Timestamp     string  `json:"timestamp"`
	Source        string  `json:"source"`
	Interval      string  `json:"interval"`
	OpenAmount    *string `json:"open_amount,omitempty"`
	HighAmount    *string `json:"high_amount,omitempty"`
	LowAmount     *string `json:"low_amount,omitempty"`
	CloseAmount   *string `json:"close_amount,omitempty"`
	OHLCCurrency  *string `json:"ohlc_currency,omitempty"`
	Volume        *int64  `json:"volume,omitempty"`
}

func encodePrice(p *models.PricePoint) cachedPrice {
	cp := cachedPrice{
		Ticker:        p.Ticker,
		PriceAmount:   p.Price.Amount.String(),
		PriceCurrency: p.Price.Currency,
		Timestamp:     p.Timestamp.UTC().Format(time.RFC3339Nano),
		Source:        p.Source,
		Interval:      p.Interval,
		Volume:        p.Volume,
	}
	setAmount := func(dst **string, m *models.Money) {
		if m != nil {
			s := m.Amount.String()
			*dst = &s
			if cp.OHLCCurrency == nil {
				cur := m.Currency
				cp.OHLCCurrency = &cur
			}
		}
	}
	setAmount(&cp.OpenAmount, p.Open)
	setAmount(&cp.HighAmount, p.High)
	setAmount(&cp.LowAmount, p.Low)
	setAmount(&cp.CloseAmount, p.Close)
	return cp
}

func decodePrice(cp cachedPrice) (*models.PricePoint, error) {
	amount, err := decimal.NewFromString(cp.PriceAmount)
	if err != nil {
		return nil, fmt.Errorf("bad price amount %q: %w", cp.PriceAmount, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, cp.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("bad timestamp %q: %w", cp.Timestamp, err)
	}
	p := &models.PricePoint{
		Ticker:    cp.Ticker,
		Price:     models.NewMoney(amount, cp.PriceCurrency),
		Timestamp: ts.UTC(),
		Source:    cp.Source,
		Interval:  cp.Interval,
		Volume:    cp.Volume,
	}
	currency := cp.PriceCurrency
	if cp.OHLCCurrency != nil {
		currency = *cp.OHLCCurrency
	}
	parse := func(s *string) (*models.Money, error) {
		if s == nil {
			return nil, nil
		}
		d, err := decimal.NewFromString(*s)
		if err != nil {
			return nil, fmt.Errorf("bad OHLC amount %q: %w", *s, err)
		}
		m := models.NewMoney(d, currency)
		return &m, nil
	}
	if p.Open, err = parse(cp.OpenAmount); err != nil {
		return nil, err
	}
	if p.High, err = parse(cp.HighAmount); err != nil {
		return nil, err
	}
	if p.Low, err = parse(cp.LowAmount); err != nil {
		return nil, err
	}
	if p.Close, err = parse(cp.CloseAmount); err != nil {
		return nil, err
	}
	return p, nil
}

// GetLatest returns the cached latest price for a ticker, or nil on miss.
// Corrupted entries count as a miss rather than propagating an error.
func (c *PriceCache) GetLatest(ctx context.Context, ticker string) (*models.PricePoint, error) {
	val, err := c.redis.Get(ctx, c.latestKey(ticker)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read price cache: %w", err)
	}
	var cp cachedPrice
	if err := json.Unmarshal([]byte(val), &cp); err != nil {
		return nil, nil
	}
	p, err := decodePrice(cp)
	if err != nil {
		return nil, nil
	}
	return p, nil
}

// PutLatest stores the latest price for a ticker with the given TTL
// (defaultTTL when ttl is zero).
func (c *PriceCache) PutLatest(ctx context.Context, p *models.PricePoint, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	data, err := json.Marshal(encodePrice(p))
	if err != nil {
		return fmt.Errorf("failed to serialize price: %w", err)
	}
	if err := c.redis.Set(ctx, c.latestKey(p.Ticker), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write price cache: %w", err)
	}
	return nil
}

// Delete removes the latest-price entry for a ticker.
func (c *PriceCache) Delete(ctx context.Context, ticker string) error {
	if err := c.redis.Del(ctx, c.latestKey(ticker)).Err(); err != nil {
		return fmt.Errorf("failed to delete price cache entry: %w", err)
	}
	return nil
}

// Exists reports whether a latest-price entry is cached.
func (c *PriceCache) Exists(ctx context.Context, ticker string) (bool, error) {
	n, err := c.redis.Exists(ctx, c.latestKey(ticker)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check price cache entry: %w", err)
	}
	return n > 0, nil
}

// TTL returns the remaining TTL of the latest-price entry. Follows Redis
// conventions: -1 no expiry, -2 missing key.
func (c *PriceCache) TTL(ctx context.Context, ticker string) (time.Duration, error) {
	ttl, err := c.redis.TTL(ctx, c.latestKey(ticker)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read price cache TTL: %w", err)
	}
	return ttl, nil
}

// PutHistory caches a list of PricePoints under the range key.
func (c *PriceCache) PutHistory(ctx context.Context, ticker string, start, end time.Time, interval string, prices []models.PricePoint, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	encoded := make([]cachedPrice, 0, len(prices))
	for i := range prices {
		encoded = append(encoded, encodePrice(&prices[i]))
	}
	data, err := json.Marshal(encoded)
	if err != nil {
		return fmt.Errorf("failed to serialize price history: %w", err)
	}
	key := c.historyKey(ticker, start, end, interval)
	if err := c.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write history cache: %w", err)
	}
	return nil
}

// GetHistory returns cached history for [start, end]. Tries the exact key
// first, then scans for a broader cached range containing the request and
// filters it down. Returns nil on a complete miss.
func (c *PriceCache) GetHistory(ctx context.Context, ticker string, start, end time.Time, interval string) ([]models.PricePoint, error) {
	key := c.historyKey(ticker, start, end, interval)
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read history cache: %w", err)
	}
	if err == nil {
		if prices, decodeErr := decodeHistory(val); decodeErr == nil {
			return prices, nil
		}
		// Corrupted exact entry: fall through to the scan.
	}
	return c.findBroaderRange(ctx, ticker, start, end, interval)
}

func decodeHistory(val string) ([]models.PricePoint, error) {
	var encoded []cachedPrice
	if err := json.Unmarshal([]byte(val), &encoded); err != nil {
		return nil, err
	}
	prices := make([]models.PricePoint, 0, len(encoded))
	for _, cp := range encoded {
		p, err := decodePrice(cp)
		if err != nil {
			return nil, err
		}
		prices = append(prices, *p)
	}
	return prices, nil
}

// parseRangeKey extracts the [start, end] dates embedded in a history key.
// Returns ok=false for keys that don't parse; the scanner skips those.
func parseRangeKey(key string) (start, end time.Time, ok bool) {
	parts := strings.Split(key, ":")
	historyIdx := -1
	for i, part := range parts {
		if part == "history" {
			historyIdx = i
			break
		}
	}
	if historyIdx == -1 || historyIdx+3 > len(parts) {
		return time.Time{}, time.Time{}, false
	}
	startDate, err := time.Parse("2006-01-02", parts[historyIdx+1])
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	endDate, err := time.Parse("2006-01-02", parts[historyIdx+2])
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	// Cached ranges cover whole days.
	start = startDate
	end = endDate.Add(24*time.Hour - time.Second)
	return start, end, true
}

func filterToRange(prices []models.PricePoint, start, end time.Time) []models.PricePoint {
	filtered := make([]models.PricePoint, 0, len(prices))
	for _, p := range prices {
		ts := p.Timestamp.UTC()
		if !ts.Before(start) && !ts.After(end) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// findBroaderRange iterates history keys for the ticker+interval with a
// cursor-based SCAN (never KEYS: the keyspace is shared and blocking it is
// not acceptable) looking for a cached range [s,e] with s <= start and
// e >= end. Malformed keys and corrupted entries are skipped; empty
// filtered results keep the search going.
func (c *PriceCache) findBroaderRange(ctx context.Context, ticker string, start, end time.Time, interval string) ([]models.PricePoint, error) {
	pattern := fmt.Sprintf("%s:%s:history:*:*:%s", c.keyPrefix, ticker, interval)

	var cursor uint64
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan history cache: %w", err)
		}
		for _, key := range keys {
			cachedStart, cachedEnd, ok := parseRangeKey(key)
			if !ok {
				continue
			}
			if cachedStart.After(start.UTC()) || cachedEnd.Before(end.UTC()) {
				continue
			}
			val, err := c.redis.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			prices, err := decodeHistory(val)
			if err != nil {
				continue
			}
			filtered := filterToRange(prices, start.UTC(), end.UTC())
			if len(filtered) > 0 {
				return filtered, nil
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil, nil
}
