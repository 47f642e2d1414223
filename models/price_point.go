package models

import (
	"errors"
	"fmt"
	"time"
)

// Price sources, recorded on every PricePoint so callers can tell which
// tier served it.
const (
	SourceAlphaVantage = "alpha_vantage" // fetched from the upstream API
	SourceCache        = "cache"         // served from the Redis hot cache
	SourceDatabase     = "database"      // served from the Postgres warm store
)

// Supported price intervals. Only 1day is ever fetched from the upstream;
// the rest exist for data that arrives through other paths.
const (
	Interval1Min  = "1min"
	Interval5Min  = "5min"
	Interval15Min = "15min"
	Interval30Min = "30min"
	Interval1Hour = "1hour"
	Interval1Day  = "1day"
)

// ValidIntervals lists every interval accepted by the price APIs.
var ValidIntervals = []string{
	Interval1Min, Interval5Min, Interval15Min, Interval30Min, Interval1Hour, Interval1Day,
}

// IsValidInterval reports whether s is a recognized interval.
func IsValidInterval(s string) bool {
	for _, v := range ValidIntervals {
		if v == s {
			return true
		}
	}
	return false
}

// ValidateTicker checks the 1-5 character uppercase symbol rule.
func ValidateTicker(symbol string) error {
	if len(symbol) < 1 || len(symbol) > 5 {
		return fmt.Errorf("ticker must be 1-5 characters, got %q", symbol)
	}
	for _, r := range symbol {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("ticker must be uppercase letters, got %q", symbol)
		}
	}
	return nil
}

// PricePoint is the central market-data value object: one price for one
// ticker at one instant. Immutable by convention; use WithSource to derive
// a re-tagged copy.
type PricePoint struct {
	Ticker    string    `json:"ticker"`
	Price     Money     `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Interval  string    `json:"interval"`

	// Optional OHLCV. Same currency as Price when present.
	Open   *Money `json:"open,omitempty"`
	High   *Money `json:"high,omitempty"`
	Low    *Money `json:"low,omitempty"`
	Close  *Money `json:"close,omitempty"`
	Volume *int64 `json:"volume,omitempty"`
}

// Validate enforces the PricePoint invariants: positive price, UTC
// timestamp, known interval, OHLC ordering and currency agreement,
// non-negative volume.
func (p *PricePoint) Validate() error {
	if err := ValidateTicker(p.Ticker); err != nil {
		return err
	}
	if !p.Price.IsPositive() {
		return fmt.Errorf("price must be positive, got %s", p.Price)
	}
	if p.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	if p.Timestamp.Location() != time.UTC {
		return fmt.Errorf("timestamp must be UTC, got zone %s", p.Timestamp.Location())
	}
	if !IsValidInterval(p.Interval) {
		return fmt.Errorf("invalid interval %q", p.Interval)
	}
	if p.Volume != nil && *p.Volume < 0 {
		return fmt.Errorf("volume must be non-negative, got %d", *p.Volume)
	}
	for _, m := range []*Money{p.Open, p.High, p.Low, p.Close} {
		if m != nil && m.Currency != p.Price.Currency {
			return &ErrCurrencyMismatch{Left: p.Price.Currency, Right: m.Currency}
		}
	}
	// low <= {open, close} <= high, checked pairwise for the fields present
	if p.Low != nil {
		if p.Open != nil && p.Open.Amount.LessThan(p.Low.Amount) {
			return fmt.Errorf("open %s below low %s", p.Open, p.Low)
		}
		if p.Close != nil && p.Close.Amount.LessThan(p.Low.Amount) {
			return fmt.Errorf("close %s below low %s", p.Close, p.Low)
		}
	}
	if p.High != nil {
		if p.Open != nil && p.Open.Amount.GreaterThan(p.High.Amount) {
			return fmt.Errorf("open %s above high %s", p.Open, p.High)
		}
		if p.Close != nil && p.Close.Amount.GreaterThan(p.High.Amount) {
			return fmt.Errorf("close %s above high %s", p.Close, p.High)
		}
	}
	if p.Low != nil && p.High != nil && p.Low.Amount.GreaterThan(p.High.Amount) {
		return fmt.Errorf("low %s above high %s", p.Low, p.High)
	}
	return nil
}

// WithSource returns a copy tagged with a different source. Used when a
// price fetched from one tier is served out of another.
func (p *PricePoint) WithSource(source string) *PricePoint {
	cp := *p
	cp.Source = source
	return &cp
}

// IsStale reports whether the point is older than maxAge relative to now.
func (p *PricePoint) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(p.Timestamp) > maxAge
}

// Equal compares identity fields only: (ticker, price, timestamp, source,
// interval). OHLCV are deliberately outside equality.
func (p *PricePoint) Equal(other *PricePoint) bool {
	if other == nil {
		return false
	}
	return p.Ticker == other.Ticker &&
		p.Price.Equal(other.Price) &&
		p.Timestamp.Equal(other.Timestamp) &&
		p.Source == other.Source &&
		p.Interval == other.Interval
}
