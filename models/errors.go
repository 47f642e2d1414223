package models

import (
	"fmt"
	"time"
)

// TickerNotFoundError means neither the upstream nor any store has a
// record of the ticker.
type TickerNotFoundError struct {
	Ticker string
	Reason string
}

func (e *TickerNotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("ticker %s not found: %s", e.Ticker, e.Reason)
	}
	return fmt.Sprintf("ticker %s not found", e.Ticker)
}

// MarketDataUnavailableError is a transient failure: rate limited with no
// fallback, upstream errors after retries, or no data at the requested
// instant. RetryAfter is set when a wait time is known.
type MarketDataUnavailableError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *MarketDataUnavailableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("market data unavailable: %s (retry in %.0f seconds)",
			e.Reason, e.RetryAfter.Seconds())
	}
	return fmt.Sprintf("market data unavailable: %s", e.Reason)
}

// ClientInputError is a caller mistake: invalid interval, reversed date
// range, malformed parameters. Maps to a 4xx response.
type ClientInputError struct {
	Reason string
}

func (e *ClientInputError) Error() string {
	return "invalid input: " + e.Reason
}

// InvalidPriceDataError means the upstream returned a body that could not
// be turned into a valid PricePoint. Indicates upstream contract drift.
type InvalidPriceDataError struct {
	Ticker string
	Reason string
}

func (e *InvalidPriceDataError) Error() string {
	return fmt.Sprintf("invalid price data for %s: %s", e.Ticker, e.Reason)
}
