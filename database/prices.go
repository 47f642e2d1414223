package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"papertrade-api/models"
)

// The stock_prices table is the warm tier and the authoritative historical
// record: rows are only ever upserted, never evicted. Timestamps are
// stored as timestamptz and read back in UTC.

// UpsertPrice inserts or refreshes one price row, keyed by
// (ticker, time, interval). Idempotent.
func UpsertPrice(ctx context.Context, p *models.PricePoint) error {
	query := `
		INSERT INTO stock_prices (ticker, time, interval, price, currency, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (ticker, time, interval) DO UPDATE SET
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`
	_, err := DB.ExecContext(ctx, query,
		p.Ticker,
		p.Timestamp.UTC(),
		p.Interval,
		p.Price.Amount,
		p.Price.Currency,
		moneyAmount(p.Open),
		moneyAmount(p.High),
		moneyAmount(p.Low),
		moneyAmount(p.Close),
		p.Volume,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert price for %s: %w", p.Ticker, err)
	}
	return nil
}

// GetLatestPrice returns the most recent row for a ticker whose timestamp
// is within maxAge of now, or nil when nothing qualifies.
func GetLatestPrice(ctx context.Context, ticker string, maxAge time.Duration) (*models.PricePoint, error) {
	query := `
		SELECT ticker, time, interval, price, currency, open, high, low, close, volume
		FROM stock_prices
		WHERE ticker = $1
		  AND time >= $2
		ORDER BY time DESC
		LIMIT 1
	`
	cutoff := time.Now().UTC().Add(-maxAge)
	return scanPriceRow(DB.QueryRowContext(ctx, query, ticker, cutoff))
}

// GetPriceAt returns the most recent row at or before the instant, or nil.
func GetPriceAt(ctx context.Context, ticker string, at time.Time) (*models.PricePoint, error) {
	query := `
		SELECT ticker, time, interval, price, currency, open, high, low, close, volume
		FROM stock_prices
		WHERE ticker = $1
		  AND time <= $2
		ORDER BY time DESC
		LIMIT 1
	`
	return scanPriceRow(DB.QueryRowContext(ctx, query, ticker, at.UTC()))
}

// GetPriceHistory returns rows for [start, end] ascending by time. An
// empty range yields an empty slice, not an error.
func GetPriceHistory(ctx context.Context, ticker string, start, end time.Time, interval string) ([]models.PricePoint, error) {
	query := `
		SELECT ticker, time, interval, price, currency, open, high, low, close, volume
		FROM stock_prices
		WHERE ticker = $1
		  AND interval = $2
		  AND time >= $3
		  AND time <= $4
		ORDER BY time ASC
	`
	rows, err := DB.QueryContext(ctx, query, ticker, interval, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	history := []models.PricePoint{}
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price history: %w", err)
	}
	return history, nil
}

// GetAllTickers returns the alphabetical set of tickers with price data.
func GetAllTickers(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT ticker FROM stock_prices ORDER BY ticker ASC`
	rows, err := DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	tickers := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}
	return tickers, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPriceRow(row *sql.Row) (*models.PricePoint, error) {
	p, err := scanPrice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func scanPrice(row rowScanner) (*models.PricePoint, error) {
	var (
		ticker, interval, currency string
		ts                         time.Time
		price                      decimal.Decimal
		open, high, low, closeP    decimal.NullDecimal
		volume                     sql.NullInt64
	)
	err := row.Scan(&ticker, &ts, &interval, &price, &currency, &open, &high, &low, &closeP, &volume)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan price row: %w", err)
	}

	p := &models.PricePoint{
		Ticker:    ticker,
		Price:     models.NewMoney(price, currency),
		Timestamp: ts.UTC(),
		Source:    models.SourceDatabase,
		Interval:  interval,
	}
	p.Open = nullMoney(open, currency)
	p.High = nullMoney(high, currency)
	p.Low = nullMoney(low, currency)
	p.Close = nullMoney(closeP, currency)
	if volume.Valid {
		v := volume.Int64
		p.Volume = &v
	}
	return p, nil
}

func moneyAmount(m *models.Money) *decimal.Decimal {
	if m == nil {
		return nil
	}
	return &m.Amount
}

func nullMoney(d decimal.NullDecimal, currency string) *models.Money {
	if !d.Valid {
		return nil
	}
	m := models.NewMoney(d.Decimal, currency)
	return &m
}
