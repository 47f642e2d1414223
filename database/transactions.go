package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"papertrade-api/models"
)

// SaveTransaction appends one ledger row. The ledger is append-only:
// there is no update or delete path, and the unique id makes replays
// idempotent failures instead of duplicates.
func SaveTransaction(ctx context.Context, t *models.Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	query := `
		INSERT INTO transactions (id, portfolio_id, type, amount, currency, ticker, quantity, price_per_share, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err := DB.QueryRowContext(ctx, query,
		t.ID, t.PortfolioID, t.Type, t.Amount, t.Currency,
		t.Ticker, t.Quantity, t.PricePerShare, t.ExecutedAt.UTC(),
	).Scan(&t.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("transaction %s already exists: %w", t.ID, err)
		}
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// ListTransactionsByPortfolio returns ledger rows for a portfolio in
// execution order, optionally filtered by type, with limit/offset
// pagination. A zero limit means no limit.
func ListTransactionsByPortfolio(ctx context.Context, portfolioID uuid.UUID, txnType string, limit, offset int) ([]models.Transaction, error) {
	query := `
		SELECT id, portfolio_id, type, amount, currency, ticker, quantity, price_per_share, executed_at, created_at
		FROM transactions
		WHERE portfolio_id = $1
		  AND ($2 = '' OR type = $2)
		ORDER BY executed_at ASC, created_at ASC
	`
	args := []interface{}{portfolioID, txnType}
	if limit > 0 {
		query += ` LIMIT $3 OFFSET $4`
		args = append(args, limit, offset)
	}

	txns := []models.Transaction{}
	if err := DB.SelectContext(ctx, &txns, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// CountTransactionsByPortfolio returns the ledger row count for a
// portfolio.
func CountTransactionsByPortfolio(ctx context.Context, portfolioID uuid.UUID) (int64, error) {
	var count int64
	err := DB.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM transactions WHERE portfolio_id = $1`, portfolioID)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// DistinctTickersSince returns the unique tickers traded in the last N
// days across all portfolios. Feeds the refresh scheduler's active set.
func DistinctTickersSince(ctx context.Context, days int) ([]string, error) {
	query := `
		SELECT DISTINCT ticker
		FROM transactions
		WHERE ticker IS NOT NULL
		  AND executed_at >= NOW() - INTERVAL '1 day' * $1
		ORDER BY ticker ASC
	`
	tickers := []string{}
	if err := DB.SelectContext(ctx, &tickers, query, days); err != nil {
		return nil, fmt.Errorf("failed to query recent tickers: %w", err)
	}
	return tickers, nil
}
