package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"papertrade-api/models"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// UpsertSnapshot writes one end-of-day valuation row, keyed by
// (portfolio, date). Re-running a snapshot job for the same day updates in
// place.
func UpsertSnapshot(ctx context.Context, s *models.PortfolioSnapshot) error {
	query := `
		INSERT INTO portfolio_snapshots (portfolio_id, snapshot_date, cash_balance, positions_value, total_value, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (portfolio_id, snapshot_date) DO UPDATE SET
			cash_balance = EXCLUDED.cash_balance,
			positions_value = EXCLUDED.positions_value,
			total_value = EXCLUDED.total_value,
			currency = EXCLUDED.currency,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := DB.QueryRowContext(ctx, query,
		s.PortfolioID, s.SnapshotDate.UTC().Truncate(24*time.Hour),
		s.CashBalance, s.PositionsValue, s.TotalValue, s.Currency,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// GetSnapshotRange returns snapshots for [start, end] ascending by date.
func GetSnapshotRange(ctx context.Context, portfolioID uuid.UUID, start, end time.Time) ([]models.PortfolioSnapshot, error) {
	query := `
		SELECT id, portfolio_id, snapshot_date, cash_balance, positions_value, total_value, currency, created_at, updated_at
		FROM portfolio_snapshots
		WHERE portfolio_id = $1
		  AND snapshot_date >= $2
		  AND snapshot_date <= $3
		ORDER BY snapshot_date ASC
	`
	snapshots := []models.PortfolioSnapshot{}
	err := DB.SelectContext(ctx, &snapshots, query, portfolioID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	return snapshots, nil
}

// GetLatestSnapshot returns the most recent snapshot for a portfolio.
func GetLatestSnapshot(ctx context.Context, portfolioID uuid.UUID) (*models.PortfolioSnapshot, error) {
	query := `
		SELECT id, portfolio_id, snapshot_date, cash_balance, positions_value, total_value, currency, created_at, updated_at
		FROM portfolio_snapshots
		WHERE portfolio_id = $1
		ORDER BY snapshot_date DESC
		LIMIT 1
	`
	s := &models.PortfolioSnapshot{}
	err := DB.GetContext(ctx, s, query, portfolioID)
	if err == sql.ErrNoRows {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return s, nil
}
