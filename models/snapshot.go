package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is one end-of-day valuation row, upserted by
// (portfolio, date).
type PortfolioSnapshot struct {
	ID             int64           `json:"id" db:"id"`
	PortfolioID    uuid.UUID       `json:"portfolioId" db:"portfolio_id"`
	SnapshotDate   time.Time       `json:"snapshotDate" db:"snapshot_date"`
	CashBalance    decimal.Decimal `json:"cashBalance" db:"cash_balance"`
	PositionsValue decimal.Decimal `json:"positionsValue" db:"positions_value"`
	TotalValue     decimal.Decimal `json:"totalValue" db:"total_value"`
	Currency       string          `json:"currency" db:"currency"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

// SnapshotJobResult summarizes one scheduler run.
type SnapshotJobResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
