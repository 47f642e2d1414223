package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Portfolio is a user's paper-trading account.
type Portfolio struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"userId" db:"user_id"`
	Name         string    `json:"name" db:"name"`
	BaseCurrency string    `json:"baseCurrency" db:"base_currency"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// Holding is a derived position: net share count for one ticker.
type Holding struct {
	Ticker string `json:"ticker"`
	Shares int64  `json:"shares"`
}

// HoldingValuation is a holding priced at a point in time.
type HoldingValuation struct {
	Ticker      string          `json:"ticker"`
	Shares      int64           `json:"shares"`
	Price       decimal.Decimal `json:"price"`
	MarketValue decimal.Decimal `json:"marketValue"`
	PriceSource string          `json:"priceSource"`
	PricedAt    time.Time       `json:"pricedAt"`
}

// PortfolioBalance is the full valuation of a portfolio.
type PortfolioBalance struct {
	PortfolioID    uuid.UUID          `json:"portfolioId"`
	CashBalance    decimal.Decimal    `json:"cashBalance"`
	PositionsValue decimal.Decimal    `json:"positionsValue"`
	TotalValue     decimal.Decimal    `json:"totalValue"`
	Currency       string             `json:"currency"`
	Holdings       []HoldingValuation `json:"holdings"`
	AsOf           time.Time          `json:"asOf"`
}

// DailyChange compares the current total value against the close of the
// previous trading day.
type DailyChange struct {
	PortfolioID   uuid.UUID       `json:"portfolioId"`
	CurrentValue  decimal.Decimal `json:"currentValue"`
	PreviousValue decimal.Decimal `json:"previousValue"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	PreviousClose time.Time       `json:"previousClose"`
}
