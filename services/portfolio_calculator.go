package services

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"papertrade-api/database"
	"papertrade-api/models"
)

// PortfolioCalculator derives balances and valuations from the append-only
// transaction ledger. Nothing here is stored; every number is recomputed
// from the rows.
type PortfolioCalculator struct {
	marketData *MarketDataService
	calendar   *MarketCalendar
	now        func() time.Time
}

// NewPortfolioCalculator creates a calculator over the given market data
// service.
func NewPortfolioCalculator(marketData *MarketDataService) *PortfolioCalculator {
	return &PortfolioCalculator{
		marketData: marketData,
		calendar:   NewMarketCalendar(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CashBalance folds the ledger into a cash figure: deposits and sells add,
// withdrawals and buys subtract.
func CashBalance(transactions []models.Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, t := range transactions {
		switch t.Type {
		case models.TxnDeposit, models.TxnSell:
			balance = balance.Add(t.Amount)
		case models.TxnWithdraw, models.TxnBuy:
			balance = balance.Sub(t.Amount)
		}
	}
	return balance.RoundBank(2)
}

// Holdings nets BUY/SELL quantities per ticker. Zero and negative
// positions are dropped.
func Holdings(transactions []models.Transaction) []models.Holding {
	shares := map[string]int64{}
	for _, t := range transactions {
		if t.Ticker == nil || t.Quantity == nil {
			continue
		}
		switch t.Type {
		case models.TxnBuy:
			shares[*t.Ticker] += *t.Quantity
		case models.TxnSell:
			shares[*t.Ticker] -= *t.Quantity
		}
	}

	holdings := make([]models.Holding, 0, len(shares))
	for ticker, n := range shares {
		if n > 0 {
			holdings = append(holdings, models.Holding{Ticker: ticker, Shares: n})
		}
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Ticker < holdings[j].Ticker })
	return holdings
}

// Balance values a portfolio at current prices: cash plus the sum of
// shares times price, banker's-rounded per position. Holdings whose price
// cannot be resolved are skipped with a warning rather than failing the
// whole valuation.
func (c *PortfolioCalculator) Balance(ctx context.Context, portfolio *models.Portfolio) (*models.PortfolioBalance, error) {
	transactions, err := database.ListTransactionsByPortfolio(ctx, portfolio.ID, "", 0, 0)
	if err != nil {
		return nil, err
	}

	cash := CashBalance(transactions)
	holdings := Holdings(transactions)

	tickers := make([]string, len(holdings))
	for i, h := range holdings {
		tickers[i] = h.Ticker
	}
	prices, err := c.marketData.GetBatchPrices(ctx, tickers)
	if err != nil {
		return nil, err
	}

	positionsValue := decimal.Zero
	valuations := make([]models.HoldingValuation, 0, len(holdings))
	for _, h := range holdings {
		price, ok := prices[h.Ticker]
		if !ok {
			log.Printf("Warning: price unavailable for %s, excluding from valuation", h.Ticker)
			continue
		}
		marketValue := price.Price.MulInt(h.Shares)
		positionsValue = positionsValue.Add(marketValue.Amount)
		valuations = append(valuations, models.HoldingValuation{
			Ticker:      h.Ticker,
			Shares:      h.Shares,
			Price:       price.Price.Amount,
			MarketValue: marketValue.Amount,
			PriceSource: price.Source,
			PricedAt:    price.Timestamp,
		})
	}
	positionsValue = positionsValue.RoundBank(2)

	return &models.PortfolioBalance{
		PortfolioID:    portfolio.ID,
		CashBalance:    cash,
		PositionsValue: positionsValue,
		TotalValue:     cash.Add(positionsValue).RoundBank(2),
		Currency:       portfolio.BaseCurrency,
		Holdings:       valuations,
		AsOf:           c.now(),
	}, nil
}

// DailyChange compares the current valuation against the portfolio valued
// at the previous trading day's close. The baseline close comes from the
// calendar, so a Monday after a holiday compares against the right day.
func (c *PortfolioCalculator) DailyChange(ctx context.Context, portfolio *models.Portfolio) (*models.DailyChange, error) {
	current, err := c.Balance(ctx, portfolio)
	if err != nil {
		return nil, err
	}

	previousClose := c.calendar.PreviousTradingDayClose(c.now())
	previousValue, err := c.valueAt(ctx, portfolio.ID, previousClose)
	if err != nil {
		return nil, err
	}

	change := current.TotalValue.Sub(previousValue).RoundBank(2)
	changePercent := decimal.Zero
	if !previousValue.IsZero() {
		changePercent = change.Div(previousValue).Mul(decimal.NewFromInt(100)).RoundBank(2)
	}

	return &models.DailyChange{
		PortfolioID:   portfolio.ID,
		CurrentValue:  current.TotalValue,
		PreviousValue: previousValue,
		Change:        change,
		ChangePercent: changePercent,
		PreviousClose: previousClose,
	}, nil
}

// valueAt reconstructs the portfolio value at a past instant: ledger rows
// executed up to then, priced with GetPriceAt.
func (c *PortfolioCalculator) valueAt(ctx context.Context, portfolioID uuid.UUID, at time.Time) (decimal.Decimal, error) {
	transactions, err := database.ListTransactionsByPortfolio(ctx, portfolioID, "", 0, 0)
	if err != nil {
		return decimal.Zero, err
	}

	asOf := make([]models.Transaction, 0, len(transactions))
	for _, t := range transactions {
		if !t.ExecutedAt.After(at) {
			asOf = append(asOf, t)
		}
	}

	total := CashBalance(asOf)
	for _, h := range Holdings(asOf) {
		price, err := c.marketData.GetPriceAt(ctx, h.Ticker, at)
		if err != nil {
			log.Printf("Warning: no price for %s at %s, excluding from historical value", h.Ticker, at)
			continue
		}
		total = total.Add(price.Price.MulInt(h.Shares).Amount)
	}
	return total.RoundBank(2), nil
}
