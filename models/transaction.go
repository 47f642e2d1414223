package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction types. The ledger is append-only: rows are never updated or
// deleted, balances and holdings are always derived.
const (
	TxnDeposit  = "DEPOSIT"
	TxnWithdraw = "WITHDRAW"
	TxnBuy      = "BUY"
	TxnSell     = "SELL"
)

// ValidTxnTypes lists the accepted transaction types.
var ValidTxnTypes = []string{TxnDeposit, TxnWithdraw, TxnBuy, TxnSell}

// Transaction is one row of the append-only ledger. Amount is the cash
// movement in the portfolio's base currency, always positive; the type
// determines direction. Ticker, Quantity and PricePerShare are set for
// BUY/SELL only.
type Transaction struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	PortfolioID   uuid.UUID        `json:"portfolioId" db:"portfolio_id"`
	Type          string           `json:"type" db:"type"`
	Amount        decimal.Decimal  `json:"amount" db:"amount"`
	Currency      string           `json:"currency" db:"currency"`
	Ticker        *string          `json:"ticker,omitempty" db:"ticker"`
	Quantity      *int64           `json:"quantity,omitempty" db:"quantity"`
	PricePerShare *decimal.Decimal `json:"pricePerShare,omitempty" db:"price_per_share"`
	ExecutedAt    time.Time        `json:"executedAt" db:"executed_at"`
	CreatedAt     time.Time        `json:"createdAt" db:"created_at"`
}

// Validate enforces the ledger rules before a row is saved.
func (t *Transaction) Validate() error {
	valid := false
	for _, v := range ValidTxnTypes {
		if t.Type == v {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid transaction type %q", t.Type)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", t.Amount)
	}
	if t.Type == TxnBuy || t.Type == TxnSell {
		if t.Ticker == nil || *t.Ticker == "" {
			return fmt.Errorf("%s requires a ticker", t.Type)
		}
		if err := ValidateTicker(*t.Ticker); err != nil {
			return err
		}
		if t.Quantity == nil || *t.Quantity <= 0 {
			return fmt.Errorf("%s requires a positive quantity", t.Type)
		}
		if t.PricePerShare == nil || !t.PricePerShare.IsPositive() {
			return fmt.Errorf("%s requires a positive price per share", t.Type)
		}
	}
	return nil
}
