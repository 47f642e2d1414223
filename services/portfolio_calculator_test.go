package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"papertrade-api/models"
)

func txn(txnType, amount string, ticker string, quantity int64) models.Transaction {
	t := models.Transaction{
		ID:          uuid.New(),
		PortfolioID: uuid.New(),
		Type:        txnType,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "USD",
		ExecutedAt:  time.Date(2026, 1, 12, 15, 0, 0, 0, time.UTC),
	}
	if ticker != "" {
		t.Ticker = &ticker
		t.Quantity = &quantity
		pps := decimal.RequireFromString(amount).Div(decimal.NewFromInt(quantity))
		t.PricePerShare = &pps
	}
	return t
}

func TestCashBalance(t *testing.T) {
	transactions := []models.Transaction{
		txn(models.TxnDeposit, "10000.00", "", 0),
		txn(models.TxnBuy, "1502.50", "AAPL", 10),
		txn(models.TxnSell, "450.00", "AAPL", 3),
		txn(models.TxnWithdraw, "500.00", "", 0),
	}

	// 10000 - 1502.50 + 450 - 500
	assert.Equal(t, "8447.50", CashBalance(transactions).StringFixed(2))
}

func TestCashBalanceEmptyLedger(t *testing.T) {
	assert.True(t, CashBalance(nil).IsZero())
}

func TestHoldingsNetsBuysAndSells(t *testing.T) {
	transactions := []models.Transaction{
		txn(models.TxnBuy, "1500.00", "AAPL", 10),
		txn(models.TxnBuy, "900.00", "MSFT", 2),
		txn(models.TxnSell, "450.00", "AAPL", 3),
		txn(models.TxnBuy, "700.00", "TSLA", 2),
		txn(models.TxnSell, "700.00", "TSLA", 2), // fully closed
		txn(models.TxnDeposit, "5000.00", "", 0), // cash rows ignored
	}

	holdings := Holdings(transactions)
	assert.Equal(t, []models.Holding{
		{Ticker: "AAPL", Shares: 7},
		{Ticker: "MSFT", Shares: 2},
	}, holdings)
}

func TestTransactionValidate(t *testing.T) {
	valid := txn(models.TxnBuy, "1500.00", "AAPL", 10)
	assert.NoError(t, valid.Validate())

	bad := txn("SHORT", "100.00", "AAPL", 1)
	assert.Error(t, bad.Validate())

	negative := txn(models.TxnDeposit, "100.00", "", 0)
	negative.Amount = decimal.RequireFromString("-5.00")
	assert.Error(t, negative.Validate())

	noTicker := txn(models.TxnBuy, "100.00", "", 0)
	assert.Error(t, noTicker.Validate())

	noQty := txn(models.TxnSell, "100.00", "AAPL", 1)
	noQty.Quantity = nil
	assert.Error(t, noQty.Validate())
}
