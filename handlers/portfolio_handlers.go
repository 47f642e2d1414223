package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"papertrade-api/database"
	"papertrade-api/models"
	"papertrade-api/services"
)

// PortfolioHandler serves portfolio CRUD, the transaction ledger, and the
// derived analytics.
type PortfolioHandler struct {
	calculator *services.PortfolioCalculator
	snapshots  *services.SnapshotService
}

// NewPortfolioHandler creates the handler.
func NewPortfolioHandler(calculator *services.PortfolioCalculator, snapshots *services.SnapshotService) *PortfolioHandler {
	return &PortfolioHandler{calculator: calculator, snapshots: snapshots}
}

// CreatePortfolioRequest is the POST /portfolios body.
type CreatePortfolioRequest struct {
	Name         string `json:"name" binding:"required"`
	BaseCurrency string `json:"baseCurrency"`
}

// CreatePortfolio handles POST /portfolios.
func (h *PortfolioHandler) CreatePortfolio(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.BaseCurrency == "" {
		req.BaseCurrency = "USD"
	}

	portfolio := &models.Portfolio{
		UserID:       userID,
		Name:         req.Name,
		BaseCurrency: strings.ToUpper(req.BaseCurrency),
	}
	if err := database.CreatePortfolio(c.Request.Context(), portfolio); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create portfolio"})
		return
	}
	c.JSON(http.StatusCreated, portfolio)
}

// ListPortfolios handles GET /portfolios.
func (h *PortfolioHandler) ListPortfolios(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	portfolios, err := database.ListPortfoliosByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list portfolios"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"portfolios": portfolios})
}

// GetPortfolio handles GET /portfolios/:id.
func (h *PortfolioHandler) GetPortfolio(c *gin.Context) {
	portfolio, ok := h.ownedPortfolio(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, portfolio)
}

// GetBalance handles GET /portfolios/:id/balance.
func (h *PortfolioHandler) GetBalance(c *gin.Context) {
	portfolio, ok := h.ownedPortfolio(c)
	if !ok {
		return
	}
	balance, err := h.calculator.Balance(c.Request.Context(), portfolio)
	if err != nil {
		respondMarketDataError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// GetHoldings handles GET /portfolios/:id/holdings.
func (h *PortfolioHandler) GetHoldings(c *gin.Context) {
	portfolio, ok := h.ownedPortfolio(c)
	if !ok {
		return
	}
	transactions, err := database.ListTransactionsByPortfolio(c.Request.Context(), portfolio.ID, "", 0, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"portfolioId": portfolio.ID,
		"holdings":    services.Holdings(transactions),
		"cashBalance": services.CashBalance(transactions),
	})
}

// GetDailyChange handles GET /portfolios/:id/daily-change.
func (h *PortfolioHandler) GetDailyChange(c *gin.Context) {
	portfolio, ok := h.ownedPortfolio(c)
	if !ok {
		return
	}
	change, err := h.calculator.DailyChange(c.Request.Context(), portfolio)
	if err != nil {
		respondMarketDataError(c, err)
		return
	}
	c.JSON(http.StatusOK, change)
}

// GetSnapshots handles GET /portfolios/:id/snapshots?start=&end=.
func (h *PortfolioHandler) GetSnapshots(c *gin.Context) {
	portfolio, ok := h.ownedPortfolio(c)
	if !ok {
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, -1, 0)
	if s := c.Query("start"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start must be YYYY-MM-DD"})
			return
		}
		start = parsed
	}
	if e := c.Query("end"); e != "" {
		parsed, err := time.Parse("2006-01-02", e)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
			return
		}
		end = parsed
	}

	snapshots, err := database.GetSnapshotRange(c.Request.Context(), portfolio.ID, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load snapshots"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots, "count": len(snapshots)})
}

// CreateTransactionRequest is the POST /portfolios/:id/transactions body.
type CreateTransactionRequest struct {
	Type          string  `json:"type" binding:"required"`
	Amount        string  `json:"amount" binding:"required"`
	Ticker        *string `json:"ticker"`
	Quantity      *int64  `json:"quantity"`
	PricePerShare *string `json:"pricePerShare"`
	ExecutedAt    *string `json:"executedAt"`
}

// CreateTransaction handles POST /portfolios/:id/transactions.
func (h *PortfolioHandler) CreateTransaction(c *gin.Context) {
	portfolio, ok := h.ownedPortfolio(c)
	if !ok {
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a decimal string"})
		return
	}

	txn := &models.Transaction{
		PortfolioID: portfolio.ID,
		Type:        strings.ToUpper(req.Type),
		Amount:      amount,
		Currency:    portfolio.BaseCurrency,
		Quantity:    req.Quantity,
		ExecutedAt:  time.Now().UTC(),
	}
	if req.Ticker != nil {
		t := strings.ToUpper(*req.Ticker)
		txn.Ticker = &t
	}
	if req.PricePerShare != nil {
		pps, err := decimal.NewFromString(*req.PricePerShare)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pricePerShare must be a decimal string"})
			return
		}
		txn.PricePerShare = &pps
	}
	if req.ExecutedAt != nil {
		ts, err := time.Parse(time.RFC3339, *req.ExecutedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "executedAt must be RFC3339"})
			return
		}
		txn.ExecutedAt = ts.UTC()
	}

	if err := txn.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := database.SaveTransaction(c.Request.Context(), txn); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save transaction"})
		return
	}
	c.JSON(http.StatusCreated, txn)
}

// ListTransactions handles GET /portfolios/:id/transactions.
func (h *PortfolioHandler) ListTransactions(c *gin.Context) {
	portfolio, ok := h.ownedPortfolio(c)
	if !ok {
		return
	}

	txnType := strings.ToUpper(c.Query("type"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txns, err := database.ListTransactionsByPortfolio(c.Request.Context(), portfolio.ID, txnType, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}
	total, err := database.CountTransactionsByPortfolio(c.Request.Context(), portfolio.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count transactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

// ownedPortfolio loads the :id portfolio and checks it belongs to the
// authenticated user. Writes the error response itself on failure.
func (h *PortfolioHandler) ownedPortfolio(c *gin.Context) (*models.Portfolio, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid portfolio id"})
		return nil, false
	}
	portfolio, err := database.GetPortfolio(c.Request.Context(), id)
	if errors.Is(err, database.ErrPortfolioNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "portfolio not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load portfolio"})
		return nil, false
	}
	if portfolio.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "portfolio not found"})
		return nil, false
	}
	return portfolio, true
}

// currentUserID pulls the authenticated user id set by the auth
// middleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetString("user_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return uuid.Nil, false
	}
	return id, true
}
