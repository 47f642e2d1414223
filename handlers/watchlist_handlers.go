package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"papertrade-api/database"
	"papertrade-api/services"
)

// WatchlistHandler serves the refresh watchlist endpoints.
type WatchlistHandler struct {
	watchlist *services.WatchlistService
}

// NewWatchlistHandler creates the handler.
func NewWatchlistHandler(watchlist *services.WatchlistService) *WatchlistHandler {
	return &WatchlistHandler{watchlist: watchlist}
}

// AddWatchlistRequest is the POST /watchlist body.
type AddWatchlistRequest struct {
	Ticker                 string `json:"ticker" binding:"required"`
	Priority               int    `json:"priority"`
	RefreshIntervalSeconds int    `json:"refreshIntervalSeconds"`
}

// Add handles POST /watchlist.
func (h *WatchlistHandler) Add(c *gin.Context) {
	var req AddWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Priority == 0 {
		req.Priority = 100
	}

	ticker := strings.ToUpper(req.Ticker)
	interval := time.Duration(req.RefreshIntervalSeconds) * time.Second
	if err := h.watchlist.Add(c.Request.Context(), ticker, req.Priority, interval); err != nil {
		respondMarketDataError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ticker": ticker, "priority": req.Priority})
}

// Remove handles DELETE /watchlist/:symbol.
func (h *WatchlistHandler) Remove(c *gin.Context) {
	ticker := strings.ToUpper(c.Param("symbol"))
	err := h.watchlist.Remove(c.Request.Context(), ticker)
	if errors.Is(err, database.ErrWatchlistEntryNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ticker not on watchlist"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove watchlist entry"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticker": ticker, "removed": true})
}

// List handles GET /watchlist.
func (h *WatchlistHandler) List(c *gin.Context) {
	entries, err := h.watchlist.ActiveAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list watchlist"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
