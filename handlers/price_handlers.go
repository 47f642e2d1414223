package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"papertrade-api/models"
	"papertrade-api/services"
)

// PriceHandler serves the market-data endpoints on top of the tiered
// adapter.
type PriceHandler struct {
	marketData *services.MarketDataService
}

// NewPriceHandler creates the handler.
func NewPriceHandler(marketData *services.MarketDataService) *PriceHandler {
	return &PriceHandler{marketData: marketData}
}

// GetCurrentPrice handles GET /prices/:symbol.
func (h *PriceHandler) GetCurrentPrice(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if err := models.ValidateTicker(symbol); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	price, err := h.marketData.GetCurrentPrice(c.Request.Context(), symbol)
	if err != nil {
		respondMarketDataError(c, err)
		return
	}
	c.JSON(http.StatusOK, price)
}

// GetBatchPrices handles GET /prices?symbols=AAPL,MSFT.
func (h *PriceHandler) GetBatchPrices(c *gin.Context) {
	symbolsParam := c.Query("symbols")
	if symbolsParam == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols query parameter required"})
		return
	}

	symbols := []string{}
	for _, s := range strings.Split(symbolsParam, ",") {
		symbol := strings.ToUpper(strings.TrimSpace(s))
		if symbol == "" {
			continue
		}
		if err := models.ValidateTicker(symbol); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		symbols = append(symbols, symbol)
	}

	prices, err := h.marketData.GetBatchPrices(c.Request.Context(), symbols)
	if err != nil {
		respondMarketDataError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"prices":    prices,
		"requested": len(symbols),
		"resolved":  len(prices),
	})
}

// GetPriceAt handles GET /prices/:symbol/at?timestamp=RFC3339.
func (h *PriceHandler) GetPriceAt(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if err := models.ValidateTicker(symbol); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ts, err := time.Parse(time.RFC3339, c.Query("timestamp"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC3339"})
		return
	}

	price, err := h.marketData.GetPriceAt(c.Request.Context(), symbol, ts.UTC())
	if err != nil {
		respondMarketDataError(c, err)
		return
	}
	c.JSON(http.StatusOK, price)
}

// GetPriceHistory handles GET /prices/:symbol/history?start=&end=&interval=.
// Dates are YYYY-MM-DD; the end date is inclusive.
func (h *PriceHandler) GetPriceHistory(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if err := models.ValidateTicker(symbol); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, err := time.Parse("2006-01-02", c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be YYYY-MM-DD"})
		return
	}
	end, err := time.Parse("2006-01-02", c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
		return
	}
	endOfDay := end.Add(24*time.Hour - time.Second)

	interval := c.DefaultQuery("interval", models.Interval1Day)

	history, err := h.marketData.GetPriceHistory(c.Request.Context(), symbol, start, endOfDay, interval)
	if err != nil {
		respondMarketDataError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ticker":   symbol,
		"interval": interval,
		"start":    c.Query("start"),
		"end":      c.Query("end"),
		"points":   history,
		"count":    len(history),
	})
}

// GetSupportedTickers handles GET /prices/tickers.
func (h *PriceHandler) GetSupportedTickers(c *gin.Context) {
	tickers, err := h.marketData.GetSupportedTickers(c.Request.Context())
	if err != nil {
		respondMarketDataError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickers": tickers, "count": len(tickers)})
}

// respondMarketDataError maps the domain error taxonomy onto HTTP status
// codes.
func respondMarketDataError(c *gin.Context, err error) {
	var notFound *models.TickerNotFoundError
	var unavailable *models.MarketDataUnavailableError
	var invalid *models.InvalidPriceDataError
	var clientInput *models.ClientInputError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &unavailable):
		resp := gin.H{"error": err.Error()}
		if unavailable.RetryAfter > 0 {
			resp["retryAfterSeconds"] = int(unavailable.RetryAfter.Seconds())
		}
		c.JSON(http.StatusServiceUnavailable, resp)
	case errors.As(err, &invalid):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case errors.As(err, &clientInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
