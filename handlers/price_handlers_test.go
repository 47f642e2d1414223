package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"papertrade-api/models"
)

func runErrorMapper(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondMarketDataError(c, err)
	return w
}

func TestRespondMarketDataErrorMapping(t *testing.T) {
	w := runErrorMapper(&models.TickerNotFoundError{Ticker: "NOPE"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = runErrorMapper(&models.MarketDataUnavailableError{Reason: "rate limited", RetryAfter: 42 * time.Second})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "retryAfterSeconds")
	assert.Contains(t, w.Body.String(), "42")

	w = runErrorMapper(&models.InvalidPriceDataError{Ticker: "AAPL", Reason: "drift"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = runErrorMapper(&models.ClientInputError{Reason: "bad interval"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCurrentPriceRejectsBadSymbol(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPriceHandler(nil)

	router := gin.New()
	router.GET("/prices/:symbol", handler.GetCurrentPrice)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/prices/TOOLONG", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBatchPricesRequiresSymbols(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPriceHandler(nil)

	router := gin.New()
	router.GET("/prices", handler.GetBatchPrices)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/prices", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
