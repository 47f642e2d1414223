package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"papertrade-api/services"
)

// AdminHandler exposes operational endpoints: manual refresh, rate-limit
// inspection, scheduler status.
type AdminHandler struct {
	marketData *services.MarketDataService
	scheduler  *services.Scheduler
}

// NewAdminHandler creates the handler.
func NewAdminHandler(marketData *services.MarketDataService, scheduler *services.Scheduler) *AdminHandler {
	return &AdminHandler{marketData: marketData, scheduler: scheduler}
}

// TriggerRefresh handles POST /admin/refresh. Runs the refresh job in the
// background and returns immediately.
func (h *AdminHandler) TriggerRefresh(c *gin.Context) {
	// Detached context: the refresh must outlive this request.
	go h.scheduler.TriggerRefresh(context.Background())
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh triggered"})
}

// GetRateLimit handles GET /admin/rate-limit.
func (h *AdminHandler) GetRateLimit(c *gin.Context) {
	minute, day, err := h.marketData.RemainingQuota(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read rate limit"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"remainingMinute": minute,
		"remainingDay":    day,
	})
}

// GetSchedulerStatus handles GET /admin/scheduler.
func (h *AdminHandler) GetSchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.Status())
}
