package services

import (
	"context"
	"time"

	"papertrade-api/database"
	"papertrade-api/models"
)

const defaultRefreshInterval = 24 * time.Hour

// WatchlistService manages the active-ticker refresh set for handlers and
// the scheduler.
type WatchlistService struct{}

// NewWatchlistService creates the service.
func NewWatchlistService() *WatchlistService {
	return &WatchlistService{}
}

// Add puts a ticker on the watchlist, or reactivates it. Priority only
// ever improves on re-add (lower number wins); the refresh interval is
// overwritten. A zero interval falls back to the 24h default.
func (w *WatchlistService) Add(ctx context.Context, ticker string, priority int, refreshInterval time.Duration) error {
	if err := models.ValidateTicker(ticker); err != nil {
		return &models.ClientInputError{Reason: err.Error()}
	}
	if refreshInterval <= 0 {
		refreshInterval = defaultRefreshInterval
	}
	return database.AddWatchlistTicker(ctx, ticker, priority, refreshInterval)
}

// Remove deactivates a ticker. The scheduler never visits inactive
// entries.
func (w *WatchlistService) Remove(ctx context.Context, ticker string) error {
	return database.RemoveWatchlistTicker(ctx, ticker)
}

// ActiveAll lists active entries ordered by priority.
func (w *WatchlistService) ActiveAll(ctx context.Context) ([]models.WatchlistEntry, error) {
	return database.ListActiveWatchlist(ctx)
}

// Stale lists active entries due for refresh, best priority first.
func (w *WatchlistService) Stale(ctx context.Context, limit int) ([]models.WatchlistEntry, error) {
	return database.ListStaleWatchlist(ctx, limit)
}

// TouchRefresh records a completed refresh and its follow-up time.
func (w *WatchlistService) TouchRefresh(ctx context.Context, ticker string, now, nextAt time.Time) error {
	return database.TouchWatchlistRefresh(ctx, ticker, now, nextAt)
}
