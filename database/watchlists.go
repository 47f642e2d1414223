package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"papertrade-api/models"
)

// Sentinel errors for watchlist operations
var (
	ErrWatchlistEntryNotFound = errors.New("watchlist entry not found")
)

// AddWatchlistTicker inserts a new active entry, or reactivates an
// existing one. On reactivation the priority only ever moves toward more
// attention (lower number); the refresh interval is overwritten.
func AddWatchlistTicker(ctx context.Context, ticker string, priority int, refreshInterval time.Duration) error {
	query := `
		INSERT INTO watchlist_entries (ticker, priority, active, refresh_interval_seconds)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (ticker) DO UPDATE SET
			active = TRUE,
			priority = LEAST(watchlist_entries.priority, EXCLUDED.priority),
			refresh_interval_seconds = EXCLUDED.refresh_interval_seconds,
			updated_at = NOW()
	`
	_, err := DB.ExecContext(ctx, query, ticker, priority, int(refreshInterval.Seconds()))
	if err != nil {
		return fmt.Errorf("failed to add watchlist ticker %s: %w", ticker, err)
	}
	return nil
}

// RemoveWatchlistTicker marks an entry inactive. Metadata is retained so a
// later re-add restores the best priority seen.
func RemoveWatchlistTicker(ctx context.Context, ticker string) error {
	query := `
		UPDATE watchlist_entries
		SET active = FALSE, updated_at = NOW()
		WHERE ticker = $1
	`
	result, err := DB.ExecContext(ctx, query, ticker)
	if err != nil {
		return fmt.Errorf("failed to remove watchlist ticker %s: %w", ticker, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrWatchlistEntryNotFound
	}
	return nil
}

// GetWatchlistEntry fetches one entry regardless of active flag.
func GetWatchlistEntry(ctx context.Context, ticker string) (*models.WatchlistEntry, error) {
	query := `
		SELECT ticker, priority, active, last_refresh_at, next_refresh_at,
		       refresh_interval_seconds, created_at, updated_at
		FROM watchlist_entries
		WHERE ticker = $1
	`
	entry := &models.WatchlistEntry{}
	err := DB.GetContext(ctx, entry, query, ticker)
	if err == sql.ErrNoRows {
		return nil, ErrWatchlistEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist entry %s: %w", ticker, err)
	}
	return entry, nil
}

// ListActiveWatchlist returns all active entries ordered by priority.
func ListActiveWatchlist(ctx context.Context) ([]models.WatchlistEntry, error) {
	query := `
		SELECT ticker, priority, active, last_refresh_at, next_refresh_at,
		       refresh_interval_seconds, created_at, updated_at
		FROM watchlist_entries
		WHERE active = TRUE
		ORDER BY priority ASC, ticker ASC
	`
	entries := []models.WatchlistEntry{}
	if err := DB.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	return entries, nil
}

// ListStaleWatchlist returns active entries due for refresh: next_refresh_at
// is null or in the past. Ordered by priority, then oldest due first (nulls
// first, since "never refreshed" should win), limited to limit.
func ListStaleWatchlist(ctx context.Context, limit int) ([]models.WatchlistEntry, error) {
	query := `
		SELECT ticker, priority, active, last_refresh_at, next_refresh_at,
		       refresh_interval_seconds, created_at, updated_at
		FROM watchlist_entries
		WHERE active = TRUE
		  AND (next_refresh_at IS NULL OR next_refresh_at <= NOW())
		ORDER BY priority ASC, next_refresh_at ASC NULLS FIRST
		LIMIT $1
	`
	entries := []models.WatchlistEntry{}
	if err := DB.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list stale watchlist entries: %w", err)
	}
	return entries, nil
}

// TouchWatchlistRefresh records a completed refresh and schedules the next.
func TouchWatchlistRefresh(ctx context.Context, ticker string, lastRefresh, nextRefresh time.Time) error {
	query := `
		UPDATE watchlist_entries
		SET last_refresh_at = $2, next_refresh_at = $3, updated_at = NOW()
		WHERE ticker = $1
	`
	result, err := DB.ExecContext(ctx, query, ticker, lastRefresh.UTC(), nextRefresh.UTC())
	if err != nil {
		return fmt.Errorf("failed to touch watchlist refresh for %s: %w", ticker, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrWatchlistEntryNotFound
	}
	return nil
}
