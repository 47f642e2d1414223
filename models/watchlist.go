package models

import "time"

// WatchlistEntry tracks one ticker on the refresh watchlist. Removal marks
// the entry inactive rather than deleting it, so a later re-add restores
// the best (lowest) priority seen so far.
type WatchlistEntry struct {
	Ticker          string     `json:"ticker" db:"ticker"`
	Priority        int        `json:"priority" db:"priority"`
	Active          bool       `json:"active" db:"active"`
	LastRefreshAt   *time.Time `json:"lastRefreshAt,omitempty" db:"last_refresh_at"`
	NextRefreshAt   *time.Time `json:"nextRefreshAt,omitempty" db:"next_refresh_at"`
	RefreshInterval int        `json:"refreshIntervalSeconds" db:"refresh_interval_seconds"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`
}
