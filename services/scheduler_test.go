package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade-api/database"
)

func testSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:           true,
		RefreshCron:       "0 0 * * *",
		SnapshotCron:      "0 0 * * *",
		Timezone:          "UTC",
		BatchSize:         5,
		BatchDelay:        time.Millisecond,
		MaxAge:            24 * time.Hour,
		ActiveStockWindow: 30,
	}
}

func setupMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	origDB := database.DB
	database.DB = sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() {
		database.DB = origDB
		db.Close()
	})
	return mock
}

func TestSchedulerStartStopLifecycle(t *testing.T) {
	now := time.Date(2026, 1, 12, 15, 0, 0, 0, time.UTC)
	fx, _ := newServiceFixture(t, now)

	sched := NewScheduler(testSchedulerConfig(),
		fx.svc, NewWatchlistService(), NewSnapshotService(NewPortfolioCalculator(fx.svc)))

	assert.False(t, sched.IsRunning())
	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())

	// Idempotent: second Start is a warning, not an error.
	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())

	sched.Stop()
	assert.False(t, sched.IsRunning())

	// Stop on a stopped scheduler is a no-op.
	sched.Stop()
	assert.False(t, sched.IsRunning())
}

func TestSchedulerDisabledNeverRuns(t *testing.T) {
	now := time.Date(2026, 1, 12, 15, 0, 0, 0, time.UTC)
	fx, _ := newServiceFixture(t, now)

	config := testSchedulerConfig()
	config.Enabled = false
	sched := NewScheduler(config,
		fx.svc, NewWatchlistService(), NewSnapshotService(NewPortfolioCalculator(fx.svc)))

	require.NoError(t, sched.Start())
	assert.False(t, sched.IsRunning())
}

func TestSchedulerInvalidCronRejected(t *testing.T) {
	now := time.Date(2026, 1, 12, 15, 0, 0, 0, time.UTC)
	fx, _ := newServiceFixture(t, now)

	config := testSchedulerConfig()
	config.RefreshCron = "not a cron expression"
	sched := NewScheduler(config,
		fx.svc, NewWatchlistService(), NewSnapshotService(NewPortfolioCalculator(fx.svc)))

	assert.Error(t, sched.Start())
	assert.False(t, sched.IsRunning())
}

// The refresh job unions watchlist and recently traded tickers, fetches
// each one, and touches refresh metadata only for watchlist members.
// Prices come from a pre-warmed hot cache, so no upstream calls happen.
func TestSchedulerRefreshJob(t *testing.T) {
	now := time.Now().UTC()
	fx, _ := newServiceFixture(t, now)
	mock := setupMockDB(t)

	// Hot cache has fresh entries for every ticker involved.
	for _, ticker := range []string{"AAPL", "MSFT", "TSLA"} {
		require.NoError(t, fx.cache.PutLatest(context.Background(),
			testPricePoint(ticker, now.Add(-10*time.Minute), "150.00"), time.Hour))
	}

	watchCols := []string{"ticker", "priority", "active", "last_refresh_at", "next_refresh_at",
		"refresh_interval_seconds", "created_at", "updated_at"}
	mock.ExpectQuery(`SELECT ticker, priority, active`).
		WillReturnRows(sqlmock.NewRows(watchCols).
			AddRow("AAPL", 1, true, nil, nil, 86400, now, now).
			AddRow("MSFT", 2, true, nil, nil, 86400, now, now))

	// TSLA traded recently but is not on the watchlist; AAPL appears in
	// both and must be deduplicated.
	mock.ExpectQuery(`SELECT DISTINCT ticker`).
		WithArgs(30).
		WillReturnRows(sqlmock.NewRows([]string{"ticker"}).AddRow("AAPL").AddRow("TSLA"))

	// Only the two watchlist members get refresh metadata updates.
	mock.ExpectExec(`UPDATE watchlist_entries`).
		WithArgs("AAPL", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE watchlist_entries`).
		WithArgs("MSFT", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sched := NewScheduler(testSchedulerConfig(),
		fx.svc, NewWatchlistService(), NewSnapshotService(NewPortfolioCalculator(fx.svc)))
	sched.sleep = func(time.Duration) {}

	sched.TriggerRefresh(context.Background())

	assert.Equal(t, 0, fx.provider.quoteCalls, "served from hot cache")
	assert.NoError(t, mock.ExpectationsWereMet())
}
