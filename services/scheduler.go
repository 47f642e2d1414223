package services

import (
	"context"
	"log"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"papertrade-api/database"
)

// SchedulerConfig holds the background job settings.
type SchedulerConfig struct {
	Enabled           bool
	RefreshCron       string
	SnapshotCron      string
	Timezone          string
	BatchSize         int
	BatchDelay        time.Duration
	MaxAge            time.Duration
	ActiveStockWindow int // days of transactions considered "active"
}

// SchedulerConfigFromEnv builds the config from environment variables with
// the documented defaults.
func SchedulerConfigFromEnv() SchedulerConfig {
	return SchedulerConfig{
		Enabled:           envOrBool("SCHEDULER_ENABLED", true),
		RefreshCron:       envOrStr("REFRESH_CRON", "0 0 * * *"),
		SnapshotCron:      envOrStr("SNAPSHOT_CRON", "0 0 * * *"),
		Timezone:          envOrStr("SCHEDULER_TIMEZONE", "UTC"),
		BatchSize:         envOrInt("REFRESH_BATCH_SIZE", 5),
		BatchDelay:        time.Duration(envOrInt("REFRESH_BATCH_DELAY_SECONDS", 60)) * time.Second,
		MaxAge:            time.Duration(envOrInt("REFRESH_MAX_AGE_HOURS", 24)) * time.Hour,
		ActiveStockWindow: envOrInt("ACTIVE_STOCK_WINDOW_DAYS", 30),
	}
}

// Scheduler runs the two background jobs: the active-ticker price refresh
// and the daily portfolio snapshot. Each job is wrapped so a run that is
// still in flight is skipped rather than doubled. Lifecycle is
// stopped → running → stopped; Start is idempotent.
type Scheduler struct {
	config     SchedulerConfig
	marketData *MarketDataService
	watchlist  *WatchlistService
	snapshots  *SnapshotService

	mu      sync.Mutex
	cron    *cron.Cron
	running bool

	// sleep is swapped in tests so batch pacing doesn't stall the suite.
	sleep func(time.Duration)
}

// NewScheduler wires the scheduler.
func NewScheduler(config SchedulerConfig, marketData *MarketDataService, watchlist *WatchlistService, snapshots *SnapshotService) *Scheduler {
	return &Scheduler{
		config:     config,
		marketData: marketData,
		watchlist:  watchlist,
		snapshots:  snapshots,
		sleep:      time.Sleep,
	}
}

// Start registers the cron jobs and begins scheduling. Calling Start on a
// running scheduler logs a warning and does nothing.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		log.Println("Warning: scheduler already running")
		return nil
	}
	if !s.config.Enabled {
		log.Println("Scheduler is disabled in configuration")
		return nil
	}

	loc, err := time.LoadLocation(s.config.Timezone)
	if err != nil {
		return err
	}

	// SkipIfStillRunning guarantees at most one instance of each job.
	wrapper := cron.SkipIfStillRunning(cron.DefaultLogger)
	c := cron.New(cron.WithLocation(loc), cron.WithChain(wrapper))

	if _, err := c.AddFunc(s.config.RefreshCron, func() { s.runRefreshJob(context.Background()) }); err != nil {
		return err
	}
	if _, err := c.AddFunc(s.config.SnapshotCron, func() { s.runSnapshotJob(context.Background()) }); err != nil {
		return err
	}

	c.Start()
	s.cron = c
	s.running = true
	log.Printf("Scheduler started (refresh: %q, snapshot: %q, tz: %s)",
		s.config.RefreshCron, s.config.SnapshotCron, s.config.Timezone)
	return nil
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron = nil
	s.running = false
	log.Println("Scheduler stopped")
}

// IsRunning reports the lifecycle state.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// runRefreshJob refreshes prices for every active ticker: the watchlist
// union tickers traded in the last N days, deduplicated, fetched in paced
// batches so a big list doesn't drain the minute bucket at once.
func (s *Scheduler) runRefreshJob(ctx context.Context) {
	log.Println("Starting price refresh job")
	start := time.Now()
	successCount, errorCount := 0, 0

	defer func() {
		log.Printf("Price refresh job completed in %.1fs: %d succeeded, %d failed",
			time.Since(start).Seconds(), successCount, errorCount)
	}()

	entries, err := s.watchlist.ActiveAll(ctx)
	if err != nil {
		log.Printf("Price refresh job failed: %v", err)
		NotifyJobFailure(ctx, "price_refresh", err)
		return
	}
	watched := make(map[string]bool, len(entries))
	tickers := make([]string, 0, len(entries))
	for _, e := range entries {
		watched[e.Ticker] = true
		tickers = append(tickers, e.Ticker)
	}

	traded, err := database.DistinctTickersSince(ctx, s.config.ActiveStockWindow)
	if err != nil {
		log.Printf("Warning: failed to load recently traded tickers: %v", err)
	}
	for _, t := range traded {
		if !watched[t] {
			tickers = append(tickers, t)
		}
	}
	sort.Strings(tickers)

	log.Printf("Found %d active tickers to refresh (watchlist: %d, transactions: %d)",
		len(tickers), len(entries), len(traded))
	if len(tickers) == 0 {
		return
	}

	batchSize := s.config.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}

	for i := 0; i < len(tickers); i += batchSize {
		endIdx := i + batchSize
		if endIdx > len(tickers) {
			endIdx = len(tickers)
		}
		batch := tickers[i:endIdx]
		log.Printf("Processing refresh batch %d (%d tickers)", i/batchSize+1, len(batch))

		for _, ticker := range batch {
			if _, err := s.marketData.GetCurrentPrice(ctx, ticker); err != nil {
				log.Printf("Failed to refresh %s: %v", ticker, err)
				errorCount++
				continue
			}
			successCount++

			if watched[ticker] {
				now := time.Now().UTC()
				if err := s.watchlist.TouchRefresh(ctx, ticker, now, now.Add(s.config.MaxAge)); err != nil {
					log.Printf("Warning: failed to update refresh metadata for %s: %v", ticker, err)
				}
			}
		}

		if endIdx < len(tickers) {
			s.sleep(s.config.BatchDelay)
		}
	}
}

// runSnapshotJob snapshots every portfolio for today.
func (s *Scheduler) runSnapshotJob(ctx context.Context) {
	log.Println("Starting daily snapshot job")
	start := time.Now()

	result, err := s.snapshots.RunDailySnapshot(ctx, time.Time{})
	if err != nil {
		log.Printf("Daily snapshot job failed: %v", err)
		NotifyJobFailure(ctx, "daily_snapshot", err)
		return
	}
	log.Printf("Daily snapshot job completed in %.1fs: %d/%d succeeded, %d failed",
		time.Since(start).Seconds(), result.Succeeded, result.Processed, result.Failed)
}

// TriggerRefresh runs the refresh job once, outside the cron schedule.
// Used by the admin endpoint.
func (s *Scheduler) TriggerRefresh(ctx context.Context) {
	s.runRefreshJob(ctx)
}

// Status describes the scheduler for the admin surface.
func (s *Scheduler) Status() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]interface{}{
		"running":      s.running,
		"enabled":      s.config.Enabled,
		"refreshCron":  s.config.RefreshCron,
		"snapshotCron": s.config.SnapshotCron,
		"timezone":     s.config.Timezone,
		"batchSize":    s.config.BatchSize,
	}
}

func envOrStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
