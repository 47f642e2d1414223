package services

import (
	"context"
	"log"
	"time"

	"papertrade-api/models"
)

// Freshness thresholds and write-through TTLs for the price tiers.
const (
	hotFreshAge  = 1 * time.Hour // hot entry younger than this is served as-is
	warmFreshAge = 4 * time.Hour // warm row younger than this promotes to hot

	hotTTL          = 1 * time.Hour // write-through TTL for live data
	marketClosedTTL = 2 * time.Hour // prices cannot move until next open
)

// MarketDataService is the tiered read-through adapter in front of the
// quote provider: Redis hot cache, then the Postgres warm store, then the
// upstream, gated by the calendar and the rate limiter. When the upstream
// is unreachable or out of quota it degrades to stale cached data instead
// of failing.
type MarketDataService struct {
	cache    *PriceCache
	store    PriceStore
	limiter  *RateLimiter
	provider QuoteProvider
	calendar *MarketCalendar

	// now is swapped in tests to pin the clock.
	now func() time.Time
}

// NewMarketDataService wires the tiers together.
func NewMarketDataService(cache *PriceCache, store PriceStore, limiter *RateLimiter, provider QuoteProvider) *MarketDataService {
	return &MarketDataService{
		cache:    cache,
		store:    store,
		limiter:  limiter,
		provider: provider,
		calendar: NewMarketCalendar(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetCurrentPrice returns the freshest available price for a ticker.
//
// Tier order: fresh hot entry; fresh warm row (promoted to hot); the
// market-closed fallback when now is past the last close's date; then the
// upstream behind the rate limiter, with stale hot data as the fallback at
// every failure point.
func (s *MarketDataService) GetCurrentPrice(ctx context.Context, ticker string) (*models.PricePoint, error) {
	now := s.now()

	cached, err := s.cache.GetLatest(ctx, ticker)
	if err != nil {
		log.Printf("Warning: price cache read failed for %s: %v", ticker, err)
	}
	if cached != nil && !cached.IsStale(now, hotFreshAge) {
		return cached.WithSource(models.SourceCache), nil
	}

	dbPrice, err := s.store.GetLatestPrice(ctx, ticker, warmFreshAge)
	if err != nil {
		log.Printf("Warning: warm store read failed for %s: %v", ticker, err)
	}
	if dbPrice != nil {
		if err := s.cache.PutLatest(ctx, dbPrice, hotTTL); err != nil {
			log.Printf("Warning: failed to promote %s to hot cache: %v", ticker, err)
		}
		return dbPrice.WithSource(models.SourceDatabase), nil
	}

	// Weekend, holiday, or pre-open: the last close is final, so serve it
	// from the warm store without touching quota.
	lastClose := s.calendar.LastTradingDayAt(now)
	if beforeDate(lastClose, now) {
		closePrice, err := s.store.GetPriceAt(ctx, ticker, lastClose)
		if err != nil {
			log.Printf("Warning: last-close lookup failed for %s: %v", ticker, err)
		}
		if closePrice != nil {
			if err := s.cache.PutLatest(ctx, closePrice, marketClosedTTL); err != nil {
				log.Printf("Warning: failed to cache last close for %s: %v", ticker, err)
			}
			return closePrice.WithSource(models.SourceDatabase), nil
		}
		if cached != nil {
			return cached.WithSource(models.SourceCache), nil
		}
		return nil, &models.TickerNotFoundError{
			Ticker: ticker,
			Reason: "markets are closed and no cached close is available",
		}
	}

	canProceed, err := s.limiter.CanProceed(ctx)
	if err != nil {
		log.Printf("Warning: rate limiter probe failed: %v", err)
	}
	if !canProceed {
		if cached != nil {
			return cached.WithSource(models.SourceCache), nil
		}
		wait, _ := s.limiter.WaitTime(ctx)
		return nil, &models.MarketDataUnavailableError{
			Reason:     "rate limit exceeded and no cached data available",
			RetryAfter: wait,
		}
	}

	consumed, err := s.limiter.Consume(ctx)
	if err != nil {
		log.Printf("Warning: rate limiter consume failed: %v", err)
	}
	if !consumed {
		// Lost the race for the last token.
		if cached != nil {
			return cached.WithSource(models.SourceCache), nil
		}
		return nil, &models.MarketDataUnavailableError{Reason: "rate limit exceeded"}
	}

	price, err := s.provider.Quote(ctx, ticker)
	if err != nil {
		if cached != nil {
			return cached.WithSource(models.SourceCache), nil
		}
		return nil, err
	}

	if err := s.cache.PutLatest(ctx, price, hotTTL); err != nil {
		log.Printf("Warning: failed to cache price for %s: %v", ticker, err)
	}
	if err := s.store.UpsertPrice(ctx, price); err != nil {
		log.Printf("Warning: failed to persist price for %s: %v", ticker, err)
	}
	return price, nil
}

// GetBatchPrices resolves many tickers through the same tiers. It never
// returns an error for individual tickers: absence from the result map is
// the failure signal, and per-ticker errors are logged.
func (s *MarketDataService) GetBatchPrices(ctx context.Context, tickers []string) (map[string]*models.PricePoint, error) {
	now := s.now()
	result := make(map[string]*models.PricePoint, len(tickers))
	if len(tickers) == 0 {
		return result, nil
	}

	// Phase 1: hot cache.
	remaining := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		cached, err := s.cache.GetLatest(ctx, ticker)
		if err != nil {
			log.Printf("Warning: price cache read failed for %s: %v", ticker, err)
		}
		if cached != nil && !cached.IsStale(now, hotFreshAge) {
			result[ticker] = cached.WithSource(models.SourceCache)
			continue
		}
		remaining = append(remaining, ticker)
	}

	// Phase 2: warm store, promoting hits to hot.
	stillRemaining := make([]string, 0, len(remaining))
	for _, ticker := range remaining {
		dbPrice, err := s.store.GetLatestPrice(ctx, ticker, warmFreshAge)
		if err != nil {
			log.Printf("Warning: warm store read failed for %s: %v", ticker, err)
		}
		if dbPrice != nil {
			if err := s.cache.PutLatest(ctx, dbPrice, hotTTL); err != nil {
				log.Printf("Warning: failed to promote %s to hot cache: %v", ticker, err)
			}
			result[ticker] = dbPrice.WithSource(models.SourceDatabase)
			continue
		}
		stillRemaining = append(stillRemaining, ticker)
	}

	if len(stillRemaining) == 0 {
		return result, nil
	}

	// Phase 3: markets closed routes every leftover through the last
	// close; markets open fetches them one at a time behind the limiter.
	lastClose := s.calendar.LastTradingDayAt(now)
	marketsClosed := beforeDate(lastClose, now)

	for _, ticker := range stillRemaining {
		if marketsClosed {
			s.resolveClosedMarket(ctx, ticker, lastClose, result)
			continue
		}
		s.resolveViaUpstream(ctx, ticker, result)
	}
	return result, nil
}

func (s *MarketDataService) resolveClosedMarket(ctx context.Context, ticker string, lastClose time.Time, result map[string]*models.PricePoint) {
	closePrice, err := s.store.GetPriceAt(ctx, ticker, lastClose)
	if err != nil {
		log.Printf("Warning: last-close lookup failed for %s: %v", ticker, err)
	}
	if closePrice != nil {
		if err := s.cache.PutLatest(ctx, closePrice, marketClosedTTL); err != nil {
			log.Printf("Warning: failed to cache last close for %s: %v", ticker, err)
		}
		result[ticker] = closePrice.WithSource(models.SourceDatabase)
		return
	}
	if cached, _ := s.cache.GetLatest(ctx, ticker); cached != nil {
		result[ticker] = cached.WithSource(models.SourceCache)
		return
	}
	log.Printf("Warning: no close available for %s while markets closed", ticker)
}

func (s *MarketDataService) resolveViaUpstream(ctx context.Context, ticker string, result map[string]*models.PricePoint) {
	serveStale := func(reason string) {
		if cached, _ := s.cache.GetLatest(ctx, ticker); cached != nil {
			result[ticker] = cached.WithSource(models.SourceCache)
			return
		}
		log.Printf("Warning: skipping %s: %s", ticker, reason)
	}

	canProceed, err := s.limiter.CanProceed(ctx)
	if err != nil {
		log.Printf("Warning: rate limiter probe failed: %v", err)
	}
	if !canProceed {
		serveStale("rate limit reached")
		return
	}
	consumed, err := s.limiter.Consume(ctx)
	if err != nil {
		log.Printf("Warning: rate limiter consume failed: %v", err)
	}
	if !consumed {
		serveStale("rate limit token lost")
		return
	}

	price, err := s.provider.Quote(ctx, ticker)
	if err != nil {
		serveStale(err.Error())
		return
	}
	if err := s.cache.PutLatest(ctx, price, hotTTL); err != nil {
		log.Printf("Warning: failed to cache price for %s: %v", ticker, err)
	}
	if err := s.store.UpsertPrice(ctx, price); err != nil {
		log.Printf("Warning: failed to persist price for %s: %v", ticker, err)
	}
	result[ticker] = price
}

// GetPriceAt returns the most recent stored price at or before the
// instant. Never hits the upstream; arbitrary past instants are a warm-
// store question.
func (s *MarketDataService) GetPriceAt(ctx context.Context, ticker string, at time.Time) (*models.PricePoint, error) {
	if at.After(s.now()) {
		return nil, &models.MarketDataUnavailableError{
			Reason: "cannot get price for a future timestamp",
		}
	}
	price, err := s.store.GetPriceAt(ctx, ticker, at)
	if err != nil {
		return nil, &models.MarketDataUnavailableError{Reason: err.Error()}
	}
	if price == nil {
		return nil, &models.MarketDataUnavailableError{
			Reason: "no price data available at requested time",
		}
	}
	return price, nil
}

// GetPriceHistory returns points in [start, end]. Daily ranges are served
// from cache or the warm store when the completeness oracle accepts them,
// otherwise refreshed from the upstream. "No data in range" is an empty
// list, not an error.
func (s *MarketDataService) GetPriceHistory(ctx context.Context, ticker string, start, end time.Time, interval string) ([]models.PricePoint, error) {
	if end.Before(start) {
		return nil, &models.ClientInputError{Reason: "end date must not be before start date"}
	}
	if !models.IsValidInterval(interval) {
		return nil, &models.ClientInputError{Reason: "invalid interval: " + interval}
	}

	// Hot tier first: an exact or broader cached range answers without
	// touching Postgres or quota.
	if cached, err := s.cache.GetHistory(ctx, ticker, start, end, interval); err != nil {
		log.Printf("Warning: history cache read failed for %s: %v", ticker, err)
	} else if len(cached) > 0 {
		return cached, nil
	}

	history, err := s.store.GetPriceHistory(ctx, ticker, start, end, interval)
	if err != nil {
		return nil, &models.MarketDataUnavailableError{Reason: err.Error()}
	}

	if interval != models.Interval1Day {
		// Only daily data is ever fetched upstream.
		return history, nil
	}

	if s.isCacheComplete(history, start, end) {
		if err := s.cache.PutHistory(ctx, ticker, start, end, interval, history, hotTTL); err != nil {
			log.Printf("Warning: failed to cache history for %s: %v", ticker, err)
		}
		return history, nil
	}

	refreshed, ok := s.refreshDailyHistory(ctx, ticker)
	if !ok {
		// Upstream refresh unavailable; serve what the warm store had.
		return history, nil
	}
	filtered := filterToRange(refreshed, start.UTC(), end.UTC())
	if len(filtered) > 0 {
		if err := s.cache.PutHistory(ctx, ticker, start, end, interval, filtered, hotTTL); err != nil {
			log.Printf("Warning: failed to cache history for %s: %v", ticker, err)
		}
	}
	return filtered, nil
}

// refreshDailyHistory fetches the daily series behind the rate limiter and
// persists every returned point. Returns ok=false when quota or the
// upstream denies the refresh.
func (s *MarketDataService) refreshDailyHistory(ctx context.Context, ticker string) ([]models.PricePoint, bool) {
	canProceed, err := s.limiter.CanProceed(ctx)
	if err != nil {
		log.Printf("Warning: rate limiter probe failed: %v", err)
	}
	if !canProceed {
		log.Printf("Warning: rate limit exceeded, cannot refresh history for %s", ticker)
		return nil, false
	}
	consumed, err := s.limiter.Consume(ctx)
	if err != nil {
		log.Printf("Warning: rate limiter consume failed: %v", err)
	}
	if !consumed {
		return nil, false
	}

	points, err := s.provider.DailyHistory(ctx, ticker)
	if err != nil {
		log.Printf("Warning: daily history fetch failed for %s: %v", ticker, err)
		return nil, false
	}
	for i := range points {
		if err := s.store.UpsertPrice(ctx, &points[i]); err != nil {
			log.Printf("Warning: failed to persist history point for %s: %v", ticker, err)
		}
	}
	return points, true
}

// isCacheComplete is the completeness oracle for daily ranges: boundary
// coverage with one day of tolerance on each side (the end boundary is
// clamped to the last trading day so an unfinished day is never required),
// and for short ranges a 70% density check against the 5/7 trading-day
// ratio.
func (s *MarketDataService) isCacheComplete(cached []models.PricePoint, start, end time.Time) bool {
	if len(cached) == 0 {
		return false
	}

	firstCached := cached[0].Timestamp.UTC()
	lastCached := cached[len(cached)-1].Timestamp.UTC()

	if firstCached.After(start.Add(24 * time.Hour)) {
		return false
	}

	effectiveEnd := end
	if lastTrading := s.calendar.LastTradingDayAt(s.now()); lastTrading.Before(effectiveEnd) {
		effectiveEnd = lastTrading
	}
	if lastCached.Before(effectiveEnd.Add(-24 * time.Hour)) {
		return false
	}

	daysRequested := int(end.Sub(start).Hours() / 24)
	if daysRequested <= 30 {
		expectedTradingDays := float64(daysRequested) * 5.0 / 7.0
		minRequired := int(expectedTradingDays * 0.7)
		if len(cached) < minRequired {
			return false
		}
	}
	return true
}

// GetSupportedTickers lists every ticker the warm store knows about.
func (s *MarketDataService) GetSupportedTickers(ctx context.Context) ([]string, error) {
	tickers, err := s.store.GetAllTickers(ctx)
	if err != nil {
		return nil, &models.MarketDataUnavailableError{Reason: err.Error()}
	}
	return tickers, nil
}

// RemainingQuota exposes the limiter counters for the admin surface.
func (s *MarketDataService) RemainingQuota(ctx context.Context) (minute, day int, err error) {
	return s.limiter.Remaining(ctx)
}

// beforeDate reports whether a's calendar date is strictly before b's.
func beforeDate(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
