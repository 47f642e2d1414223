package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"papertrade-api/database"
	"papertrade-api/models"
)

// SnapshotService calculates and persists daily portfolio snapshots. Runs
// are idempotent: snapshots are upserted by (portfolio, date), so re-runs
// update in place.
type SnapshotService struct {
	calculator *PortfolioCalculator
	now        func() time.Time
}

// NewSnapshotService creates the snapshot job service.
func NewSnapshotService(calculator *PortfolioCalculator) *SnapshotService {
	return &SnapshotService{
		calculator: calculator,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RunDailySnapshot snapshots every portfolio for the given date (today
// when zero). Failures are isolated per portfolio: one bad portfolio never
// aborts the run, it just counts as failed.
func (s *SnapshotService) RunDailySnapshot(ctx context.Context, snapshotDate time.Time) (*models.SnapshotJobResult, error) {
	if snapshotDate.IsZero() {
		snapshotDate = s.now()
	}
	snapshotDate = snapshotDate.UTC().Truncate(24 * time.Hour)
	log.Printf("Starting daily snapshot for %s", snapshotDate.Format("2006-01-02"))

	portfolios, err := database.ListPortfolios(ctx)
	if err != nil {
		return nil, err
	}

	result := &models.SnapshotJobResult{}
	for i := range portfolios {
		result.Processed++
		if err := s.snapshotPortfolio(ctx, &portfolios[i], snapshotDate); err != nil {
			result.Failed++
			log.Printf("Failed to snapshot portfolio %s: %v", portfolios[i].ID, err)
			continue
		}
		result.Succeeded++
	}

	log.Printf("Daily snapshot complete: %d/%d succeeded", result.Succeeded, result.Processed)
	return result, nil
}

// BackfillSnapshots generates snapshots for one portfolio over an
// inclusive date range, one day at a time. Used for new portfolios and
// gap repair.
func (s *SnapshotService) BackfillSnapshots(ctx context.Context, portfolioID uuid.UUID, start, end time.Time) (*models.SnapshotJobResult, error) {
	portfolio, err := database.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	log.Printf("Backfilling snapshots for %s from %s to %s",
		portfolioID, start.Format("2006-01-02"), end.Format("2006-01-02"))

	result := &models.SnapshotJobResult{}
	for d := start.UTC().Truncate(24 * time.Hour); !d.After(end.UTC()); d = d.AddDate(0, 0, 1) {
		result.Processed++
		if err := s.snapshotPortfolio(ctx, portfolio, d); err != nil {
			result.Failed++
			log.Printf("Failed to backfill %s for %s: %v", d.Format("2006-01-02"), portfolioID, err)
			continue
		}
		result.Succeeded++
	}

	log.Printf("Backfill complete: %d/%d succeeded", result.Succeeded, result.Processed)
	return result, nil
}

func (s *SnapshotService) snapshotPortfolio(ctx context.Context, portfolio *models.Portfolio, date time.Time) error {
	balance, err := s.calculator.Balance(ctx, portfolio)
	if err != nil {
		return err
	}
	snapshot := &models.PortfolioSnapshot{
		PortfolioID:    portfolio.ID,
		SnapshotDate:   date,
		CashBalance:    balance.CashBalance,
		PositionsValue: balance.PositionsValue,
		TotalValue:     balance.TotalValue,
		Currency:       balance.Currency,
	}
	return database.UpsertSnapshot(ctx, snapshot)
}
