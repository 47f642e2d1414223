package services

import (
	"context"
	"time"

	"papertrade-api/database"
	"papertrade-api/models"
)

// PriceStore is the warm tier: durable per-ticker history. The concrete
// implementation is Postgres; tests use an in-process fake.
type PriceStore interface {
	UpsertPrice(ctx context.Context, p *models.PricePoint) error
	GetLatestPrice(ctx context.Context, ticker string, maxAge time.Duration) (*models.PricePoint, error)
	GetPriceAt(ctx context.Context, ticker string, at time.Time) (*models.PricePoint, error)
	GetPriceHistory(ctx context.Context, ticker string, start, end time.Time, interval string) ([]models.PricePoint, error)
	GetAllTickers(ctx context.Context) ([]string, error)
}

// QuoteProvider is the upstream market-data API. The concrete
// implementation is the Alpha Vantage client.
type QuoteProvider interface {
	Quote(ctx context.Context, ticker string) (*models.PricePoint, error)
	DailyHistory(ctx context.Context, ticker string) ([]models.PricePoint, error)
}

// DatabasePriceStore backs PriceStore with the stock_prices table.
type DatabasePriceStore struct{}

// NewDatabasePriceStore returns the Postgres-backed warm store.
func NewDatabasePriceStore() *DatabasePriceStore {
	return &DatabasePriceStore{}
}

func (s *DatabasePriceStore) UpsertPrice(ctx context.Context, p *models.PricePoint) error {
	return database.UpsertPrice(ctx, p)
}

func (s *DatabasePriceStore) GetLatestPrice(ctx context.Context, ticker string, maxAge time.Duration) (*models.PricePoint, error) {
	return database.GetLatestPrice(ctx, ticker, maxAge)
}

func (s *DatabasePriceStore) GetPriceAt(ctx context.Context, ticker string, at time.Time) (*models.PricePoint, error) {
	return database.GetPriceAt(ctx, ticker, at)
}

func (s *DatabasePriceStore) GetPriceHistory(ctx context.Context, ticker string, start, end time.Time, interval string) ([]models.PricePoint, error) {
	return database.GetPriceHistory(ctx, ticker, start, end, interval)
}

func (s *DatabasePriceStore) GetAllTickers(ctx context.Context) ([]string, error) {
	return database.GetAllTickers(ctx)
}
