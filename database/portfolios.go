package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"papertrade-api/models"
)

var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
)

// CreatePortfolio inserts a new portfolio and fills in the generated
// fields.
func CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO portfolios (id, user_id, name, base_currency)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := DB.QueryRowContext(ctx, query, p.ID, p.UserID, p.Name, p.BaseCurrency).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	return nil
}

// GetPortfolio fetches one portfolio by id.
func GetPortfolio(ctx context.Context, id uuid.UUID) (*models.Portfolio, error) {
	query := `
		SELECT id, user_id, name, base_currency, created_at, updated_at
		FROM portfolios
		WHERE id = $1
	`
	p := &models.Portfolio{}
	err := DB.GetContext(ctx, p, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrPortfolioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return p, nil
}

// ListPortfolios returns every portfolio, oldest first. Used by the
// snapshot job.
func ListPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	query := `
		SELECT id, user_id, name, base_currency, created_at, updated_at
		FROM portfolios
		ORDER BY created_at ASC
	`
	portfolios := []models.Portfolio{}
	if err := DB.SelectContext(ctx, &portfolios, query); err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	return portfolios, nil
}

// ListPortfoliosByUser returns one user's portfolios.
func ListPortfoliosByUser(ctx context.Context, userID uuid.UUID) ([]models.Portfolio, error) {
	query := `
		SELECT id, user_id, name, base_currency, created_at, updated_at
		FROM portfolios
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	portfolios := []models.Portfolio{}
	if err := DB.SelectContext(ctx, &portfolios, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list portfolios for user: %w", err)
	}
	return portfolios, nil
}
