package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tenantauth/backend/internal/company/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a company repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the company for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	var c domain.Company
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, mfa_required, max_sessions_per_user, created_at, updated_at
		FROM companies WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.MFARequired, &c.MaxSessionsPerUser, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("company repository: %w", err)
	}
	return &c, nil
}

// Create persists the company. The company must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Company) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO companies (id, name, mfa_required, max_sessions_per_user, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Name, c.MFARequired, c.MaxSessionsPerUser, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("company repository: %w", err)
	}
	return nil
}
