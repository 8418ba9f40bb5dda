package repository

import (
	"context"

	"tenantauth/backend/internal/company/domain"
)

// Repository defines persistence for companies.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Company, error)
	Create(ctx context.Context, c *domain.Company) error
}
