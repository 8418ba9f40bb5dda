package repository

import (
	"context"

	"tenantauth/backend/internal/loginattempt/domain"
)

// Repository defines append-only persistence for login attempts.
type Repository interface {
	Create(ctx context.Context, a *domain.LoginAttempt) error
	ListByEmail(ctx context.Context, email string, limit int32) ([]*domain.LoginAttempt, error)
}
