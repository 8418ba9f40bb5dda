package repository

import (
	"context"

	"tenantauth/backend/internal/user/domain"
)

// Repository defines persistence for users. Row absence is reported as
// (nil, nil), never as an error.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	// PasswordHistory returns up to limit previous password hashes for the
	// user, newest first.
	PasswordHistory(ctx context.Context, userID string, limit int) ([]string, error)
	// AppendPasswordHistory records a superseded password hash.
	AppendPasswordHistory(ctx context.Context, userID, passwordHash string) error
}
