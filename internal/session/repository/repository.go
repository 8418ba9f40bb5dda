package repository

import (
	"context"
	"time"

	"tenantauth/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Row absence is reported as
// (nil, nil); deletes of missing rows are no-ops.
type Repository interface {
	GetBySID(ctx context.Context, sid string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Update(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, sid string) error
	// DeleteByUserAndSource removes the user's existing session for the given
	// source, except the one identified by keepSID.
	DeleteByUserAndSource(ctx context.Context, userID, source, keepSID string) error
	// ListByUser returns the user's sessions ordered oldest-created first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// DeleteExpired bulk-deletes every session past either expiry at now.
	// Returns the number of rows removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
