package repository

import (
	"context"
	"time"

	"tenantauth/backend/internal/device/domain"
)

// Repository defines persistence for trusted devices. Lookups are always
// scoped by user: a token hash alone never identifies a device.
type Repository interface {
	GetByUserAndFingerprint(ctx context.Context, userID, fingerprint string) (*domain.TrustedDevice, error)
	GetByID(ctx context.Context, id string) (*domain.TrustedDevice, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.TrustedDevice, error)
	Create(ctx context.Context, d *domain.TrustedDevice) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time, ip string) error
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}
