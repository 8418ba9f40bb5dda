package repository

import (
	"context"

	"tenantauth/backend/internal/audit/domain"
)

// Repository defines persistence for audit log entries. Entries are
// append-only; there is no update or delete.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	ListByCompany(ctx context.Context, companyID string, limit, offset int32) ([]*domain.AuditLog, error)
}
