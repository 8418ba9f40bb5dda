package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tenantauth/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log entry. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	uid := sql.NullString{String: a.UserID, Valid: a.UserID != ""}
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, company_id, user_id, action, resource, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.CompanyID, uid, a.Action, a.Resource, a.IP, meta, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit repository: %w", err)
	}
	return nil
}

// ListByCompany returns audit logs for the company, newest first, paginated.
func (r *PostgresRepository) ListByCompany(ctx context.Context, companyID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, company_id, COALESCE(user_id, ''), action, resource, ip, COALESCE(metadata, ''), created_at
		FROM audit_logs WHERE company_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("audit repository: %w", err)
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.UserID, &a.Action, &a.Resource, &a.IP, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit repository: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
