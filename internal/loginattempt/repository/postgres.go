package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tenantauth/backend/internal/loginattempt/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a login attempt repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the login attempt. The attempt must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.LoginAttempt) error {
	reason := sql.NullString{String: a.FailureReason, Valid: a.FailureReason != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_attempts (id, email, ip_address, user_agent, success, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Email, a.IP, a.UserAgent, a.Success, reason, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("login attempt repository: %w", err)
	}
	return nil
}

// ListByEmail returns the newest attempts for the email, newest first.
func (r *PostgresRepository) ListByEmail(ctx context.Context, email string, limit int32) ([]*domain.LoginAttempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, ip_address, user_agent, success, COALESCE(failure_reason, ''), created_at
		FROM login_attempts WHERE email = $1
		ORDER BY created_at DESC LIMIT $2`, email, limit)
	if err != nil {
		return nil, fmt.Errorf("login attempt repository: %w", err)
	}
	defer rows.Close()
	var out []*domain.LoginAttempt
	for rows.Next() {
		var a domain.LoginAttempt
		if err := rows.Scan(&a.ID, &a.Email, &a.IP, &a.UserAgent, &a.Success, &a.FailureReason, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("login attempt repository: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
