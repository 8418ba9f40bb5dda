package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tenantauth/backend/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, company_id, email, COALESCE(name, ''), password_hash, status,
	failed_login_attempts, locked_until, needs_password_reset,
	mfa_enabled, mfa_enabled_at, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	var status string
	err := row.Scan(&u.ID, &u.CompanyID, &u.Email, &u.Name, &u.PasswordHash, &status,
		&u.FailedLoginAttempts, &u.LockedUntil, &u.NeedsPasswordReset,
		&u.MFAEnabled, &u.MFAEnabledAt, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("user repository: %w", err)
	}
	u.Status = domain.UserStatus(status)
	return &u, nil
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
// Matching ignores case so rows stored before emails were normalized still
// resolve.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return scanUser(row)
}

// Create persists the user. The user must have ID set; it is not assigned here.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	name := sql.NullString{String: u.Name, Valid: u.Name != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, company_id, email, name, password_hash, status,
			failed_login_attempts, locked_until, needs_password_reset,
			mfa_enabled, mfa_enabled_at, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		u.ID, u.CompanyID, u.Email, name, u.PasswordHash, string(u.Status),
		u.FailedLoginAttempts, u.LockedUntil, u.NeedsPasswordReset,
		u.MFAEnabled, u.MFAEnabledAt, u.LastLoginAt, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("user repository: %w", err)
	}
	return nil
}

// Update writes the full user row. Missing rows are a no-op, matching the
// read-modify-write discipline used by the services.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	name := sql.NullString{String: u.Name, Valid: u.Name != ""}
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET company_id = $2, email = $3, name = $4, password_hash = $5,
			status = $6, failed_login_attempts = $7, locked_until = $8,
			needs_password_reset = $9, mfa_enabled = $10, mfa_enabled_at = $11,
			last_login_at = $12, updated_at = $13
		WHERE id = $1`,
		u.ID, u.CompanyID, u.Email, name, u.PasswordHash,
		string(u.Status), u.FailedLoginAttempts, u.LockedUntil,
		u.NeedsPasswordReset, u.MFAEnabled, u.MFAEnabledAt,
		u.LastLoginAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("user repository: %w", err)
	}
	return nil
}

// PasswordHistory returns up to limit previous password hashes, newest first.
func (r *PostgresRepository) PasswordHistory(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT password_hash FROM password_history
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("user repository: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("user repository: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// AppendPasswordHistory records a superseded password hash.
func (r *PostgresRepository) AppendPasswordHistory(ctx context.Context, userID, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO password_history (id, user_id, password_hash, created_at)
		VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), userID, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("user repository: %w", err)
	}
	return nil
}
