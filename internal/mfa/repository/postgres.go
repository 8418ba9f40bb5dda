package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tenantauth/backend/internal/mfa/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a recovery-code repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func insertCodes(ctx context.Context, tx *sql.Tx, userID string, codeHashes []string, at time.Time) error {
	for _, hash := range codeHashes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO mfa_recovery_codes (id, user_id, code_hash, created_at)
			VALUES ($1, $2, $3, $4)`,
			uuid.New().String(), userID, hash, at)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) EnableMFA(ctx context.Context, userID string, codeHashes []string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mfa repository: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mfa_recovery_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("mfa repository: %w", err)
	}
	if err := insertCodes(ctx, tx, userID, codeHashes, at); err != nil {
		return fmt.Errorf("mfa repository: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET mfa_enabled = TRUE, mfa_enabled_at = $2, updated_at = $2
		WHERE id = $1`, userID, at); err != nil {
		return fmt.Errorf("mfa repository: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mfa repository: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DisableMFA(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mfa repository: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mfa_recovery_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("mfa repository: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET mfa_enabled = FALSE, mfa_enabled_at = NULL, updated_at = NOW()
		WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("mfa repository: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mfa repository: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ReplaceCodes(ctx context.Context, userID string, codeHashes []string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mfa repository: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mfa_recovery_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("mfa repository: %w", err)
	}
	if err := insertCodes(ctx, tx, userID, codeHashes, at); err != nil {
		return fmt.Errorf("mfa repository: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mfa repository: %w", err)
	}
	return nil
}

// ListUnused returns the user's unredeemed codes, oldest first.
func (r *PostgresRepository) ListUnused(ctx context.Context, userID string) ([]*domain.RecoveryCode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, code_hash, used_at, created_at
		FROM mfa_recovery_codes
		WHERE user_id = $1 AND used_at IS NULL
		ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("mfa repository: %w", err)
	}
	defer rows.Close()

	var out []*domain.RecoveryCode
	for rows.Next() {
		var c domain.RecoveryCode
		if err := rows.Scan(&c.ID, &c.UserID, &c.CodeHash, &c.UsedAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("mfa repository: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mfa repository: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE mfa_recovery_codes SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("mfa repository: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountUnused(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM mfa_recovery_codes WHERE user_id = $1 AND used_at IS NULL`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("mfa repository: %w", err)
	}
	return n, nil
}
