package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tenantauth/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `sid, COALESCE(user_id, ''), COALESCE(company_id, ''), source,
	ip_address, user_agent, mfa_verified, data,
	expires_at, absolute_expires_at, last_activity_at, created_at`

func scanSession(row interface{ Scan(...any) error }) (*domain.Session, error) {
	var s domain.Session
	var data []byte
	err := row.Scan(&s.SID, &s.UserID, &s.CompanyID, &s.Source,
		&s.IP, &s.UserAgent, &s.MFAVerified, &data,
		&s.ExpiresAt, &s.AbsoluteExpiresAt, &s.LastActivityAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("session repository: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.Data); err != nil {
			return nil, fmt.Errorf("session repository: decode data: %w", err)
		}
	}
	if s.Data == nil {
		s.Data = map[string]string{}
	}
	return &s, nil
}

func encodeData(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}

// GetBySID returns the session for sid, or nil if not found.
func (r *PostgresRepository) GetBySID(ctx context.Context, sid string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE sid = $1`, sid)
	return scanSession(row)
}

// Create persists the session.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	data, err := encodeData(s.Data)
	if err != nil {
		return fmt.Errorf("session repository: encode data: %w", err)
	}
	uid := sql.NullString{String: s.UserID, Valid: s.UserID != ""}
	cid := sql.NullString{String: s.CompanyID, Valid: s.CompanyID != ""}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (sid, user_id, company_id, source, ip_address, user_agent,
			mfa_verified, data, expires_at, absolute_expires_at, last_activity_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.SID, uid, cid, s.Source, s.IP, s.UserAgent,
		s.MFAVerified, data, s.ExpiresAt, s.AbsoluteExpiresAt, s.LastActivityAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("session repository: %w", err)
	}
	return nil
}

// Update writes the full session row. Missing rows are a no-op.
func (r *PostgresRepository) Update(ctx context.Context, s *domain.Session) error {
	data, err := encodeData(s.Data)
	if err != nil {
		return fmt.Errorf("session repository: encode data: %w", err)
	}
	uid := sql.NullString{String: s.UserID, Valid: s.UserID != ""}
	cid := sql.NullString{String: s.CompanyID, Valid: s.CompanyID != ""}
	_, err = r.db.ExecContext(ctx, `
		UPDATE sessions SET user_id = $2, company_id = $3, source = $4, ip_address = $5,
			user_agent = $6, mfa_verified = $7, data = $8, expires_at = $9,
			absolute_expires_at = $10, last_activity_at = $11
		WHERE sid = $1`,
		s.SID, uid, cid, s.Source, s.IP,
		s.UserAgent, s.MFAVerified, data, s.ExpiresAt,
		s.AbsoluteExpiresAt, s.LastActivityAt)
	if err != nil {
		return fmt.Errorf("session repository: %w", err)
	}
	return nil
}

// Delete removes the session. Deleting an absent session is a no-op.
func (r *PostgresRepository) Delete(ctx context.Context, sid string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE sid = $1`, sid); err != nil {
		return fmt.Errorf("session repository: %w", err)
	}
	return nil
}

// DeleteByUserAndSource removes the user's session for source, keeping keepSID.
func (r *PostgresRepository) DeleteByUserAndSource(ctx context.Context, userID, source, keepSID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE user_id = $1 AND source = $2 AND sid <> $3`,
		userID, source, keepSID)
	if err != nil {
		return fmt.Errorf("session repository: %w", err)
	}
	return nil
}

// ListByUser returns the user's sessions ordered oldest-created first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("session repository: %w", err)
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteExpired bulk-deletes sessions past either expiry. Returns rows removed.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE expires_at < $1 OR absolute_expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("session repository: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
