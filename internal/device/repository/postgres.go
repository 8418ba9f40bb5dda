package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tenantauth/backend/internal/device/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a trusted-device repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const deviceColumns = `id, user_id, device_fingerprint, device_name, last_seen_at,
	last_ip_address, trust_expires_at, created_at`

func scanDevice(row interface{ Scan(...any) error }) (*domain.TrustedDevice, error) {
	var d domain.TrustedDevice
	err := row.Scan(&d.ID, &d.UserID, &d.DeviceFingerprint, &d.DeviceName, &d.LastSeenAt,
		&d.LastIPAddress, &d.TrustExpiresAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("device repository: %w", err)
	}
	return &d, nil
}

// GetByUserAndFingerprint returns the device for (userID, fingerprint), or
// nil if not found.
func (r *PostgresRepository) GetByUserAndFingerprint(ctx context.Context, userID, fingerprint string) (*domain.TrustedDevice, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM trusted_devices
		WHERE user_id = $1 AND device_fingerprint = $2`, userID, fingerprint)
	return scanDevice(row)
}

// GetByID returns the device for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.TrustedDevice, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM trusted_devices WHERE id = $1`, id)
	return scanDevice(row)
}

// ListByUser returns the user's trusted devices, most recently created first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.TrustedDevice, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM trusted_devices
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("device repository: %w", err)
	}
	defer rows.Close()

	var out []*domain.TrustedDevice
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("device repository: %w", err)
	}
	return out, nil
}

// Create persists the device. Re-trusting the same fingerprint replaces the
// existing row's name and expiry.
func (r *PostgresRepository) Create(ctx context.Context, d *domain.TrustedDevice) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trusted_devices (id, user_id, device_fingerprint, device_name,
			last_seen_at, last_ip_address, trust_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, device_fingerprint) DO UPDATE SET
			device_name = EXCLUDED.device_name,
			last_seen_at = EXCLUDED.last_seen_at,
			last_ip_address = EXCLUDED.last_ip_address,
			trust_expires_at = EXCLUDED.trust_expires_at`,
		d.ID, d.UserID, d.DeviceFingerprint, d.DeviceName,
		d.LastSeenAt, d.LastIPAddress, d.TrustExpiresAt, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("device repository: %w", err)
	}
	return nil
}

// UpdateLastSeen refreshes the device's activity stamp and source address only.
func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time, ip string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE trusted_devices SET last_seen_at = $2, last_ip_address = $3 WHERE id = $1`,
		id, at, ip)
	if err != nil {
		return fmt.Errorf("device repository: %w", err)
	}
	return nil
}

// Delete removes the device by id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM trusted_devices WHERE id = $1`, id); err != nil {
		return fmt.Errorf("device repository: %w", err)
	}
	return nil
}

// DeleteByUser removes every device belonging to userID.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM trusted_devices WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("device repository: %w", err)
	}
	return nil
}
