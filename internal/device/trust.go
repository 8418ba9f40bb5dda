package device

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tenantauth/backend/internal/audit"
	"tenantauth/backend/internal/device/domain"
	"tenantauth/backend/internal/device/repository"
	"tenantauth/backend/internal/security"
)

// DefaultTrustTTL is how long a device skips the MFA challenge after the
// user opts to trust it.
const DefaultTrustTTL = 30 * 24 * time.Hour

// VerifyResult reports whether a presented token grants an MFA bypass, and
// if not, why.
type VerifyResult struct {
	Trusted bool
	Reason  string
	Device  *domain.TrustedDevice
}

// Reasons a token fails verification. Only surfaced in logs, never to the
// client.
const (
	ReasonNotFound = "not_found"
	ReasonExpired  = "expired"
)

// TrustService mints, verifies, and revokes device-trust tokens. The raw
// token lives only in the client's cookie; the database holds its SHA-256.
type TrustService struct {
	repo  repository.Repository
	audit audit.AuditLogger
	ttl   time.Duration
	nowF  func() time.Time
}

// NewTrustService returns a TrustService with the given trust window.
// ttl <= 0 falls back to DefaultTrustTTL.
func NewTrustService(repo repository.Repository, auditLogger audit.AuditLogger, ttl time.Duration) *TrustService {
	if ttl <= 0 {
		ttl = DefaultTrustTTL
	}
	return &TrustService{repo: repo, audit: auditLogger, ttl: ttl, nowF: func() time.Time { return time.Now().UTC() }}
}

// Create trusts the current device for the user and returns the raw token
// to hand to the client. Only its hash is persisted.
func (s *TrustService) Create(ctx context.Context, userID, companyID, userAgent, ip string) (string, *domain.TrustedDevice, error) {
	token, err := security.NewDeviceToken()
	if err != nil {
		return "", nil, err
	}
	now := s.nowF()
	seen := now
	d := &domain.TrustedDevice{
		ID:                uuid.New().String(),
		UserID:            userID,
		DeviceFingerprint: security.HashDeviceToken(token),
		DeviceName:        NameFromUserAgent(userAgent),
		LastSeenAt:        &seen,
		LastIPAddress:     ip,
		TrustExpiresAt:    now.Add(s.ttl),
		CreatedAt:         now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return "", nil, err
	}
	s.audit.LogEvent(ctx, companyID, userID, audit.ActionDeviceTrusted, audit.ResourceDevice,
		`{"device_name":"`+d.DeviceName+`"}`)
	return token, d, nil
}

// Verify checks whether rawToken identifies a live trusted device for
// userID. Lookup is strictly (user, hash): another user's token never
// matches. A blank or unknown token is simply not trusted, never an error.
func (s *TrustService) Verify(ctx context.Context, userID, rawToken string) (*VerifyResult, error) {
	if rawToken == "" {
		return &VerifyResult{Reason: ReasonNotFound}, nil
	}
	d, err := s.repo.GetByUserAndFingerprint(ctx, userID, security.HashDeviceToken(rawToken))
	if err != nil {
		return nil, err
	}
	if d == nil {
		return &VerifyResult{Reason: ReasonNotFound}, nil
	}
	// Re-check the stored fingerprint against the presented token in
	// constant time rather than trusting the lookup key alone.
	if !security.DeviceTokenHashEqual(rawToken, d.DeviceFingerprint) {
		return &VerifyResult{Reason: ReasonNotFound}, nil
	}
	if d.Expired(s.nowF()) {
		return &VerifyResult{Reason: ReasonExpired, Device: d}, nil
	}
	return &VerifyResult{Trusted: true, Device: d}, nil
}

// UpdateLastSeen stamps the device's latest activity. Trust expiry is never
// extended here; only re-trusting resets the window.
func (s *TrustService) UpdateLastSeen(ctx context.Context, d *domain.TrustedDevice, ip string) error {
	return s.repo.UpdateLastSeen(ctx, d.ID, s.nowF(), ip)
}

// List returns the user's trusted devices for account management pages.
func (s *TrustService) List(ctx context.Context, userID string) ([]*domain.TrustedDevice, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Revoke removes a single device if it belongs to userID.
func (s *TrustService) Revoke(ctx context.Context, userID, companyID, deviceID string) error {
	d, err := s.repo.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}
	if d == nil || d.UserID != userID {
		return nil
	}
	if err := s.repo.Delete(ctx, d.ID); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, companyID, userID, audit.ActionDeviceRevoked, audit.ResourceDevice,
		`{"device_name":"`+d.DeviceName+`"}`)
	return nil
}

// RevokeAll drops every trusted device for the user. Called when MFA is
// disabled so stale bypasses do not outlive enrollment.
func (s *TrustService) RevokeAll(ctx context.Context, userID string) error {
	return s.repo.DeleteByUser(ctx, userID)
}
