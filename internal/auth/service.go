package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tenantauth/backend/internal/audit"
	companydomain "tenantauth/backend/internal/company/domain"
	"tenantauth/backend/internal/device"
	devicedomain "tenantauth/backend/internal/device/domain"
	"tenantauth/backend/internal/lockout"
	attemptdomain "tenantauth/backend/internal/loginattempt/domain"
	"tenantauth/backend/internal/security"
	"tenantauth/backend/internal/session"
	sessiondomain "tenantauth/backend/internal/session/domain"
	userdomain "tenantauth/backend/internal/user/domain"
)

// Sentinel errors for the auth service; the handler maps them to error codes.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountLocked        = errors.New("account locked")
	ErrAccountInactive      = errors.New("account inactive")
	ErrPasswordExpired      = errors.New("password reset required")
	ErrPasswordRecentlyUsed = errors.New("password was recently used")
	ErrWeakPassword         = errors.New("password does not meet requirements")
	ErrInvalidResetToken    = errors.New("invalid or expired reset token")
)

// LoginInput carries everything the login flow needs from the transport.
// SessionID and DeviceTrustToken come from cookies and may be blank.
type LoginInput struct {
	Email            string
	Password         string
	Source           string
	IP               string
	UserAgent        string
	SessionID        string
	DeviceTrustToken string
	RememberMe       bool
}

// LoginResult is the outcome of a credential check. When RequiresMFA is set
// the session exists but is not authenticated until the MFA engine flips it.
type LoginResult struct {
	Session       *sessiondomain.Session
	User          *userdomain.User
	RequiresMFA   bool
	TrustedDevice bool
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Update(ctx context.Context, u *userdomain.User) error
	PasswordHistory(ctx context.Context, userID string, limit int) ([]string, error)
	AppendPasswordHistory(ctx context.Context, userID, passwordHash string) error
}

// CompanyRepo is the minimal company repository needed by the auth service.
type CompanyRepo interface {
	GetByID(ctx context.Context, id string) (*companydomain.Company, error)
}

// AttemptRepo records login attempts, append-only.
type AttemptRepo interface {
	Create(ctx context.Context, a *attemptdomain.LoginAttempt) error
}

// SessionManager is the slice of the session manager used during login.
type SessionManager interface {
	CreateOrRenew(ctx context.Context, sid string, user *userdomain.User, p session.Params) (*sessiondomain.Session, error)
	Get(ctx context.Context, sid string) (*sessiondomain.Session, error)
	Destroy(ctx context.Context, sid string) error
}

// DeviceVerifier checks device-trust tokens during login. It is consulted
// only here; trust never elevates an existing session.
type DeviceVerifier interface {
	Verify(ctx context.Context, userID, rawToken string) (*device.VerifyResult, error)
	UpdateLastSeen(ctx context.Context, d *devicedomain.TrustedDevice, ip string) error
}

const passwordHistoryDepth = 5

// Service implements credential verification with progressive lockout, plus
// logout and the password reset/change flows.
type Service struct {
	users     UserRepo
	companies CompanyRepo
	attempts  AttemptRepo
	sessions  SessionManager
	devices   DeviceVerifier
	hasher    *security.Hasher
	reset     *security.ResetTokenProvider
	audit     audit.AuditLogger
	nowF      func() time.Time
}

// NewService returns an auth service with the given dependencies. reset may
// be nil when password-reset links are not configured.
func NewService(
	users UserRepo,
	companies CompanyRepo,
	attempts AttemptRepo,
	sessions SessionManager,
	devices DeviceVerifier,
	hasher *security.Hasher,
	reset *security.ResetTokenProvider,
	auditLogger audit.AuditLogger,
) *Service {
	return &Service{
		users:     users,
		companies: companies,
		attempts:  attempts,
		sessions:  sessions,
		devices:   devices,
		hasher:    hasher,
		reset:     reset,
		audit:     auditLogger,
		nowF:      func() time.Time { return time.Now().UTC() },
	}
}

// Login verifies credentials and either returns an authenticated session or
// a pending one awaiting MFA. Lockout state is re-evaluated on every attempt.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	now := s.nowF()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.recordAttempt(ctx, email, in, attemptdomain.ReasonInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	if user.Locked(now) {
		s.recordAttempt(ctx, email, in, attemptdomain.ReasonAccountLocked)
		return nil, ErrAccountLocked
	}
	if user.Status != userdomain.UserStatusActive {
		s.recordAttempt(ctx, email, in, attemptdomain.ReasonAccountInactive)
		return nil, ErrAccountInactive
	}

	if s.hasher.Compare(user.PasswordHash, []byte(in.Password)) != nil {
		return nil, s.handleFailedPassword(ctx, user, email, in, now)
	}

	if user.NeedsPasswordReset {
		s.recordAttempt(ctx, email, in, attemptdomain.ReasonPasswordExpired)
		return nil, ErrPasswordExpired
	}

	company, err := s.companies.GetByID(ctx, user.CompanyID)
	if err != nil {
		return nil, err
	}
	mfaRequired := user.MFAEnabled
	maxSessions := 0
	if company != nil {
		mfaRequired = mfaRequired || company.MFARequired
		maxSessions = company.MaxSessionsPerUser
	}

	trusted := false
	if mfaRequired && in.DeviceTrustToken != "" {
		res, err := s.devices.Verify(ctx, user.ID, in.DeviceTrustToken)
		if err != nil {
			return nil, err
		}
		if res.Trusted {
			trusted = true
			if err := s.devices.UpdateLastSeen(ctx, res.Device, in.IP); err != nil {
				return nil, err
			}
		}
	}

	params := session.Params{
		Source:      in.Source,
		IP:          in.IP,
		UserAgent:   in.UserAgent,
		RememberMe:  in.RememberMe,
		MFARequired: mfaRequired && !trusted,
		MaxSessions: maxSessions,
	}

	if mfaRequired && !trusted {
		// Password verified but the MFA step is still ahead. The session
		// record exists so the MFA flow can find it; lockout counters are
		// reset only on full authentication. The try still gets its
		// attempt row.
		sess, err := s.sessions.CreateOrRenew(ctx, in.SessionID, user, params)
		if err != nil {
			return nil, err
		}
		s.writeAttempt(ctx, email, in, true, attemptdomain.NoteMFAPending)
		return &LoginResult{Session: sess, User: user, RequiresMFA: true}, nil
	}

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	sess, err := s.sessions.CreateOrRenew(ctx, in.SessionID, user, params)
	if err != nil {
		return nil, err
	}

	s.recordSuccess(ctx, email, in)
	metadata := `{"mfa_verified":true}`
	if trusted {
		metadata = `{"mfa_verified":true,"device_trust":true}`
	}
	s.audit.LogEvent(ctx, user.CompanyID, user.ID, audit.ActionLoginSuccess, audit.ResourceAuth, metadata)
	return &LoginResult{Session: sess, User: user, TrustedDevice: trusted}, nil
}

func (s *Service) handleFailedPassword(ctx context.Context, user *userdomain.User, email string, in LoginInput, now time.Time) error {
	user.FailedLoginAttempts++
	lockMinutes := lockout.Minutes(user.FailedLoginAttempts)
	newlyLocked := false
	if lockMinutes > 0 {
		until := now.Add(lockout.Duration(user.FailedLoginAttempts))
		user.LockedUntil = &until
		newlyLocked = true
	}
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	s.recordAttempt(ctx, email, in, attemptdomain.ReasonInvalidCredentials)
	s.audit.LogEvent(ctx, user.CompanyID, user.ID, audit.ActionLoginFailed, audit.ResourceAuth,
		fmt.Sprintf(`{"failed_attempts":%d}`, user.FailedLoginAttempts))
	if newlyLocked {
		s.audit.LogEvent(ctx, user.CompanyID, user.ID, audit.ActionAccountLocked, audit.ResourceAuth,
			fmt.Sprintf(`{"locked_minutes":%d}`, lockMinutes))
	}
	return ErrInvalidCredentials
}

// Logout destroys the session. Destroying an unknown or malformed session id
// is a no-op so logout is always safe to call.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		return err
	}
	if sess != nil && sess.UserID != "" {
		s.audit.LogEvent(ctx, sess.CompanyID, sess.UserID, audit.ActionLogout, audit.ResourceSession, "{}")
	}
	return nil
}

// RequestPasswordReset issues a signed reset token for the email's account.
// Unknown addresses return an empty token and no error, so the endpoint does
// not confirm which emails exist.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (token string, expiresAt time.Time, err error) {
	if s.reset == nil {
		return "", time.Time{}, ErrInvalidResetToken
	}
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", time.Time{}, err
	}
	if user == nil {
		return "", time.Time{}, nil
	}
	return s.reset.IssueReset(user.ID, user.Email)
}

// ResetPassword sets a new password from a reset token. It clears the
// lockout state and the reset requirement, and retires the old hash into
// the password history.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if s.reset == nil {
		return ErrInvalidResetToken
	}
	userID, _, err := s.reset.ValidateReset(token)
	if err != nil {
		return ErrInvalidResetToken
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidResetToken
	}
	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, user.CompanyID, user.ID, audit.ActionPasswordReset, audit.ResourceAuth, "{}")
	return nil
}

// ChangePassword rotates the password for a signed-in user after verifying
// the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidCredentials
	}
	if s.hasher.Compare(user.PasswordHash, []byte(currentPassword)) != nil {
		return ErrInvalidCredentials
	}
	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, user.CompanyID, user.ID, audit.ActionPasswordChanged, audit.ResourceAuth, "{}")
	return nil
}

func (s *Service) setPassword(ctx context.Context, user *userdomain.User, newPassword string) error {
	if err := security.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}
	history, err := s.users.PasswordHistory(ctx, user.ID, passwordHistoryDepth)
	if err != nil {
		return err
	}
	history = append([]string{user.PasswordHash}, history...)
	if !s.hasher.NotRecentlyUsed(history, newPassword) {
		return ErrPasswordRecentlyUsed
	}

	hash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	oldHash := user.PasswordHash
	user.PasswordHash = hash
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.NeedsPasswordReset = false
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	return s.users.AppendPasswordHistory(ctx, user.ID, oldHash)
}

func (s *Service) recordAttempt(ctx context.Context, email string, in LoginInput, reason string) {
	s.writeAttempt(ctx, email, in, false, reason)
}

func (s *Service) recordSuccess(ctx context.Context, email string, in LoginInput) {
	s.writeAttempt(ctx, email, in, true, "")
}

// writeAttempt is best-effort: a failed audit row never blocks the login
// decision that was already made.
func (s *Service) writeAttempt(ctx context.Context, email string, in LoginInput, success bool, reason string) {
	_ = s.attempts.Create(ctx, &attemptdomain.LoginAttempt{
		ID:            uuid.New().String(),
		Email:         email,
		IP:            in.IP,
		UserAgent:     in.UserAgent,
		Success:       success,
		FailureReason: reason,
		CreatedAt:     s.nowF(),
	})
}
