package mfa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tenantauth/backend/internal/audit"
	"tenantauth/backend/internal/mail"
	"tenantauth/backend/internal/mfa/domain"
	"tenantauth/backend/internal/mfa/repository"
	"tenantauth/backend/internal/security"
	sessiondomain "tenantauth/backend/internal/session/domain"
	userdomain "tenantauth/backend/internal/user/domain"
)

// Sentinel errors for the MFA engine; the handler maps them to error codes.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrNoPendingMFA        = errors.New("no pending mfa challenge")
	ErrCodeExpired         = errors.New("verification code expired")
	ErrCodeInvalid         = errors.New("verification code invalid")
	ErrRecoveryCodeInvalid = errors.New("recovery code invalid")
	ErrMFAAlreadyEnabled   = errors.New("mfa already enabled")
	ErrMFANotEnabled       = errors.New("mfa not enabled")
	ErrEmailNotConfigured  = errors.New("email delivery not configured")
	ErrEmailSend           = errors.New("email delivery failed")
)

const (
	// DefaultCodeTTL bounds how long an emailed code stays valid.
	DefaultCodeTTL = 5 * time.Minute
	// DefaultMaxAttempts is the number of guesses before the challenge is
	// discarded.
	DefaultMaxAttempts = 5
)

// UserRepo is the minimal user repository needed by the MFA engine.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	Update(ctx context.Context, u *userdomain.User) error
}

// SessionCompleter finishes the MFA step on the login session.
type SessionCompleter interface {
	MarkAuthenticated(ctx context.Context, sid string, user *userdomain.User) (*sessiondomain.Session, error)
}

// TrustRevoker drops a user's trusted devices when MFA is disabled.
type TrustRevoker interface {
	RevokeAll(ctx context.Context, userID string) error
}

// Config tunes the challenge lifecycle. Zero values fall back to defaults.
type Config struct {
	CodeTTL     time.Duration
	MaxAttempts int
}

// Status describes a user's MFA enrollment.
type Status struct {
	Enabled        bool
	EnabledAt      *time.Time
	RemainingCodes int
}

// Service runs the email-code challenge lifecycle and recovery-code
// enrollment for one user at a time.
type Service struct {
	users    UserRepo
	codes    repository.Repository
	store    ChallengeStore
	mail     mail.Sender
	hasher   *security.Hasher
	sessions SessionCompleter
	devices  TrustRevoker
	audit    audit.AuditLogger
	cfg      Config
	nowF     func() time.Time
}

// NewService returns an MFA engine with the given dependencies.
func NewService(
	users UserRepo,
	codes repository.Repository,
	store ChallengeStore,
	mailSender mail.Sender,
	hasher *security.Hasher,
	sessions SessionCompleter,
	devices TrustRevoker,
	auditLogger audit.AuditLogger,
	cfg Config,
) *Service {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = DefaultCodeTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Service{
		users:    users,
		codes:    codes,
		store:    store,
		mail:     mailSender,
		hasher:   hasher,
		sessions: sessions,
		devices:  devices,
		audit:    auditLogger,
		cfg:      cfg,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// SendCode issues a fresh 6-digit code for the user, overwriting any prior
// challenge, and emails it. Returns the code's validity in whole minutes.
// If delivery fails the stored challenge is removed before reporting the
// error, so a code the user never received cannot be guessed against.
func (s *Service) SendCode(ctx context.Context, userID string) (int, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, ErrUserNotFound
	}

	code, err := GenerateCode()
	if err != nil {
		return 0, err
	}
	now := s.nowF()
	ch := &domain.Challenge{
		CodeHash:  HashCode(code),
		ExpiresAt: now.Add(s.cfg.CodeTTL),
		CreatedAt: now,
	}
	if err := s.store.Put(ctx, userID, ch, s.cfg.CodeTTL); err != nil {
		return 0, err
	}

	if err := s.mail.SendCode(ctx, user.Email, code, s.cfg.CodeTTL); err != nil {
		_ = s.store.Delete(ctx, userID)
		if errors.Is(err, mail.ErrNotConfigured) {
			return 0, ErrEmailNotConfigured
		}
		return 0, fmt.Errorf("%w: %v", ErrEmailSend, err)
	}

	s.audit.LogEvent(ctx, user.CompanyID, user.ID, audit.ActionMFACodeSent, audit.ResourceMFA, "{}")
	return int(s.cfg.CodeTTL.Minutes()), nil
}

// VerifyCode checks the submitted code against the pending challenge and, on
// success, completes the MFA step on the session sid and returns the
// authenticated user with it. Exhausting the allowed attempts discards the
// challenge but reports the same error as a wrong guess.
func (s *Service) VerifyCode(ctx context.Context, userID, code, sid string) (*userdomain.User, *sessiondomain.Session, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}

	ch, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if ch == nil {
		return nil, nil, ErrNoPendingMFA
	}
	if ch.Expired(s.nowF()) {
		_ = s.store.Delete(ctx, userID)
		return nil, nil, ErrCodeExpired
	}

	attempts, err := s.store.Increment(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if attempts > s.cfg.MaxAttempts {
		_ = s.store.Delete(ctx, userID)
		return nil, nil, ErrCodeInvalid
	}
	if !CodeEqual(code, ch.CodeHash) {
		return nil, nil, ErrCodeInvalid
	}

	if err := s.store.Delete(ctx, userID); err != nil {
		return nil, nil, err
	}
	sess, err := s.completeLogin(ctx, user, sid)
	if err != nil {
		return nil, nil, err
	}
	s.audit.LogEvent(ctx, user.CompanyID, user.ID, audit.ActionLoginSuccess, audit.ResourceAuth,
		`{"mfa_verified":true}`)
	return user, sess, nil
}

// completeLogin performs the full-authentication side effects shared by the
// code and recovery paths: the lockout state clears, the login is stamped,
// and the session flips to authenticated.
func (s *Service) completeLogin(ctx context.Context, user *userdomain.User, sid string) (*sessiondomain.Session, error) {
	now := s.nowF()
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.sessions.MarkAuthenticated(ctx, sid, user)
}

// VerifyRecoveryCode redeems a backup code in place of an emailed one. Each
// code works exactly once; the match is bcrypt-compared against every unused
// code so a forged hash cannot shortcut the check.
func (s *Service) VerifyRecoveryCode(ctx context.Context, userID, code, sid string) (*userdomain.User, *sessiondomain.Session, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}
	if !user.MFAEnabled {
		return nil, nil, ErrMFANotEnabled
	}

	normalized := NormalizeRecoveryCode(code)
	unused, err := s.codes.ListUnused(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	var matched *domain.RecoveryCode
	for _, c := range unused {
		if s.hasher.Compare(c.CodeHash, []byte(normalized)) == nil {
			matched = c
			break
		}
	}
	if matched == nil {
		return nil, nil, ErrRecoveryCodeInvalid
	}

	now := s.nowF()
	if err := s.codes.MarkUsed(ctx, matched.ID, now); err != nil {
		return nil, nil, err
	}
	_ = s.store.Delete(ctx, userID)

	sess, err := s.completeLogin(ctx, user, sid)
	if err != nil {
		return nil, nil, err
	}
	s.audit.LogEvent(ctx, user.CompanyID, user.ID, audit.ActionMFABackupCodeUsed, audit.ResourceMFA,
		fmt.Sprintf(`{"code_id":%q}`, matched.ID))
	return user, sess, nil
}

// Enable turns MFA on for the user and returns the 10 plaintext recovery
// codes. They are shown once; only bcrypt hashes are stored. Codes and the
// enrollment flags are written in a single transaction.
func (s *Service) Enable(ctx context.Context, userID string) ([]string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}

	plain, hashes, err := s.freshCodes()
	if err != nil {
		return nil, err
	}
	if err := s.codes.EnableMFA(ctx, userID, hashes, s.nowF()); err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, user.CompanyID, user.ID, audit.ActionMFAEnabled, audit.ResourceMFA, "{}")
	return plain, nil
}

// Disable turns MFA off, deletes every recovery code, and revokes the
// user's trusted devices so the bypass list does not outlive enrollment.
func (s *Service) Disable(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if !user.MFAEnabled {
		return ErrMFANotEnabled
	}

	if err := s.codes.DisableMFA(ctx, userID); err != nil {
		return err
	}
	_ = s.store.Delete(ctx, userID)
	if s.devices != nil {
		if err := s.devices.RevokeAll(ctx, userID); err != nil {
			return err
		}
	}
	s.audit.LogEvent(ctx, user.CompanyID, user.ID, audit.ActionMFADisabled, audit.ResourceMFA, "{}")
	return nil
}

// Regenerate replaces the user's recovery codes with 10 fresh ones. Old
// codes stop validating the moment the swap commits.
func (s *Service) Regenerate(ctx context.Context, userID string) ([]string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.MFAEnabled {
		return nil, ErrMFANotEnabled
	}

	plain, hashes, err := s.freshCodes()
	if err != nil {
		return nil, err
	}
	if err := s.codes.ReplaceCodes(ctx, userID, hashes, s.nowF()); err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, user.CompanyID, user.ID, audit.ActionMFACodesRegenerated, audit.ResourceMFA, "{}")
	return plain, nil
}

// GetStatus reports the user's enrollment state and how many recovery codes
// remain unredeemed.
func (s *Service) GetStatus(ctx context.Context, userID string) (*Status, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	st := &Status{Enabled: user.MFAEnabled, EnabledAt: user.MFAEnabledAt}
	if user.MFAEnabled {
		n, err := s.codes.CountUnused(ctx, userID)
		if err != nil {
			return nil, err
		}
		st.RemainingCodes = n
	}
	return st, nil
}

func (s *Service) freshCodes() ([]string, []string, error) {
	plain, err := GenerateRecoveryCodes()
	if err != nil {
		return nil, nil, err
	}
	hashes := make([]string, len(plain))
	for i, code := range plain {
		h, err := s.hasher.Hash([]byte(NormalizeRecoveryCode(code)))
		if err != nil {
			return nil, nil, err
		}
		hashes[i] = h
	}
	return plain, hashes, nil
}
