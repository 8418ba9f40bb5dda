// Package session manages session lifecycle: creation, sliding and absolute
// expiry, per-user caps, and cleanup.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"tenantauth/backend/internal/audit"
	"tenantauth/backend/internal/session/domain"
	"tenantauth/backend/internal/session/repository"
	userdomain "tenantauth/backend/internal/user/domain"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Config carries the session lifetime knobs.
type Config struct {
	// SlidingTTL is the default sliding window (e.g. 7d).
	SlidingTTL time.Duration
	// RememberTTL is the sliding window when the login asked to be remembered (e.g. 30d).
	RememberTTL time.Duration
	// AbsoluteTTL is the hard ceiling measured from the last full authentication (e.g. 30d).
	AbsoluteTTL time.Duration
	// MaxSessionsPerUser is the default cap when the company has no own cap.
	MaxSessionsPerUser int
}

// Params carries per-login inputs to CreateOrRenew.
type Params struct {
	Source     string
	IP         string
	UserAgent  string
	RememberMe bool
	// MFARequired marks the session as not yet authenticated; the MFA engine
	// flips it via MarkAuthenticated.
	MFARequired bool
	// MaxSessions is the company's cap; 0 means use the configured default.
	MaxSessions int
}

// Manager owns session CRUD and expiry policy.
type Manager struct {
	repo  repository.Repository
	audit audit.AuditLogger
	cfg   Config
	nowF  func() time.Time
}

// NewManager returns a Manager with the given repository, audit logger, and config.
func NewManager(repo repository.Repository, auditLogger audit.AuditLogger, cfg Config) *Manager {
	if cfg.SlidingTTL <= 0 {
		cfg.SlidingTTL = 168 * time.Hour
	}
	if cfg.RememberTTL <= 0 {
		cfg.RememberTTL = 720 * time.Hour
	}
	if cfg.AbsoluteTTL <= 0 {
		cfg.AbsoluteTTL = 720 * time.Hour
	}
	if cfg.MaxSessionsPerUser <= 0 {
		cfg.MaxSessionsPerUser = 3
	}
	return &Manager{repo: repo, audit: auditLogger, cfg: cfg, nowF: func() time.Time { return time.Now().UTC() }}
}

// ValidSID reports whether s is a well-formed session identifier. Malformed
// identifiers are treated as cache misses everywhere, never as errors.
func ValidSID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func (m *Manager) slidingFor(remember bool) time.Duration {
	if remember {
		return m.cfg.RememberTTL
	}
	return m.cfg.SlidingTTL
}

func clamp(expires, absolute time.Time) time.Time {
	if expires.After(absolute) {
		return absolute
	}
	return expires
}

// CreateOrRenew creates a session for the user under sid, or renews the
// existing record. It enforces one session per (user, source) and the
// per-user session cap, evicting the oldest-created session beyond the cap.
func (m *Manager) CreateOrRenew(ctx context.Context, sid string, user *userdomain.User, p Params) (*domain.Session, error) {
	now := m.nowF()
	if !ValidSID(sid) {
		sid = uuid.New().String()
	}

	absolute := now.Add(m.cfg.AbsoluteTTL)
	expires := clamp(now.Add(m.slidingFor(p.RememberMe)), absolute)

	s, err := m.repo.GetBySID(ctx, sid)
	if err != nil {
		return nil, err
	}
	fresh := s == nil
	if fresh {
		s = &domain.Session{SID: sid, Data: map[string]string{}, CreatedAt: now}
	}
	s.UserID = user.ID
	s.CompanyID = user.CompanyID
	s.Source = p.Source
	s.IP = p.IP
	s.UserAgent = p.UserAgent
	s.MFAVerified = !p.MFARequired
	s.ExpiresAt = expires
	s.AbsoluteExpiresAt = absolute
	s.LastActivityAt = now
	if s.Data == nil {
		s.Data = map[string]string{}
	}
	if p.MFARequired && p.RememberMe {
		s.Data[domain.DataRememberMe] = "1"
	} else {
		delete(s.Data, domain.DataRememberMe)
	}

	if fresh {
		err = m.repo.Create(ctx, s)
	} else {
		err = m.repo.Update(ctx, s)
	}
	if err != nil {
		return nil, err
	}

	// Replace-not-append: one session per (user, source).
	if err := m.repo.DeleteByUserAndSource(ctx, user.ID, p.Source, sid); err != nil {
		return nil, err
	}

	if err := m.enforceCap(ctx, user, sid, p.MaxSessions); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) enforceCap(ctx context.Context, user *userdomain.User, keepSID string, companyCap int) error {
	limit := companyCap
	if limit <= 0 {
		limit = m.cfg.MaxSessionsPerUser
	}
	list, err := m.repo.ListByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	excess := len(list) - limit
	for _, s := range list {
		if excess <= 0 {
			break
		}
		if s.SID == keepSID {
			continue
		}
		if err := m.repo.Delete(ctx, s.SID); err != nil {
			return err
		}
		m.audit.LogEvent(ctx, user.CompanyID, user.ID, audit.ActionSessionRevoked, audit.ResourceSession,
			`{"reason":"session_limit_exceeded"}`)
		excess--
	}
	return nil
}

// Get returns the live session for sid. Malformed identifiers and expired
// sessions yield (nil, nil); expired sessions are lazily deleted.
func (m *Manager) Get(ctx context.Context, sid string) (*domain.Session, error) {
	if !ValidSID(sid) {
		return nil, nil
	}
	s, err := m.repo.GetBySID(ctx, sid)
	if err != nil || s == nil {
		return nil, err
	}
	if s.Expired(m.nowF()) {
		// Lazy cleanup; racing with the sweeper is harmless.
		if err := m.repo.Delete(ctx, sid); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s, nil
}

// Touch moves the sliding expiry forward, clamped to the absolute expiry, and
// stamps last activity. Missing or expired sessions return ErrNotFound.
func (m *Manager) Touch(ctx context.Context, sid string) error {
	s, err := m.Get(ctx, sid)
	if err != nil {
		return err
	}
	if s == nil {
		return ErrNotFound
	}
	now := m.nowF()
	s.ExpiresAt = clamp(now.Add(m.cfg.SlidingTTL), s.AbsoluteExpiresAt)
	s.LastActivityAt = now
	return m.repo.Update(ctx, s)
}

// Destroy removes the session. Destroying an absent session is a no-op.
func (m *Manager) Destroy(ctx context.Context, sid string) error {
	if !ValidSID(sid) {
		return nil
	}
	return m.repo.Delete(ctx, sid)
}

// MarkAuthenticated completes the MFA step for the session: attaches the
// user, flips MFAVerified, and re-extends both expiries using the remember-me
// choice carried from login. The transient remember flag is dropped.
func (m *Manager) MarkAuthenticated(ctx context.Context, sid string, user *userdomain.User) (*domain.Session, error) {
	s, err := m.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNotFound
	}
	now := m.nowF()
	remember := s.Data[domain.DataRememberMe] == "1"
	delete(s.Data, domain.DataRememberMe)

	s.UserID = user.ID
	s.CompanyID = user.CompanyID
	s.MFAVerified = true
	s.AbsoluteExpiresAt = now.Add(m.cfg.AbsoluteTTL)
	s.ExpiresAt = clamp(now.Add(m.slidingFor(remember)), s.AbsoluteExpiresAt)
	s.LastActivityAt = now
	if err := m.repo.Update(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}
