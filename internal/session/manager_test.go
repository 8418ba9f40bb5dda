package session

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"tenantauth/backend/internal/session/domain"
	userdomain "tenantauth/backend/internal/user/domain"
)

type memSessionRepo struct {
	mu sync.Mutex
	m  map[string]*domain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{m: map[string]*domain.Session{}}
}

func (r *memSessionRepo) GetBySID(ctx context.Context, sid string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[sid]
	if !ok {
		return nil, nil
	}
	cp := *s
	cp.Data = map[string]string{}
	for k, v := range s.Data {
		cp.Data[k] = v
	}
	return &cp, nil
}

func (r *memSessionRepo) Create(ctx context.Context, s *domain.Session) error {
	return r.put(s)
}

func (r *memSessionRepo) Update(ctx context.Context, s *domain.Session) error {
	return r.put(s)
}

func (r *memSessionRepo) put(s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.Data = map[string]string{}
	for k, v := range s.Data {
		cp.Data[k] = v
	}
	r.m[s.SID] = &cp
	return nil
}

func (r *memSessionRepo) Delete(ctx context.Context, sid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, sid)
	return nil
}

func (r *memSessionRepo) DeleteByUserAndSource(ctx context.Context, userID, source, keepSID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, s := range r.m {
		if s.UserID == userID && s.Source == source && sid != keepSID {
			delete(r.m, sid)
		}
	}
	return nil
}

func (r *memSessionRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.m {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for sid, s := range r.m {
		if now.After(s.ExpiresAt) || now.After(s.AbsoluteExpiresAt) {
			delete(r.m, sid)
			n++
		}
	}
	return n, nil
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *memAudit) LogEvent(ctx context.Context, companyID, userID, action, resource, metadata string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, action)
}

func (a *memAudit) count(action string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.events {
		if e == action {
			n++
		}
	}
	return n
}

func testUser() *userdomain.User {
	return &userdomain.User{ID: "u-1", CompanyID: "co-1", Email: "a@example.com"}
}

func newTestManager(repo *memSessionRepo, aud *memAudit) *Manager {
	return NewManager(repo, aud, Config{
		SlidingTTL:         7 * 24 * time.Hour,
		RememberTTL:        30 * 24 * time.Hour,
		AbsoluteTTL:        30 * 24 * time.Hour,
		MaxSessionsPerUser: 3,
	})
}

func TestCreateOrRenew_Defaults(t *testing.T) {
	repo := newMemSessionRepo()
	m := newTestManager(repo, &memAudit{})
	ctx := context.Background()

	s, err := m.CreateOrRenew(ctx, uuid.New().String(), testUser(), Params{Source: "web"})
	if err != nil {
		t.Fatalf("CreateOrRenew: %v", err)
	}
	if !s.MFAVerified {
		t.Error("MFAVerified should be true when MFA is not required")
	}
	if s.ExpiresAt.After(s.AbsoluteExpiresAt) {
		t.Error("ExpiresAt exceeds AbsoluteExpiresAt")
	}
	wantSliding := s.CreatedAt.Add(7 * 24 * time.Hour)
	if !s.ExpiresAt.Equal(wantSliding) {
		t.Errorf("ExpiresAt = %v, want %v", s.ExpiresAt, wantSliding)
	}
}

func TestCreateOrRenew_RememberMeWidensWindow(t *testing.T) {
	repo := newMemSessionRepo()
	m := newTestManager(repo, &memAudit{})

	s, err := m.CreateOrRenew(context.Background(), uuid.New().String(), testUser(), Params{Source: "web", RememberMe: true})
	if err != nil {
		t.Fatalf("CreateOrRenew: %v", err)
	}
	// Remember-me sliding equals the absolute window here, so it must clamp.
	if !s.ExpiresAt.Equal(s.AbsoluteExpiresAt) {
		t.Errorf("ExpiresAt = %v, want clamped to absolute %v", s.ExpiresAt, s.AbsoluteExpiresAt)
	}
}

func TestCreateOrRenew_MFARequiredStashesRememberFlag(t *testing.T) {
	repo := newMemSessionRepo()
	m := newTestManager(repo, &memAudit{})

	s, err := m.CreateOrRenew(context.Background(), uuid.New().String(), testUser(), Params{Source: "web", RememberMe: true, MFARequired: true})
	if err != nil {
		t.Fatalf("CreateOrRenew: %v", err)
	}
	if s.MFAVerified {
		t.Error("MFAVerified should be false while MFA is pending")
	}
	if s.Data[domain.DataRememberMe] != "1" {
		t.Error("remember flag not stashed in session data")
	}
}

func TestCreateOrRenew_ReplacesSameSourceSession(t *testing.T) {
	repo := newMemSessionRepo()
	m := newTestManager(repo, &memAudit{})
	ctx := context.Background()

	first, _ := m.CreateOrRenew(ctx, uuid.New().String(), testUser(), Params{Source: "web"})
	second, _ := m.CreateOrRenew(ctx, uuid.New().String(), testUser(), Params{Source: "web"})

	if got, _ := m.Get(ctx, first.SID); got != nil {
		t.Error("previous session for the same (user, source) should have been replaced")
	}
	if got, _ := m.Get(ctx, second.SID); got == nil {
		t.Error("new session missing")
	}
}

func TestCreateOrRenew_EvictsOldestBeyondCap(t *testing.T) {
	repo := newMemSessionRepo()
	aud := &memAudit{}
	m := newTestManager(repo, aud)
	ctx := context.Background()

	// Distinct sources so the replace rule does not kick in.
	sources := []string{"web", "mobile", "desktop", "tablet"}
	var sids []string
	for i, src := range sources {
		sid := uuid.New().String()
		// Stagger CreatedAt so oldest-created is deterministic.
		m.nowF = func() time.Time { return time.Date(2026, 1, 1, i, 0, 0, 0, time.UTC) }
		if _, err := m.CreateOrRenew(ctx, sid, testUser(), Params{Source: src}); err != nil {
			t.Fatalf("CreateOrRenew(%s): %v", src, err)
		}
		sids = append(sids, sid)
	}

	m.nowF = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }
	if got, _ := m.Get(ctx, sids[0]); got != nil {
		t.Error("oldest-created session should have been evicted at the cap")
	}
	for _, sid := range sids[1:] {
		if got, _ := m.Get(ctx, sid); got == nil {
			t.Errorf("session %s unexpectedly evicted", sid)
		}
	}
	if aud.count("session_revoked") != 1 {
		t.Errorf("session_revoked events = %d, want 1", aud.count("session_revoked"))
	}
}

func TestGet_MalformedSIDIsMiss(t *testing.T) {
	m := newTestManager(newMemSessionRepo(), &memAudit{})
	for _, sid := range []string{"", "nope", "1234", "../../etc/passwd"} {
		s, err := m.Get(context.Background(), sid)
		if err != nil {
			t.Errorf("Get(%q) error = %v, want nil", sid, err)
		}
		if s != nil {
			t.Errorf("Get(%q) = %+v, want nil", sid, s)
		}
	}
}

func TestGet_LazyDeletesExpired(t *testing.T) {
	repo := newMemSessionRepo()
	m := newTestManager(repo, &memAudit{})
	ctx := context.Background()

	s, _ := m.CreateOrRenew(ctx, uuid.New().String(), testUser(), Params{Source: "web"})

	m.nowF = func() time.Time { return s.ExpiresAt.Add(time.Minute) }
	if got, err := m.Get(ctx, s.SID); err != nil || got != nil {
		t.Fatalf("Get expired = (%+v, %v), want (nil, nil)", got, err)
	}
	repo.mu.Lock()
	_, still := repo.m[s.SID]
	repo.mu.Unlock()
	if still {
		t.Error("expired session not lazily deleted")
	}
}

func TestTouch_NeverExceedsAbsolute(t *testing.T) {
	repo := newMemSessionRepo()
	m := newTestManager(repo, &memAudit{})
	ctx := context.Background()

	s, _ := m.CreateOrRenew(ctx, uuid.New().String(), testUser(), Params{Source: "web"})

	// Walk time forward in 5-day steps; every touch must stay under absolute.
	for step := 1; step <= 6; step++ {
		now := s.CreatedAt.Add(time.Duration(step) * 5 * 24 * time.Hour)
		m.nowF = func() time.Time { return now }
		err := m.Touch(ctx, s.SID)
		if err == ErrNotFound {
			return // expired past absolute, acceptable end state
		}
		if err != nil {
			t.Fatalf("Touch: %v", err)
		}
		got, _ := m.Get(ctx, s.SID)
		if got == nil {
			return
		}
		if got.ExpiresAt.After(got.AbsoluteExpiresAt) {
			t.Fatalf("after touch %d: ExpiresAt %v exceeds absolute %v", step, got.ExpiresAt, got.AbsoluteExpiresAt)
		}
	}
}

func TestTouch_MissingSession(t *testing.T) {
	m := newTestManager(newMemSessionRepo(), &memAudit{})
	if err := m.Touch(context.Background(), uuid.New().String()); err != ErrNotFound {
		t.Errorf("Touch missing = %v, want ErrNotFound", err)
	}
}

func TestDestroy_Idempotent(t *testing.T) {
	repo := newMemSessionRepo()
	m := newTestManager(repo, &memAudit{})
	ctx := context.Background()

	s, _ := m.CreateOrRenew(ctx, uuid.New().String(), testUser(), Params{Source: "web"})
	if err := m.Destroy(ctx, s.SID); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := m.Destroy(ctx, s.SID); err != nil {
		t.Fatalf("second Destroy: %v", err)
	}
	if err := m.Destroy(ctx, "garbage-sid"); err != nil {
		t.Fatalf("Destroy malformed: %v", err)
	}
}

func TestMarkAuthenticated_UsesStashedRememberMe(t *testing.T) {
	repo := newMemSessionRepo()
	m := newTestManager(repo, &memAudit{})
	ctx := context.Background()

	s, _ := m.CreateOrRenew(ctx, uuid.New().String(), testUser(), Params{Source: "web", RememberMe: true, MFARequired: true})

	later := s.CreatedAt.Add(2 * time.Minute)
	m.nowF = func() time.Time { return later }
	got, err := m.MarkAuthenticated(ctx, s.SID, testUser())
	if err != nil {
		t.Fatalf("MarkAuthenticated: %v", err)
	}
	if !got.MFAVerified {
		t.Error("MFAVerified not flipped")
	}
	if _, ok := got.Data[domain.DataRememberMe]; ok {
		t.Error("transient remember flag not removed")
	}
	// Remember-me window clamps to the refreshed absolute expiry.
	if !got.ExpiresAt.Equal(later.Add(30 * 24 * time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, later.Add(30*24*time.Hour))
	}
	if got.UserID != "u-1" {
		t.Errorf("UserID = %q, want u-1", got.UserID)
	}
}

func TestSweeper_RemovesExpired(t *testing.T) {
	repo := newMemSessionRepo()
	m := newTestManager(repo, &memAudit{})
	ctx := context.Background()

	live, _ := m.CreateOrRenew(ctx, uuid.New().String(), testUser(), Params{Source: "web"})
	dead, _ := m.CreateOrRenew(ctx, uuid.New().String(), &userdomain.User{ID: "u-2", CompanyID: "co-1"}, Params{Source: "web"})

	w := NewSweeper(repo, time.Minute)
	w.nowF = func() time.Time { return time.Now().UTC() }

	// Force one session past expiry.
	repo.mu.Lock()
	repo.m[dead.SID].ExpiresAt = time.Now().UTC().Add(-time.Hour)
	repo.mu.Unlock()

	n, err := w.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d, want 1", n)
	}
	if got, _ := m.Get(ctx, live.SID); got == nil {
		t.Error("live session swept")
	}
}
