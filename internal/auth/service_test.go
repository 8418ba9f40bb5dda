package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	companydomain "tenantauth/backend/internal/company/domain"
	"tenantauth/backend/internal/device"
	devicedomain "tenantauth/backend/internal/device/domain"
	attemptdomain "tenantauth/backend/internal/loginattempt/domain"
	"tenantauth/backend/internal/security"
	"tenantauth/backend/internal/session"
	sessiondomain "tenantauth/backend/internal/session/domain"
	userdomain "tenantauth/backend/internal/user/domain"
)

type memUserRepo struct {
	mu      sync.Mutex
	m       map[string]*userdomain.User
	history map[string][]string
}

func newMemUserRepo(users ...*userdomain.User) *memUserRepo {
	r := &memUserRepo{m: map[string]*userdomain.User{}, history: map[string][]string{}}
	for _, u := range users {
		r.m[u.ID] = u
	}
	return r
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.m {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Update(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.m[u.ID] = &cp
	return nil
}

func (r *memUserRepo) PasswordHistory(ctx context.Context, userID string, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.history[userID]
	if len(h) > limit {
		h = h[:limit]
	}
	out := make([]string, len(h))
	copy(out, h)
	return out, nil
}

func (r *memUserRepo) AppendPasswordHistory(ctx context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[userID] = append([]string{passwordHash}, r.history[userID]...)
	return nil
}

type memCompanyRepo struct {
	m map[string]*companydomain.Company
}

func (r *memCompanyRepo) GetByID(ctx context.Context, id string) (*companydomain.Company, error) {
	c, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

type memAttemptRepo struct {
	mu       sync.Mutex
	attempts []*attemptdomain.LoginAttempt
}

func (r *memAttemptRepo) Create(ctx context.Context, a *attemptdomain.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *memAttemptRepo) last() *attemptdomain.LoginAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.attempts) == 0 {
		return nil
	}
	return r.attempts[len(r.attempts)-1]
}

// fakeSessions captures the create call without the full session machinery.
type fakeSessions struct {
	mu        sync.Mutex
	sessions  map[string]*sessiondomain.Session
	lastParam session.Params
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]*sessiondomain.Session{}}
}

func (f *fakeSessions) CreateOrRenew(ctx context.Context, sid string, user *userdomain.User, p session.Params) (*sessiondomain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !session.ValidSID(sid) {
		sid = uuid.New().String()
	}
	f.lastParam = p
	s := &sessiondomain.Session{
		SID:         sid,
		UserID:      user.ID,
		CompanyID:   user.CompanyID,
		Source:      p.Source,
		MFAVerified: !p.MFARequired,
		Data:        map[string]string{},
	}
	f.sessions[sid] = s
	return s, nil
}

func (f *fakeSessions) Get(ctx context.Context, sid string) (*sessiondomain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[sid], nil
}

func (f *fakeSessions) Destroy(ctx context.Context, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sid)
	return nil
}

// fakeDevices trusts exactly the (userID, token) pairs it was seeded with.
type fakeDevices struct {
	trusted  map[string]string // token -> userID it was issued for
	lastSeen []string
}

func (f *fakeDevices) Verify(ctx context.Context, userID, rawToken string) (*device.VerifyResult, error) {
	if owner, ok := f.trusted[rawToken]; ok && owner == userID {
		return &device.VerifyResult{Trusted: true, Device: &devicedomain.TrustedDevice{ID: "d-1", UserID: userID}}, nil
	}
	return &device.VerifyResult{Reason: device.ReasonNotFound}, nil
}

func (f *fakeDevices) UpdateLastSeen(ctx context.Context, d *devicedomain.TrustedDevice, ip string) error {
	f.lastSeen = append(f.lastSeen, d.ID)
	return nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAudit) LogEvent(ctx context.Context, companyID, userID, action, resource, metadata string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, action)
}

func (a *recordingAudit) has(action string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.events {
		if e == action {
			return true
		}
	}
	return false
}

const testPassword = "Sup3r-Secret-Pass!"

type fixture struct {
	svc      *Service
	users    *memUserRepo
	attempts *memAttemptRepo
	sessions *fakeSessions
	devices  *fakeDevices
	audit    *recordingAudit
	hasher   *security.Hasher
}

func newFixture(t *testing.T, user *userdomain.User, company *companydomain.Company) *fixture {
	t.Helper()
	hasher := security.NewHasher(4)
	if user.PasswordHash == "" {
		hash, err := hasher.Hash([]byte(testPassword))
		if err != nil {
			t.Fatalf("Hash: %v", err)
		}
		user.PasswordHash = hash
	}

	companies := &memCompanyRepo{m: map[string]*companydomain.Company{}}
	if company != nil {
		companies.m[company.ID] = company
	}

	reset, err := security.NewTestResetTokenProvider()
	if err != nil {
		t.Fatalf("NewTestResetTokenProvider: %v", err)
	}

	f := &fixture{
		users:    newMemUserRepo(user),
		attempts: &memAttemptRepo{},
		sessions: newFakeSessions(),
		devices:  &fakeDevices{trusted: map[string]string{}},
		audit:    &recordingAudit{},
		hasher:   hasher,
	}
	f.svc = NewService(f.users, companies, f.attempts, f.sessions, f.devices, hasher, reset, f.audit)
	return f
}

func plainUser() *userdomain.User {
	return &userdomain.User{
		ID:        "u-1",
		CompanyID: "co-1",
		Email:     "user@example.com",
		Status:    userdomain.UserStatusActive,
	}
}

func plainCompany() *companydomain.Company {
	return &companydomain.Company{ID: "co-1", Name: "Acme"}
}

func loginInput() LoginInput {
	return LoginInput{
		Email:     "user@example.com",
		Password:  testPassword,
		Source:    "web",
		IP:        "203.0.113.9",
		UserAgent: "test-agent",
	}
}

func TestLogin_SuccessWithoutMFA(t *testing.T) {
	f := newFixture(t, plainUser(), plainCompany())
	ctx := context.Background()

	res, err := f.svc.Login(ctx, loginInput())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.RequiresMFA {
		t.Error("RequiresMFA = true, want false")
	}
	if !res.Session.MFAVerified {
		t.Error("session MFAVerified = false, want true")
	}
	stored, _ := f.users.GetByID(ctx, "u-1")
	if stored.LastLoginAt == nil {
		t.Error("LastLoginAt not stamped")
	}
	if !f.audit.has("login_success") {
		t.Error("login_success audit event missing")
	}
	if a := f.attempts.last(); a == nil || !a.Success {
		t.Errorf("attempt record = %+v, want success", a)
	}
}

func TestLogin_EmailNormalization(t *testing.T) {
	f := newFixture(t, plainUser(), plainCompany())
	in := loginInput()
	in.Email = "  USER@Example.COM "
	if _, err := f.svc.Login(context.Background(), in); err != nil {
		t.Fatalf("Login with unnormalized email: %v", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	f := newFixture(t, plainUser(), plainCompany())
	in := loginInput()
	in.Email = "stranger@example.com"
	_, err := f.svc.Login(context.Background(), in)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("error = %v, want ErrInvalidCredentials", err)
	}
	if a := f.attempts.last(); a == nil || a.FailureReason != attemptdomain.ReasonInvalidCredentials {
		t.Errorf("attempt record = %+v, want invalid_credentials", a)
	}
}

func TestLogin_WrongPasswordIncrementsCounter(t *testing.T) {
	f := newFixture(t, plainUser(), plainCompany())
	ctx := context.Background()
	in := loginInput()
	in.Password = "not-the-password"

	for i := 1; i <= 4; i++ {
		if _, err := f.svc.Login(ctx, in); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: error = %v, want ErrInvalidCredentials", i, err)
		}
	}
	stored, _ := f.users.GetByID(ctx, "u-1")
	if stored.FailedLoginAttempts != 4 {
		t.Errorf("FailedLoginAttempts = %d, want 4", stored.FailedLoginAttempts)
	}
	if stored.LockedUntil != nil {
		t.Error("LockedUntil set below the lockout threshold")
	}
	if f.audit.has("account_locked") {
		t.Error("account_locked fired below the threshold")
	}
}

func TestLogin_FifthFailureLocksAccount(t *testing.T) {
	f := newFixture(t, plainUser(), plainCompany())
	ctx := context.Background()
	bad := loginInput()
	bad.Password = "not-the-password"

	for i := 1; i <= 5; i++ {
		if _, err := f.svc.Login(ctx, bad); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: error = %v, want ErrInvalidCredentials", i, err)
		}
	}
	stored, _ := f.users.GetByID(ctx, "u-1")
	if stored.LockedUntil == nil {
		t.Fatal("LockedUntil not set after 5 failures")
	}
	if !f.audit.has("account_locked") {
		t.Error("account_locked audit event missing")
	}

	// Even the correct password is rejected while locked, without bumping
	// the counter.
	_, err := f.svc.Login(ctx, loginInput())
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("error = %v, want ErrAccountLocked", err)
	}
	after, _ := f.users.GetByID(ctx, "u-1")
	if after.FailedLoginAttempts != 5 {
		t.Errorf("FailedLoginAttempts = %d, want unchanged 5", after.FailedLoginAttempts)
	}
	if a := f.attempts.last(); a == nil || a.FailureReason != attemptdomain.ReasonAccountLocked {
		t.Errorf("attempt record = %+v, want account_locked", a)
	}
}

func TestLogin_LockExpiresThenSucceeds(t *testing.T) {
	f := newFixture(t, plainUser(), plainCompany())
	ctx := context.Background()
	bad := loginInput()
	bad.Password = "not-the-password"

	for i := 0; i < 5; i++ {
		f.svc.Login(ctx, bad)
	}

	f.svc.nowF = func() time.Time { return time.Now().UTC().Add(16 * time.Minute) }
	res, err := f.svc.Login(ctx, loginInput())
	if err != nil {
		t.Fatalf("Login after lock expiry: %v", err)
	}
	if res.Session == nil {
		t.Fatal("no session after lock expiry")
	}
	stored, _ := f.users.GetByID(ctx, "u-1")
	if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
		t.Errorf("lockout state = (%d, %v), want cleared", stored.FailedLoginAttempts, stored.LockedUntil)
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	u := plainUser()
	u.Status = userdomain.UserStatusInactive
	f := newFixture(t, u, plainCompany())

	_, err := f.svc.Login(context.Background(), loginInput())
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("error = %v, want ErrAccountInactive", err)
	}
	if a := f.attempts.last(); a == nil || a.FailureReason != attemptdomain.ReasonAccountInactive {
		t.Errorf("attempt record = %+v, want account_inactive", a)
	}
}

func TestLogin_PasswordExpired(t *testing.T) {
	u := plainUser()
	u.NeedsPasswordReset = true
	f := newFixture(t, u, plainCompany())

	_, err := f.svc.Login(context.Background(), loginInput())
	if !errors.Is(err, ErrPasswordExpired) {
		t.Fatalf("error = %v, want ErrPasswordExpired", err)
	}
	if len(f.sessions.sessions) != 0 {
		t.Error("session created despite expired password")
	}
}

func TestLogin_UserMFARequiresChallenge(t *testing.T) {
	u := plainUser()
	u.MFAEnabled = true
	f := newFixture(t, u, plainCompany())

	res, err := f.svc.Login(context.Background(), loginInput())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !res.RequiresMFA {
		t.Fatal("RequiresMFA = false, want true")
	}
	if res.Session.MFAVerified {
		t.Error("pending session must not be MFA-verified")
	}
	// Counters are reset only on full authentication.
	stored, _ := f.users.GetByID(context.Background(), "u-1")
	if stored.LastLoginAt != nil {
		t.Error("LastLoginAt stamped before MFA completion")
	}
	// The try itself is still recorded.
	a := f.attempts.last()
	if a == nil {
		t.Fatal("no attempt row recorded for the MFA-pending login try")
	}
	if !a.Success || a.FailureReason != attemptdomain.NoteMFAPending {
		t.Errorf("attempt = success:%v reason:%q, want success with %q", a.Success, a.FailureReason, attemptdomain.NoteMFAPending)
	}
}

func TestLogin_CompanyPolicyRequiresChallenge(t *testing.T) {
	c := plainCompany()
	c.MFARequired = true
	f := newFixture(t, plainUser(), c) // user-level MFA off

	res, err := f.svc.Login(context.Background(), loginInput())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !res.RequiresMFA {
		t.Error("company MFA policy ignored")
	}
}

func TestLogin_TrustedDeviceBypass(t *testing.T) {
	u := plainUser()
	u.MFAEnabled = true
	f := newFixture(t, u, plainCompany())
	f.devices.trusted["device-token"] = "u-1"

	in := loginInput()
	in.DeviceTrustToken = "device-token"
	res, err := f.svc.Login(context.Background(), in)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.RequiresMFA {
		t.Error("trusted device should bypass the MFA step")
	}
	if !res.TrustedDevice {
		t.Error("TrustedDevice flag not set")
	}
	if !res.Session.MFAVerified {
		t.Error("bypassed session should be fully authenticated")
	}
	if len(f.devices.lastSeen) != 1 {
		t.Error("bypass should refresh the device's last-seen stamp")
	}
}

func TestLogin_CrossUserTrustTokenDoesNotBypass(t *testing.T) {
	u := plainUser()
	u.MFAEnabled = true
	f := newFixture(t, u, plainCompany())
	f.devices.trusted["device-token"] = "someone-else"

	in := loginInput()
	in.DeviceTrustToken = "device-token"
	res, err := f.svc.Login(context.Background(), in)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !res.RequiresMFA {
		t.Error("another user's trust token must not bypass MFA")
	}
}

func TestLogin_CompanySessionCapForwarded(t *testing.T) {
	c := plainCompany()
	c.MaxSessionsPerUser = 7
	f := newFixture(t, plainUser(), c)

	if _, err := f.svc.Login(context.Background(), loginInput()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if f.sessions.lastParam.MaxSessions != 7 {
		t.Errorf("MaxSessions = %d, want 7", f.sessions.lastParam.MaxSessions)
	}
}

func TestLogout(t *testing.T) {
	f := newFixture(t, plainUser(), plainCompany())
	ctx := context.Background()

	res, err := f.svc.Login(ctx, loginInput())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := f.svc.Logout(ctx, res.Session.SID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if got, _ := f.sessions.Get(ctx, res.Session.SID); got != nil {
		t.Error("session survived logout")
	}
	if !f.audit.has("logout") {
		t.Error("logout audit event missing")
	}

	// Unknown session ids are a no-op.
	if err := f.svc.Logout(ctx, uuid.New().String()); err != nil {
		t.Fatalf("Logout unknown: %v", err)
	}
}

func TestResetPassword_ClearsLockout(t *testing.T) {
	f := newFixture(t, plainUser(), plainCompany())
	ctx := context.Background()

	// Lock the account first.
	bad := loginInput()
	bad.Password = "not-the-password"
	for i := 0; i < 5; i++ {
		f.svc.Login(ctx, bad)
	}

	token, _, err := f.svc.RequestPasswordReset(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if token == "" {
		t.Fatal("no reset token issued")
	}

	const fresh = "Fresh-Passw0rd-Now!"
	if err := f.svc.ResetPassword(ctx, token, fresh); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	stored, _ := f.users.GetByID(ctx, "u-1")
	if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
		t.Error("reset did not clear the lockout state")
	}

	in := loginInput()
	in.Password = fresh
	if _, err := f.svc.Login(ctx, in); err != nil {
		t.Fatalf("Login with new password: %v", err)
	}
}

func TestRequestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t, plainUser(), plainCompany())
	token, _, err := f.svc.RequestPasswordReset(context.Background(), "stranger@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if token != "" {
		t.Error("token issued for unknown email")
	}
}

func TestResetPassword_GarbageToken(t *testing.T) {
	f := newFixture(t, plainUser(), plainCompany())
	err := f.svc.ResetPassword(context.Background(), "garbage", "Fresh-Passw0rd-Now!")
	if !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("error = %v, want ErrInvalidResetToken", err)
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, plainUser(), plainCompany())
	ctx := context.Background()

	if err := f.svc.ChangePassword(ctx, "u-1", "wrong-current", "Fresh-Passw0rd-Now!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current password: error = %v, want ErrInvalidCredentials", err)
	}

	const fresh = "Fresh-Passw0rd-Now!"
	if err := f.svc.ChangePassword(ctx, "u-1", testPassword, fresh); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	// The retired password is in the history now and cannot come back.
	if err := f.svc.ChangePassword(ctx, "u-1", fresh, testPassword); !errors.Is(err, ErrPasswordRecentlyUsed) {
		t.Errorf("reusing old password: error = %v, want ErrPasswordRecentlyUsed", err)
	}

	in := loginInput()
	in.Password = fresh
	if _, err := f.svc.Login(ctx, in); err != nil {
		t.Fatalf("Login with changed password: %v", err)
	}
}

func TestChangePassword_RejectsWeakPassword(t *testing.T) {
	f := newFixture(t, plainUser(), plainCompany())
	err := f.svc.ChangePassword(context.Background(), "u-1", testPassword, "short")
	if !errors.Is(err, ErrWeakPassword) {
		t.Errorf("ChangePassword error = %v, want ErrWeakPassword", err)
	}
}
