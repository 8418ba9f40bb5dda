package server

import (
	"errors"
	"net/http"
	"time"

	"tenantauth/backend/internal/auth"
	sessiondomain "tenantauth/backend/internal/session/domain"
	userdomain "tenantauth/backend/internal/user/domain"
)

type userView struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	CompanyID  string `json:"companyId"`
	MFAEnabled bool   `json:"mfaEnabled"`
}

type sessionView struct {
	ExpiresAt   time.Time `json:"expiresAt"`
	MFAVerified bool      `json:"mfaVerified"`
}

func viewUser(u *userdomain.User) *userView {
	return &userView{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		CompanyID:  u.CompanyID,
		MFAEnabled: u.MFAEnabled,
	}
}

func viewSession(s *sessiondomain.Session) sessionView {
	return sessionView{ExpiresAt: s.ExpiresAt, MFAVerified: s.MFAVerified}
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Source     string `json:"source"`
	RememberMe bool   `json:"rememberMe"`
}

type loginResponse struct {
	RequiresMFA bool        `json:"requiresMfa"`
	User        *userView   `json:"user,omitempty"`
	Session     sessionView `json:"session"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Source == "" {
		req.Source = "web"
	}

	res, err := s.auth.Login(r.Context(), auth.LoginInput{
		Email:            req.Email,
		Password:         req.Password,
		Source:           req.Source,
		IP:               clientIP(r),
		UserAgent:        r.UserAgent(),
		SessionID:        cookieValue(r, SessionCookie),
		DeviceTrustToken: cookieValue(r, DeviceTrustCookie),
		RememberMe:       req.RememberMe,
	})
	if err != nil {
		s.metrics.RecordLogin(r.Context(), loginOutcome(err))
		if errors.Is(err, auth.ErrAccountLocked) {
			s.metrics.RecordLockout(r.Context())
		}
		writeServiceError(w, err)
		return
	}

	s.setSessionCookie(w, res.Session.SID, res.Session.ExpiresAt)
	resp := loginResponse{RequiresMFA: res.RequiresMFA, Session: viewSession(res.Session)}
	if res.RequiresMFA {
		s.metrics.RecordLogin(r.Context(), "mfa_pending")
	} else {
		s.metrics.RecordLogin(r.Context(), "success")
		resp.User = viewUser(res.User)
	}
	writeJSON(w, http.StatusOK, resp)
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, auth.ErrAccountLocked):
		return "locked"
	case errors.Is(err, auth.ErrAccountInactive):
		return "inactive"
	case errors.Is(err, auth.ErrPasswordExpired):
		return "password_expired"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "error"
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), cookieValue(r, SessionCookie)); err != nil {
		writeServiceError(w, err)
		return
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pendingSession returns the session awaiting MFA completion, or writes
// no_pending_mfa. A fully verified session is not "pending".
func (s *Server) pendingSession(w http.ResponseWriter, r *http.Request) (*sessiondomain.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), cookieValue(r, SessionCookie))
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	if sess == nil || sess.UserID == "" || sess.MFAVerified {
		writeError(w, http.StatusBadRequest, "no_pending_mfa")
		return nil, false
	}
	return sess, true
}

// authedSession returns the fully authenticated session, or writes
// unauthorized.
func (s *Server) authedSession(w http.ResponseWriter, r *http.Request) (*sessiondomain.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), cookieValue(r, SessionCookie))
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	if sess == nil || sess.UserID == "" || !sess.MFAVerified {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	// Slide the inactivity window on every authenticated request. The
	// session was just validated, so a Touch failure is not worth
	// failing the request over.
	_ = s.sessions.Touch(r.Context(), sess.SID)
	return sess, true
}

func (s *Server) handleMFASend(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.pendingSession(w, r)
	if !ok {
		return
	}
	minutes, err := s.mfa.SendCode(r.Context(), sess.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expiresInMinutes": minutes})
}

type mfaVerifyRequest struct {
	Code        string `json:"code"`
	TrustDevice bool   `json:"trustDevice"`
}

type mfaVerifyResponse struct {
	User    userView    `json:"user"`
	Session sessionView `json:"session"`
}

func (s *Server) handleMFAVerify(w http.ResponseWriter, r *http.Request) {
	var req mfaVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, ok := s.pendingSession(w, r)
	if !ok {
		return
	}

	user, verified, err := s.mfa.VerifyCode(r.Context(), sess.UserID, req.Code, sess.SID)
	if err != nil {
		s.metrics.RecordMFAVerification(r.Context(), "code", false)
		writeServiceError(w, err)
		return
	}
	s.metrics.RecordMFAVerification(r.Context(), "code", true)
	s.finishVerify(w, r, user, verified, req.TrustDevice)
}

type mfaRecoveryRequest struct {
	RecoveryCode string `json:"recoveryCode"`
}

func (s *Server) handleMFAVerifyRecovery(w http.ResponseWriter, r *http.Request) {
	var req mfaRecoveryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, ok := s.pendingSession(w, r)
	if !ok {
		return
	}

	user, verified, err := s.mfa.VerifyRecoveryCode(r.Context(), sess.UserID, req.RecoveryCode, sess.SID)
	if err != nil {
		s.metrics.RecordMFAVerification(r.Context(), "recovery", false)
		writeServiceError(w, err)
		return
	}
	s.metrics.RecordMFAVerification(r.Context(), "recovery", true)
	s.finishVerify(w, r, user, verified, false)
}

// finishVerify refreshes the session cookie, optionally trusts the device,
// and writes the authenticated response.
func (s *Server) finishVerify(w http.ResponseWriter, r *http.Request, user *userdomain.User, sess *sessiondomain.Session, trustDevice bool) {
	s.setSessionCookie(w, sess.SID, sess.ExpiresAt)

	if trustDevice {
		token, _, err := s.devices.Create(r.Context(), sess.UserID, sess.CompanyID, r.UserAgent(), clientIP(r))
		if err == nil {
			s.setTrustCookie(w, token)
		}
		// On error the login already succeeded; a failed trust registration
		// only costs the user a challenge next time.
	}

	writeJSON(w, http.StatusOK, mfaVerifyResponse{
		User:    *viewUser(user),
		Session: viewSession(sess),
	})
}

func (s *Server) handleMFAEnable(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authedSession(w, r)
	if !ok {
		return
	}
	codes, err := s.mfa.Enable(r.Context(), sess.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"recoveryCodes": codes})
}

func (s *Server) handleMFADisable(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authedSession(w, r)
	if !ok {
		return
	}
	if err := s.mfa.Disable(r.Context(), sess.UserID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMFAStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authedSession(w, r)
	if !ok {
		return
	}
	st, err := s.mfa.GetStatus(r.Context(), sess.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled":        st.Enabled,
		"enabledAt":      st.EnabledAt,
		"codesRemaining": st.RemainingCodes,
	})
}

func (s *Server) handleMFARegenerate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authedSession(w, r)
	if !ok {
		return
	}
	codes, err := s.mfa.Regenerate(r.Context(), sess.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"recoveryCodes": codes})
}

type deviceView struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	LastSeenAt     *time.Time `json:"lastSeenAt,omitempty"`
	LastIPAddress  string     `json:"lastIpAddress,omitempty"`
	TrustExpiresAt time.Time  `json:"trustExpiresAt"`
}

func (s *Server) handleDeviceList(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authedSession(w, r)
	if !ok {
		return
	}
	devices, err := s.devices.List(r.Context(), sess.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, deviceView{
			ID:             d.ID,
			Name:           d.DeviceName,
			LastSeenAt:     d.LastSeenAt,
			LastIPAddress:  d.LastIPAddress,
			TrustExpiresAt: d.TrustExpiresAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string][]deviceView{"devices": views})
}

func (s *Server) handleDeviceRevoke(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authedSession(w, r)
	if !ok {
		return
	}
	if err := s.devices.Revoke(r.Context(), sess.UserID, sess.CompanyID, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type resetRequestBody struct {
	Email string `json:"email"`
}

// handleResetRequest issues a reset token. The response is identical for
// known and unknown addresses; delivery of the token is the mail
// collaborator's job, not this endpoint's.
func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequestBody
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, _, err := s.auth.RequestPasswordReset(r.Context(), req.Email); err != nil && !errors.Is(err, auth.ErrInvalidResetToken) {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

type resetPasswordBody struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordBody
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type changePasswordBody struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordBody
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, ok := s.authedSession(w, r)
	if !ok {
		return
	}
	if err := s.auth.ChangePassword(r.Context(), sess.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
