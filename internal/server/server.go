// Package server exposes the auth, session, MFA, and device operations over
// HTTP/JSON. The transport is deliberately thin: cookies in, service calls,
// sentinel-to-code mapping out.
package server

import (
	"net"
	"net/http"
	"strings"
	"time"

	"tenantauth/backend/internal/audit"
	"tenantauth/backend/internal/auth"
	"tenantauth/backend/internal/device"
	"tenantauth/backend/internal/mfa"
	"tenantauth/backend/internal/session"
	"tenantauth/backend/internal/telemetry/otel"
)

// Cookie names. Both cookies are opaque to clients.
const (
	SessionCookie     = "sid"
	DeviceTrustCookie = "device_trust"
)

// Server holds the services behind the HTTP surface.
type Server struct {
	auth     *auth.Service
	mfa      *mfa.Service
	sessions *session.Manager
	devices  *device.TrustService
	metrics  *otel.Metrics
	trustTTL time.Duration
}

// New returns a Server. metrics may be nil.
func New(
	authSvc *auth.Service,
	mfaSvc *mfa.Service,
	sessions *session.Manager,
	devices *device.TrustService,
	metrics *otel.Metrics,
	trustTTL time.Duration,
) *Server {
	if trustTTL <= 0 {
		trustTTL = device.DefaultTrustTTL
	}
	return &Server{
		auth:     authSvc,
		mfa:      mfaSvc,
		sessions: sessions,
		devices:  devices,
		metrics:  metrics,
		trustTTL: trustTTL,
	}
}

// Routes returns the handler for all endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /v1/auth/logout", s.handleLogout)
	mux.HandleFunc("POST /v1/auth/password/reset-request", s.handleResetRequest)
	mux.HandleFunc("POST /v1/auth/password/reset", s.handleResetPassword)
	mux.HandleFunc("POST /v1/auth/password/change", s.handleChangePassword)

	mux.HandleFunc("POST /v1/mfa/send", s.handleMFASend)
	mux.HandleFunc("POST /v1/mfa/verify", s.handleMFAVerify)
	mux.HandleFunc("POST /v1/mfa/verify-recovery", s.handleMFAVerifyRecovery)
	mux.HandleFunc("POST /v1/mfa/enable", s.handleMFAEnable)
	mux.HandleFunc("POST /v1/mfa/disable", s.handleMFADisable)
	mux.HandleFunc("GET /v1/mfa/status", s.handleMFAStatus)
	mux.HandleFunc("POST /v1/mfa/codes/regenerate", s.handleMFARegenerate)

	mux.HandleFunc("GET /v1/devices", s.handleDeviceList)
	mux.HandleFunc("DELETE /v1/devices/{id}", s.handleDeviceRevoke)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	return withClientIP(mux)
}

// withClientIP stores the caller's address on the context so audit rows
// carry it.
func withClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(audit.WithIP(r.Context(), clientIP(r))))
	})
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sid string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) setTrustCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     DeviceTrustCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().UTC().Add(s.trustTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
