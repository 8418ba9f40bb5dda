package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"tenantauth/backend/internal/auth"
	"tenantauth/backend/internal/mfa"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Printf("server: encode response: %v", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorBody{Error: code})
}

// writeServiceError maps service sentinels to stable error codes. Anything
// unmapped is a store failure and surfaces as a 500 without detail.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, auth.ErrAccountLocked):
		writeError(w, http.StatusForbidden, "account_locked")
	case errors.Is(err, auth.ErrAccountInactive):
		writeError(w, http.StatusForbidden, "account_inactive")
	case errors.Is(err, auth.ErrPasswordExpired):
		writeError(w, http.StatusForbidden, "password_expired")
	case errors.Is(err, auth.ErrPasswordRecentlyUsed):
		writeError(w, http.StatusBadRequest, "password_recently_used")
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "weak_password")
	case errors.Is(err, auth.ErrInvalidResetToken):
		writeError(w, http.StatusBadRequest, "invalid_reset_token")
	case errors.Is(err, mfa.ErrNoPendingMFA):
		writeError(w, http.StatusBadRequest, "no_pending_mfa")
	case errors.Is(err, mfa.ErrCodeExpired):
		writeError(w, http.StatusBadRequest, "mfa_code_expired")
	case errors.Is(err, mfa.ErrCodeInvalid):
		writeError(w, http.StatusUnauthorized, "mfa_code_invalid")
	case errors.Is(err, mfa.ErrRecoveryCodeInvalid):
		writeError(w, http.StatusUnauthorized, "recovery_code_invalid")
	case errors.Is(err, mfa.ErrMFAAlreadyEnabled):
		writeError(w, http.StatusConflict, "mfa_already_enabled")
	case errors.Is(err, mfa.ErrMFANotEnabled):
		writeError(w, http.StatusConflict, "mfa_not_enabled")
	case errors.Is(err, mfa.ErrEmailNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "email_not_configured")
	case errors.Is(err, mfa.ErrEmailSend):
		writeError(w, http.StatusServiceUnavailable, "email_send_failed")
	case errors.Is(err, mfa.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		log.Printf("server: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}
