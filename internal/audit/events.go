package audit

// Actions recorded by the auth, session, MFA, and device flows.
const (
	ActionLoginSuccess        = "login_success"
	ActionLoginFailed         = "login_failed"
	ActionAccountLocked       = "account_locked"
	ActionSessionRevoked      = "session_revoked"
	ActionLogout              = "logout"
	ActionMFAEnabled          = "mfa_enabled"
	ActionMFADisabled         = "mfa_disabled"
	ActionMFACodeSent         = "mfa_code_sent"
	ActionMFABackupCodeUsed   = "mfa_backup_code_used"
	ActionMFACodesRegenerated = "mfa_codes_regenerated"
	ActionDeviceTrusted       = "device_trusted"
	ActionDeviceRevoked       = "device_revoked"
	ActionPasswordReset       = "password_reset"
	ActionPasswordChanged     = "password_changed"
)

// Resources the actions above apply to.
const (
	ResourceAuth    = "auth"
	ResourceSession = "session"
	ResourceMFA     = "mfa"
	ResourceDevice  = "device"
)
