// Package audit appends security-relevant events to the audit log.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"tenantauth/backend/internal/audit/domain"
	auditrepo "tenantauth/backend/internal/audit/repository"
)

// SentinelCompanyID is the company_id used for events that have no company
// context (e.g. a failed login for an unknown email).
const SentinelCompanyID = "_system"

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, companyID, userID, action, resource, metadata string)
}

// Emitter mirrors persisted events to an external sink (e.g. OTel logs).
// Implementations must be best-effort and non-blocking.
type Emitter interface {
	Emit(ctx context.Context, e *domain.AuditLog)
}

// Logger implements AuditLogger using the audit repository and an optional
// secondary emitter.
type Logger struct {
	repo    auditrepo.Repository
	emitter Emitter
}

// NewLogger returns an AuditLogger that persists to repo. emitter may be nil.
func NewLogger(repo auditrepo.Repository, emitter Emitter) *Logger {
	return &Logger{repo: repo, emitter: emitter}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, companyID, userID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	if companyID == "" {
		companyID = SentinelCompanyID
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ipFromContext(ctx),
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
		return
	}
	if l.emitter != nil {
		l.emitter.Emit(ctx, entry)
	}
}

type ipKey struct{}

// WithIP stores the client IP on the context so LogEvent can record it.
func WithIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ipKey{}, ip)
}

func ipFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ipKey{}).(string); ok && ip != "" {
		return ip
	}
	return "unknown"
}
