package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"tenantauth/backend/internal/audit"
	auditdomain "tenantauth/backend/internal/audit/domain"
)

// NewAuditEmitter returns an audit.Emitter that mirrors audit rows as OTel
// log records through the given LoggerProvider. A nil provider yields a
// no-op emitter.
func NewAuditEmitter(provider *sdklog.LoggerProvider) audit.Emitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &auditEmitter{logger: provider.Logger("tenantauth.audit")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *auditdomain.AuditLog) {}

type auditEmitter struct {
	logger otellog.Logger
}

// Emit converts the audit row to a log record. Best-effort: the SDK batches
// and drops on backpressure, the caller is never blocked on export.
func (e *auditEmitter) Emit(ctx context.Context, entry *auditdomain.AuditLog) {
	if entry == nil {
		return
	}
	rec := otellog.Record{}
	if !entry.CreatedAt.IsZero() {
		rec.SetTimestamp(entry.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if entry.Metadata != "" {
		rec.SetBody(otellog.StringValue(entry.Metadata))
	}
	rec.AddAttributes(
		otellog.String("audit.action", entry.Action),
		otellog.String("audit.resource", entry.Resource),
	)
	if entry.CompanyID != "" {
		rec.AddAttributes(otellog.String("company_id", entry.CompanyID))
	}
	if entry.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", entry.UserID))
	}
	if entry.IP != "" {
		rec.AddAttributes(otellog.String("client_ip", entry.IP))
	}
	e.logger.Emit(ctx, rec)
}
