package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics counts login and MFA outcomes. All methods are safe for
// concurrent use and no-op on a nil receiver.
type Metrics struct {
	logins           metric.Int64Counter
	mfaVerifications metric.Int64Counter
	lockouts         metric.Int64Counter
}

// NewMetrics registers the auth counters on the given provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("tenantauth.auth")
	logins, err := meter.Int64Counter("auth.logins",
		metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		return nil, err
	}
	mfa, err := meter.Int64Counter("auth.mfa_verifications",
		metric.WithDescription("MFA verifications by method and outcome"))
	if err != nil {
		return nil, err
	}
	lockouts, err := meter.Int64Counter("auth.lockouts",
		metric.WithDescription("Login attempts rejected because the account is locked"))
	if err != nil {
		return nil, err
	}
	return &Metrics{logins: logins, mfaVerifications: mfa, lockouts: lockouts}, nil
}

func (m *Metrics) RecordLogin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordMFAVerification(ctx context.Context, method string, success bool) {
	if m == nil {
		return
	}
	m.mfaVerifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("success", success),
	))
}

func (m *Metrics) RecordLockout(ctx context.Context) {
	if m == nil {
		return
	}
	m.lockouts.Add(ctx, 1)
}
