package repository

import (
	"context"
	"time"

	"tenantauth/backend/internal/mfa/domain"
)

// Repository persists recovery codes and the user's MFA enrollment flags.
// Enrollment changes are transactional: codes and flags move together.
type Repository interface {
	// EnableMFA inserts the hashed codes and flips the user's MFA flags in
	// one transaction.
	EnableMFA(ctx context.Context, userID string, codeHashes []string, at time.Time) error
	// DisableMFA deletes all of the user's codes and clears the MFA flags
	// in one transaction.
	DisableMFA(ctx context.Context, userID string) error
	// ReplaceCodes swaps every existing code for the given fresh set in one
	// transaction. Old codes never validate once this returns.
	ReplaceCodes(ctx context.Context, userID string, codeHashes []string, at time.Time) error
	// ListUnused returns the user's unredeemed codes, oldest first.
	ListUnused(ctx context.Context, userID string) ([]*domain.RecoveryCode, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
	CountUnused(ctx context.Context, userID string) (int, error)
}
