package domain

import "time"

// AuditLog represents one security-relevant event. Rows are append-only.
type AuditLog struct {
	ID        string
	CompanyID string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
