package store

import (
	"context"
	"time"
)

// AuditRecord captures one administrative change. OldValue and NewValue are
// encoded snapshots (CBOR); either may be nil.
type AuditRecord struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	OldValue   []byte
	NewValue   []byte
	RecordedAt time.Time
}

// AuditStore persists audit records as an append-only log.
type AuditStore interface {
	RecordAudit(ctx context.Context, rec AuditRecord) error
}
