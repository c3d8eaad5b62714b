package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

// AuditStore is an in-memory append-only audit log.
// It is intended for use in tests and dev environments.
type AuditStore struct {
	mu      sync.Mutex
	records []store.AuditRecord
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) RecordAudit(_ context.Context, rec store.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of all recorded audit entries.  Test-only helper.
func (s *AuditStore) Records() []store.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AuditRecord, len(s.records))
	copy(out, s.records)
	return out
}
