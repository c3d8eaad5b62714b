package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/rollcall/internal/db"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

type AuditStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAuditStore(db *sql.DB, writer *dbpkg.Worker) *AuditStore {
	return &AuditStore{db: db, writer: writer}
}

func (s *AuditStore) RecordAudit(ctx context.Context, rec store.AuditRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO audit_logs(
  actor_id, action, entity_type, entity_id, old_value, new_value, recorded_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?);
`,
			rec.ActorID, rec.Action, rec.EntityType, rec.EntityID,
			blob(rec.OldValue), blob(rec.NewValue), toMs(rec.RecordedAt),
		); err != nil {
			return fmt.Errorf("RecordAudit insert: %w", err)
		}
		return nil
	})
}

func blob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
