package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/rollcall/internal/db"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

type CameraStatusStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewCameraStatusStore(db *sql.DB, writer *dbpkg.Worker) *CameraStatusStore {
	return &CameraStatusStore{db: db, writer: writer}
}

func (s *CameraStatusStore) RecordStatus(ctx context.Context, rec store.CameraStatusRecord) error {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	ms := toMs(rec.ReceivedAt)

	var fps any
	if rec.FPS != nil {
		fps = *rec.FPS
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureCamera(ctx, tx, rec.CameraID, ms); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO camera_statuses(camera_id, status, fps, error_msg, received_at_ms)
VALUES (?, ?, ?, ?, ?);
`, rec.CameraID, string(rec.Status), fps, nullString(rec.ErrorMsg), ms); err != nil {
			return fmt.Errorf("RecordStatus insert: %w", err)
		}
		return nil
	})
}

// PruneOlderThan deletes heartbeat rows received before cutoff and returns
// how many were removed.
func (s *CameraStatusStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM camera_statuses WHERE received_at_ms < ?;
`, toMs(cutoff))
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
