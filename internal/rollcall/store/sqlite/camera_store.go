package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/rollcall/internal/db"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

type CameraStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewCameraStore(db *sql.DB, writer *dbpkg.Worker) *CameraStore {
	return &CameraStore{db: db, writer: writer}
}

func (s *CameraStore) GetCamera(ctx context.Context, id string) (types.Camera, error) {
	var (
		cam       types.Camera
		name      sql.NullString
		dir       string
		threshold sql.NullFloat64
		known     int
		status    string
		lastMs    sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT camera_id, name, direction, threshold, known, status, last_heartbeat_ms
FROM cameras
WHERE camera_id = ?;
`, strings.TrimSpace(id)).Scan(&cam.ID, &name, &dir, &threshold, &known, &status, &lastMs)
	if err != nil {
		return types.Camera{}, notFound(err)
	}
	cam.Name = name.String
	cam.Direction = types.Direction(dir)
	if threshold.Valid {
		v := threshold.Float64
		cam.Threshold = &v
	}
	cam.Known = known == 1
	cam.Status = types.CameraStatus(status)
	cam.LastHeartbeat = fromNullMs(lastMs)
	return cam, nil
}

// UpsertCamera writes an inventory entry and marks it known. Status and the
// last heartbeat are left as they are.
func (s *CameraStore) UpsertCamera(ctx context.Context, cam types.Camera) error {
	id := strings.TrimSpace(cam.ID)
	if id == "" {
		return fmt.Errorf("UpsertCamera: empty camera id")
	}
	dir := cam.Direction
	if dir == "" {
		dir = types.DirectionEntry
	}
	var threshold any
	if cam.Threshold != nil {
		threshold = *cam.Threshold
	}
	nowMs := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO cameras(
  camera_id, name, direction, threshold, known, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, 1, ?, ?)
ON CONFLICT(camera_id) DO UPDATE SET
  name          = excluded.name,
  direction     = excluded.direction,
  threshold     = excluded.threshold,
  known         = 1,
  updated_at_ms = excluded.updated_at_ms;
`, id, nullString(cam.Name), string(dir), threshold, nowMs, nowMs); err != nil {
			return fmt.Errorf("UpsertCamera: %w", err)
		}
		return nil
	})
}

// MarkSeen ensures the camera row exists (even if unknown) and records its
// latest status.
func (s *CameraStore) MarkSeen(ctx context.Context, id string, status types.CameraStatus, at time.Time) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	ms := toMs(at)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureCamera(ctx, tx, id, ms); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE cameras
SET status            = ?,
    last_heartbeat_ms = ?,
    updated_at_ms     = ?
WHERE camera_id = ?;
`, string(status), ms, ms, id); err != nil {
			return fmt.Errorf("MarkSeen update camera: %w", err)
		}
		return nil
	})
}
