package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// ensureCamera guarantees a cameras row exists for cameraID so that foreign
// keys from detections and heartbeats hold. New rows start unknown; only the
// inventory file (or an admin upsert) marks a camera known.
//
// Must be called inside an existing transaction.
func ensureCamera(ctx context.Context, tx *sql.Tx, cameraID string, nowMs int64) error {
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO cameras(
  camera_id, known, created_at_ms, updated_at_ms
) VALUES (?, 0, ?, ?);
`, cameraID, nowMs, nowMs); err != nil {
		return fmt.Errorf("ensureCamera %s: %w", cameraID, err)
	}
	return nil
}
