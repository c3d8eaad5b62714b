package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SeedCamera is an inventory entry written by SeedDev.
type SeedCamera struct {
	ID        string
	Name      string
	Direction string
	Threshold *float64
}

type SeedDevOptions struct {
	// Cameras from the inventory file, upserted as known.
	Cameras []SeedCamera

	// DemoSession creates a scheduled "dev-session" with two rostered people
	// when true. Existing rows are left alone.
	DemoSession bool
}

func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC()
	nowMs := now.UnixMilli()

	for _, c := range opt.Cameras {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			continue
		}
		dir := c.Direction
		if dir == "" {
			dir = "entry"
		}
		var threshold any
		if c.Threshold != nil {
			threshold = *c.Threshold
		}
		if _, err := db.ExecContext(ctx, `
INSERT INTO cameras(
  camera_id, name, direction, threshold, known, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, 1, ?, ?)
ON CONFLICT(camera_id) DO UPDATE SET
  name          = excluded.name,
  direction     = excluded.direction,
  threshold     = excluded.threshold,
  known         = 1,
  updated_at_ms = excluded.updated_at_ms;
`, id, c.Name, dir, threshold, nowMs, nowMs); err != nil {
			return fmt.Errorf("seed camera %s: %w", id, err)
		}
	}

	if !opt.DemoSession {
		return nil
	}

	start := now.Truncate(time.Hour).Add(time.Hour)
	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO sessions(
  session_id, title, description, start_at_ms, end_at_ms,
  grace_period_minutes, status, created_at_ms, updated_at_ms
) VALUES ('dev-session', 'Dev Session', 'Seeded for local testing', ?, ?, 15, 'scheduled', ?, ?);
`, start.UnixMilli(), start.Add(time.Hour).UnixMilli(), nowMs, nowMs); err != nil {
		return fmt.Errorf("seed session: %w", err)
	}

	for i, person := range []string{"dev-person-1", "dev-person-2"} {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO session_rosters(session_id, person_id, is_required, created_at_ms)
VALUES ('dev-session', ?, 1, ?);
`, person, nowMs); err != nil {
			return fmt.Errorf("seed roster %s: %w", person, err)
		}
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO attendance_records(
  record_id, session_id, person_id, status, created_at_ms, updated_at_ms
) VALUES (?, 'dev-session', ?, 'absent', ?, ?);
`, fmt.Sprintf("dev-record-%d", i+1), person, nowMs, nowMs); err != nil {
			return fmt.Errorf("seed record %s: %w", person, err)
		}
	}

	return nil
}
