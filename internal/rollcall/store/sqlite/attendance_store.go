package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	dbpkg "github.com/BrandonDHaskell/rollcall/internal/db"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// AttendanceStore reads through db and writes through the single writer
// goroutine. Every Atomic call is one SQL transaction.
type AttendanceStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAttendanceStore(db *sql.DB, writer *dbpkg.Worker) *AttendanceStore {
	return &AttendanceStore{db: db, writer: writer}
}

// Atomic runs fn inside one write transaction. fn must only touch the
// database through tx; the connection pool holds a single connection.
func (s *AttendanceStore) Atomic(ctx context.Context, fn store.TxFn) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &sqlTx{tx: tx})
	})
}

func (s *AttendanceStore) GetSession(ctx context.Context, id string) (types.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx, selectSession+` WHERE session_id = ?;`, id))
}

func (s *AttendanceStore) ListRecords(ctx context.Context, sessionID string) ([]types.AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectRecord+`
WHERE session_id = ?
ORDER BY created_at_ms, person_id;
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ListRecords query: %w", err)
	}
	defer rows.Close()

	out := make([]types.AttendanceRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ListRecords scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *AttendanceStore) ListRecognitions(ctx context.Context, sessionID string, limit int) ([]types.RecognitionEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, session_id, camera_id, person_id, confidence, snapshot_ref,
       direction, event_at_ms, received_at_ms
FROM recognition_events
WHERE session_id = ?
ORDER BY event_at_ms DESC, received_at_ms DESC
LIMIT ?;
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRecognitions query: %w", err)
	}
	defer rows.Close()

	out := make([]types.RecognitionEvent, 0)
	for rows.Next() {
		var (
			ev                  types.RecognitionEvent
			personID, snapshot  sql.NullString
			dir                 string
			eventMs, receivedMs int64
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.CameraID, &personID, &ev.Confidence,
			&snapshot, &dir, &eventMs, &receivedMs); err != nil {
			return nil, fmt.Errorf("ListRecognitions scan: %w", err)
		}
		ev.PersonID = personID.String
		ev.SnapshotRef = snapshot.String
		ev.Direction = types.Direction(dir)
		ev.Timestamp = fromMs(eventMs)
		ev.ReceivedAt = fromMs(receivedMs)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *AttendanceStore) ListUnknown(ctx context.Context, f store.UnknownFilter) ([]types.UnknownFace, error) {
	q := selectUnknown + ` WHERE 1 = 1`
	var args []any
	if f.SessionID != "" {
		q += ` AND u.session_id = ?`
		args = append(args, f.SessionID)
	}
	switch f.Status {
	case "":
	case types.ReviewPending:
		q += ` AND r.unknown_id IS NULL`
	default:
		q += ` AND r.status = ?`
		args = append(args, string(f.Status))
	}
	q += ` ORDER BY u.event_at_ms DESC, u.created_at_ms DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q+";", args...)
	if err != nil {
		return nil, fmt.Errorf("ListUnknown query: %w", err)
	}
	defer rows.Close()

	out := make([]types.UnknownFace, 0)
	for rows.Next() {
		u, err := scanUnknown(rows)
		if err != nil {
			return nil, fmt.Errorf("ListUnknown scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
