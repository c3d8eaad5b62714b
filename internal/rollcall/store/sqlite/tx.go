package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

const selectSession = `
SELECT session_id, title, description, room_id, host_id, start_at_ms, end_at_ms,
       grace_period_minutes, status, locked_at_ms, created_at_ms, updated_at_ms
FROM sessions`

const selectRecord = `
SELECT record_id, session_id, person_id, status, checkin_at_ms, checkout_at_ms,
       checkin_camera_id, checkout_camera_id, is_manual, notes, created_at_ms, updated_at_ms
FROM attendance_records`

const selectUnknown = `
SELECT u.unknown_id, u.session_id, u.camera_id, u.snapshot_ref, u.embedding_ref, u.event_at_ms,
       r.status, r.assigned_person_id, r.reviewed_by, r.reviewed_at_ms
FROM unknown_faces u
LEFT JOIN unknown_face_reviews r ON r.unknown_id = u.unknown_id`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) GetSession(ctx context.Context, id string) (types.Session, error) {
	return scanSession(t.tx.QueryRowContext(ctx, selectSession+` WHERE session_id = ?;`, id))
}

func (t *sqlTx) InsertSession(ctx context.Context, s types.Session) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO sessions(
  session_id, title, description, room_id, host_id, start_at_ms, end_at_ms,
  grace_period_minutes, status, locked_at_ms, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		s.ID, s.Title, nullString(s.Description), nullString(s.RoomID), nullString(s.HostID),
		toMs(s.StartTime), toMs(s.EndTime), s.GracePeriodMinutes, string(s.Status),
		msPtr(s.LockedAt), toMs(s.CreatedAt), toMs(s.UpdatedAt),
	)
	if err != nil {
		if isConstraint(err, "UNIQUE", "PRIMARY KEY") {
			return store.ErrDuplicate
		}
		return fmt.Errorf("InsertSession: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateSession(ctx context.Context, s types.Session) error {
	res, err := t.tx.ExecContext(ctx, `
UPDATE sessions
SET title = ?, description = ?, room_id = ?, host_id = ?,
    start_at_ms = ?, end_at_ms = ?, grace_period_minutes = ?,
    status = ?, locked_at_ms = ?, updated_at_ms = ?
WHERE session_id = ?;
`,
		s.Title, nullString(s.Description), nullString(s.RoomID), nullString(s.HostID),
		toMs(s.StartTime), toMs(s.EndTime), s.GracePeriodMinutes,
		string(s.Status), msPtr(s.LockedAt), toMs(s.UpdatedAt), s.ID,
	)
	if err != nil {
		return fmt.Errorf("UpdateSession: %w", err)
	}
	return requireOneRow(res)
}

func (t *sqlTx) InsertRoster(ctx context.Context, entries []types.RosterEntry, records []types.AttendanceRecord) error {
	for _, e := range entries {
		if _, err := t.tx.ExecContext(ctx, `
INSERT INTO session_rosters(session_id, person_id, is_required, created_at_ms)
VALUES (?, ?, ?, ?);
`, e.SessionID, e.PersonID, boolInt(e.IsRequired), toMs(e.CreatedAt)); err != nil {
			return rosterErr(err)
		}
	}
	for _, r := range records {
		if err := t.insertRecord(ctx, r); err != nil {
			return rosterErr(err)
		}
	}
	return nil
}

func (t *sqlTx) insertRecord(ctx context.Context, r types.AttendanceRecord) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO attendance_records(
  record_id, session_id, person_id, status, checkin_at_ms, checkout_at_ms,
  checkin_camera_id, checkout_camera_id, is_manual, notes, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		r.ID, r.SessionID, r.PersonID, string(r.Status), msPtr(r.CheckinTime), msPtr(r.CheckoutTime),
		nullString(r.CheckinCameraID), nullString(r.CheckoutCameraID), boolInt(r.IsManual),
		nullString(r.Notes), toMs(r.CreatedAt), toMs(r.UpdatedAt),
	)
	return err
}

func rosterErr(err error) error {
	switch {
	case isConstraint(err, "UNIQUE", "PRIMARY KEY"):
		return store.ErrDuplicate
	case isConstraint(err, "FOREIGN KEY"):
		return store.ErrNotFound
	}
	return fmt.Errorf("InsertRoster: %w", err)
}

func (t *sqlTx) GetRecord(ctx context.Context, sessionID, personID string) (types.AttendanceRecord, error) {
	return scanRecord(t.tx.QueryRowContext(ctx, selectRecord+`
WHERE session_id = ? AND person_id = ?;
`, sessionID, personID))
}

func (t *sqlTx) GetRecordByID(ctx context.Context, id string) (types.AttendanceRecord, error) {
	return scanRecord(t.tx.QueryRowContext(ctx, selectRecord+` WHERE record_id = ?;`, id))
}

func (t *sqlTx) UpdateRecord(ctx context.Context, r types.AttendanceRecord) error {
	res, err := t.tx.ExecContext(ctx, `
UPDATE attendance_records
SET status = ?, checkin_at_ms = ?, checkout_at_ms = ?,
    checkin_camera_id = ?, checkout_camera_id = ?,
    is_manual = ?, notes = ?, updated_at_ms = ?
WHERE record_id = ?;
`,
		string(r.Status), msPtr(r.CheckinTime), msPtr(r.CheckoutTime),
		nullString(r.CheckinCameraID), nullString(r.CheckoutCameraID),
		boolInt(r.IsManual), nullString(r.Notes), toMs(r.UpdatedAt), r.ID,
	)
	if err != nil {
		return fmt.Errorf("UpdateRecord: %w", err)
	}
	return requireOneRow(res)
}

func (t *sqlTx) InsertRecognition(ctx context.Context, ev types.RecognitionEvent) error {
	if err := ensureCamera(ctx, t.tx, ev.CameraID, toMs(ev.ReceivedAt)); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO recognition_events(
  event_id, session_id, camera_id, person_id, confidence, snapshot_ref,
  direction, event_at_ms, received_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		ev.ID, ev.SessionID, ev.CameraID, nullString(ev.PersonID), ev.Confidence,
		nullString(ev.SnapshotRef), string(ev.Direction), toMs(ev.Timestamp), toMs(ev.ReceivedAt),
	)
	if err != nil {
		if isConstraint(err, "FOREIGN KEY") {
			return store.ErrNotFound
		}
		return fmt.Errorf("InsertRecognition: %w", err)
	}
	return nil
}

func (t *sqlTx) InsertUnknown(ctx context.Context, u types.UnknownFace) error {
	nowMs := toMs(u.Timestamp)
	if err := ensureCamera(ctx, t.tx, u.CameraID, nowMs); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO unknown_faces(
  unknown_id, session_id, camera_id, snapshot_ref, embedding_ref, event_at_ms, created_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?);
`,
		u.ID, u.SessionID, u.CameraID, u.SnapshotRef, nullString(u.EmbeddingRef), nowMs, nowMs,
	)
	if err != nil {
		switch {
		case isConstraint(err, "UNIQUE", "PRIMARY KEY"):
			return store.ErrDuplicate
		case isConstraint(err, "FOREIGN KEY"):
			return store.ErrNotFound
		}
		return fmt.Errorf("InsertUnknown: %w", err)
	}
	return nil
}

func (t *sqlTx) GetUnknown(ctx context.Context, id string) (types.UnknownFace, error) {
	return scanUnknown(t.tx.QueryRowContext(ctx, selectUnknown+` WHERE u.unknown_id = ?;`, id))
}

func (t *sqlTx) ReviewUnknown(ctx context.Context, r types.UnknownReview) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO unknown_face_reviews(unknown_id, status, assigned_person_id, reviewed_by, reviewed_at_ms)
VALUES (?, ?, ?, ?, ?);
`, r.UnknownID, string(r.Status), nullString(r.AssignedPersonID), r.ReviewedBy, toMs(r.ReviewedAt))
	if err != nil {
		switch {
		case isConstraint(err, "UNIQUE", "PRIMARY KEY"):
			return store.ErrDuplicate
		case isConstraint(err, "FOREIGN KEY"):
			return store.ErrNotFound
		}
		return fmt.Errorf("ReviewUnknown: %w", err)
	}
	return nil
}

func scanSession(row rowScanner) (types.Session, error) {
	var (
		s                    types.Session
		desc, room, host     sql.NullString
		startMs, endMs       int64
		status               string
		lockedMs             sql.NullInt64
		createdMs, updatedMs int64
	)
	err := row.Scan(&s.ID, &s.Title, &desc, &room, &host, &startMs, &endMs,
		&s.GracePeriodMinutes, &status, &lockedMs, &createdMs, &updatedMs)
	if err != nil {
		return types.Session{}, notFound(err)
	}
	s.Description = desc.String
	s.RoomID = room.String
	s.HostID = host.String
	s.StartTime = fromMs(startMs)
	s.EndTime = fromMs(endMs)
	s.Status = types.SessionStatus(status)
	s.LockedAt = fromNullMs(lockedMs)
	s.CreatedAt = fromMs(createdMs)
	s.UpdatedAt = fromMs(updatedMs)
	return s, nil
}

func scanRecord(row rowScanner) (types.AttendanceRecord, error) {
	var (
		r                    types.AttendanceRecord
		status               string
		checkin, checkout    sql.NullInt64
		inCam, outCam, notes sql.NullString
		manual               int
		createdMs, updatedMs int64
	)
	err := row.Scan(&r.ID, &r.SessionID, &r.PersonID, &status, &checkin, &checkout,
		&inCam, &outCam, &manual, &notes, &createdMs, &updatedMs)
	if err != nil {
		return types.AttendanceRecord{}, notFound(err)
	}
	r.Status = types.AttendanceStatus(status)
	r.CheckinTime = fromNullMs(checkin)
	r.CheckoutTime = fromNullMs(checkout)
	r.CheckinCameraID = inCam.String
	r.CheckoutCameraID = outCam.String
	r.IsManual = manual == 1
	r.Notes = notes.String
	r.CreatedAt = fromMs(createdMs)
	r.UpdatedAt = fromMs(updatedMs)
	return r, nil
}

func scanUnknown(row rowScanner) (types.UnknownFace, error) {
	var (
		u                            types.UnknownFace
		embedding                    sql.NullString
		eventMs                      int64
		status, assigned, reviewedBy sql.NullString
		reviewedMs                   sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.SessionID, &u.CameraID, &u.SnapshotRef, &embedding, &eventMs,
		&status, &assigned, &reviewedBy, &reviewedMs)
	if err != nil {
		return types.UnknownFace{}, notFound(err)
	}
	u.EmbeddingRef = embedding.String
	u.Timestamp = fromMs(eventMs)
	u.ReviewStatus = types.ReviewPending
	if status.Valid {
		u.ReviewStatus = types.ReviewStatus(status.String)
	}
	u.AssignedPersonID = assigned.String
	u.ReviewedBy = reviewedBy.String
	u.ReviewedAt = fromNullMs(reviewedMs)
	return u, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

var constraintCodes = map[string]int{
	"UNIQUE":      sqlite3.SQLITE_CONSTRAINT_UNIQUE,
	"PRIMARY KEY": sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
	"FOREIGN KEY": sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY,
}

// isConstraint reports whether err is one of the named SQLite constraint
// failures.
func isConstraint(err error, kinds ...string) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	for _, k := range kinds {
		if se.Code() == constraintCodes[k] {
			return true
		}
	}
	return false
}
