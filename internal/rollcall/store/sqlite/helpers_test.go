package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/rollcall/internal/db"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production. The connection is closed when the test ends.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// The shared-cache URI keeps the database alive for the lifetime of the
	// pool; each test gets its own name.
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		t.Name(),
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn, closed when the test ends.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// seedSession inserts a scheduled session rostered with people, each with an
// absent record "<session>-<person>".
func seedSession(t *testing.T, s store.AttendanceStore, id string, people ...string) {
	t.Helper()
	err := s.Atomic(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertSession(ctx, types.Session{
			ID: id, Title: "Lecture", StartTime: t0, EndTime: t0.Add(time.Hour),
			GracePeriodMinutes: 15, Status: types.SessionScheduled, CreatedAt: t0, UpdatedAt: t0,
		}); err != nil {
			return err
		}
		var entries []types.RosterEntry
		var records []types.AttendanceRecord
		for _, p := range people {
			entries = append(entries, types.RosterEntry{SessionID: id, PersonID: p, IsRequired: true, CreatedAt: t0})
			records = append(records, types.AttendanceRecord{
				ID: id + "-" + p, SessionID: id, PersonID: p, Status: types.StatusAbsent, CreatedAt: t0, UpdatedAt: t0,
			})
		}
		return tx.InsertRoster(ctx, entries, records)
	})
	if err != nil {
		t.Fatalf("seedSession: %v", err)
	}
}
