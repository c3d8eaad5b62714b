package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store/memory"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func seedSession(t *testing.T, s *memory.AttendanceStore, id string, people ...string) {
	t.Helper()
	err := s.Atomic(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertSession(ctx, types.Session{
			ID: id, Title: "Lecture", StartTime: t0, EndTime: t0.Add(time.Hour),
			GracePeriodMinutes: 15, Status: types.SessionScheduled, CreatedAt: t0, UpdatedAt: t0,
		}); err != nil {
			return err
		}
		entries := make([]types.RosterEntry, 0, len(people))
		records := make([]types.AttendanceRecord, 0, len(people))
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

// ── Atomic ──

func TestAtomic_RollsBackOnError(t *testing.T) {
	s := memory.NewAttendanceStore()
	seedSession(t, s, "s1", "p1")

	boom := errors.New("boom")
	err := s.Atomic(context.Background(), func(ctx context.Context, tx store.Tx) error {
		sess, err := tx.GetSession(ctx, "s1")
		if err != nil {
			return err
		}
		sess.Status = types.SessionRunning
		if err := tx.UpdateSession(ctx, sess); err != nil {
			return err
		}
		if err := tx.InsertRecognition(ctx, types.RecognitionEvent{ID: "e1", SessionID: "s1", CameraID: "c1", PersonID: "p1"}); err != nil {
			return err
		}
		rec, err := tx.GetRecord(ctx, "s1", "p1")
		if err != nil {
			return err
		}
		rec.Status = types.StatusPresent
		at := t0
		rec.CheckinTime = &at
		if err := tx.UpdateRecord(ctx, rec); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Atomic: got %v, want boom", err)
	}

	sess, err := s.GetSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != types.SessionScheduled {
		t.Errorf("status = %q, want scheduled", sess.Status)
	}
	if n := s.RecognitionCount(); n != 0 {
		t.Errorf("recognitions = %d, want 0", n)
	}
	recs, _ := s.ListRecords(context.Background(), "s1")
	if len(recs) != 1 || recs[0].Status != types.StatusAbsent || recs[0].CheckinTime != nil {
		t.Errorf("record not restored: %+v", recs)
	}
}

func TestAtomic_CanceledContext(t *testing.T) {
	s := memory.NewAttendanceStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Atomic(ctx, func(context.Context, store.Tx) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Atomic: got %v, want context.Canceled", err)
	}
	if called {
		t.Error("fn ran on canceled context")
	}
}

// ── Roster ──

func TestInsertRoster_DuplicateWritesNothing(t *testing.T) {
	s := memory.NewAttendanceStore()
	seedSession(t, s, "s1", "p1")

	err := s.Atomic(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.InsertRoster(ctx,
			[]types.RosterEntry{{SessionID: "s1", PersonID: "p2"}, {SessionID: "s1", PersonID: "p1"}},
			[]types.AttendanceRecord{{ID: "r2", SessionID: "s1", PersonID: "p2"}, {ID: "r1b", SessionID: "s1", PersonID: "p1"}},
		)
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("InsertRoster: got %v, want ErrDuplicate", err)
	}
	recs, _ := s.ListRecords(context.Background(), "s1")
	if len(recs) != 1 {
		t.Errorf("records = %d, want 1", len(recs))
	}
}

// ── Unknown faces ──

func TestReviewUnknown_SecondReviewRejected(t *testing.T) {
	s := memory.NewAttendanceStore()
	seedSession(t, s, "s1")
	ctx := context.Background()

	err := s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertUnknown(ctx, types.UnknownFace{ID: "u1", SessionID: "s1", CameraID: "c1", SnapshotRef: "snap", Timestamp: t0})
	})
	if err != nil {
		t.Fatalf("InsertUnknown: %v", err)
	}

	review := func(status types.ReviewStatus) error {
		return s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.ReviewUnknown(ctx, types.UnknownReview{UnknownID: "u1", Status: status, ReviewedBy: "rev", ReviewedAt: t0})
		})
	}
	if err := review(types.ReviewIgnored); err != nil {
		t.Fatalf("first review: %v", err)
	}
	if err := review(types.ReviewAssigned); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("second review: got %v, want ErrDuplicate", err)
	}

	pending, _ := s.ListUnknown(ctx, store.UnknownFilter{Status: types.ReviewPending})
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
	ignored, _ := s.ListUnknown(ctx, store.UnknownFilter{SessionID: "s1", Status: types.ReviewIgnored})
	if len(ignored) != 1 || ignored[0].ReviewedBy != "rev" {
		t.Errorf("ignored = %+v", ignored)
	}
}

func TestListRecognitions_NewestFirstWithLimit(t *testing.T) {
	s := memory.NewAttendanceStore()
	seedSession(t, s, "s1")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ev := types.RecognitionEvent{ID: string(rune('a' + i)), SessionID: "s1", CameraID: "c1", Timestamp: t0.Add(time.Duration(i) * time.Minute)}
		if err := s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error { return tx.InsertRecognition(ctx, ev) }); err != nil {
			t.Fatalf("InsertRecognition: %v", err)
		}
	}
	got, err := s.ListRecognitions(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("ListRecognitions: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("got %+v", got)
	}
}
