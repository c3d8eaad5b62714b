package service_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

func (h *harness) queueUnknown(t *testing.T, sessionID, when string) string {
	t.Helper()
	res, err := h.ingest.IngestUnknown(context.Background(), service.Unknown{
		SessionID: sessionID, CameraID: "cam-2", SnapshotRef: "snap/" + when + ".jpg", Timestamp: at(when),
	})
	if err != nil {
		t.Fatalf("IngestUnknown: %v", err)
	}
	return res.UnknownID
}

func TestAssign_MatchesDirectRecognition(t *testing.T) {
	h := newHarness(t)
	sess := h.runningSession(t, "alice")
	ctx := context.Background()
	id := h.queueUnknown(t, sess.ID, "08:20")
	h.notifier.Reset()

	h.clock.Set(at("10:00"))
	res, err := h.review.Assign(ctx, id, types.AssignRequest{PersonID: "alice", ReviewerID: "ta"})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !res.Accepted || !res.Applied || res.EventID == "" {
		t.Fatalf("result = %+v", res)
	}
	if res.Unknown.ReviewStatus != types.ReviewAssigned || res.Unknown.AssignedPersonID != "alice" || res.Unknown.ReviewedBy != "ta" {
		t.Errorf("unknown = %+v", res.Unknown)
	}

	// The face's own timestamp drives classification, not the review time.
	rec := h.record(t, sess.ID, "alice")
	if rec.Status != types.StatusLate || !rec.CheckinTime.Equal(at("08:20")) || rec.CheckinCameraID != "cam-2" {
		t.Errorf("record = %+v", rec)
	}

	evs, _ := h.ledger.ListRecognitions(ctx, sess.ID, 0)
	if len(evs) != 1 {
		t.Fatalf("recognition events = %d, want 1", len(evs))
	}
	ev := evs[0]
	if ev.ID != res.EventID || ev.PersonID != "alice" || ev.Confidence != 1.0 ||
		ev.Direction != types.DirectionEntry || ev.SnapshotRef != "snap/08:20.jpg" {
		t.Errorf("event = %+v", ev)
	}

	got := h.notifier.Types(notify.SessionChannel(sess.ID))
	want := []string{notify.TypeUnknownReviewed, notify.TypeRecognition}
	if !slices.Equal(got, want) {
		t.Errorf("published %v, want %v", got, want)
	}
}

func TestAssign_SecondReviewRejected(t *testing.T) {
	h := newHarness(t)
	sess := h.runningSession(t, "alice", "bob")
	ctx := context.Background()
	id := h.queueUnknown(t, sess.ID, "08:05")

	if _, err := h.review.Assign(ctx, id, types.AssignRequest{PersonID: "alice", ReviewerID: "ta"}); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	_, err := h.review.Assign(ctx, id, types.AssignRequest{PersonID: "bob", ReviewerID: "ta"})
	if !errors.Is(err, service.ErrAlreadyReviewed) {
		t.Fatalf("second Assign: got %v, want ErrAlreadyReviewed", err)
	}
	if _, err := h.review.Ignore(ctx, id, types.IgnoreRequest{ReviewerID: "ta"}); !errors.Is(err, service.ErrAlreadyReviewed) {
		t.Fatalf("Ignore after assign: got %v, want ErrAlreadyReviewed", err)
	}
	if rec := h.record(t, sess.ID, "bob"); rec.Status != types.StatusAbsent {
		t.Errorf("bob = %+v", rec)
	}
	if n := h.store.RecognitionCount(); n != 1 {
		t.Errorf("recognition events = %d, want 1", n)
	}
}

func TestAssign_EndedSessionWritesNothing(t *testing.T) {
	h := newHarness(t)
	sess := h.runningSession(t, "alice")
	ctx := context.Background()
	id := h.queueUnknown(t, sess.ID, "08:05")

	if _, err := h.sessions.End(ctx, sess.ID, "admin"); err != nil {
		t.Fatalf("End: %v", err)
	}
	_, err := h.review.Assign(ctx, id, types.AssignRequest{PersonID: "alice", ReviewerID: "ta"})
	if !errors.Is(err, service.ErrSessionNotActive) {
		t.Fatalf("got %v, want ErrSessionNotActive", err)
	}
	pending, _ := h.review.List(ctx, storeFilter(sess.ID, types.ReviewPending))
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}
	if n := h.store.RecognitionCount(); n != 0 {
		t.Errorf("recognition events = %d, want 0", n)
	}
}

func TestAssign_NotOnRosterStillReviewed(t *testing.T) {
	h := newHarness(t)
	sess := h.runningSession(t, "alice")
	id := h.queueUnknown(t, sess.ID, "08:05")

	res, err := h.review.Assign(context.Background(), id, types.AssignRequest{PersonID: "visitor", ReviewerID: "ta"})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if res.Applied || res.Reason != service.ReasonNotOnRoster {
		t.Errorf("result = %+v", res)
	}
	if res.Unknown.ReviewStatus != types.ReviewAssigned {
		t.Errorf("unknown = %+v", res.Unknown)
	}
}

func TestIgnore_LeavesLedgerAlone(t *testing.T) {
	h := newHarness(t)
	sess := h.runningSession(t, "alice")
	ctx := context.Background()
	id := h.queueUnknown(t, sess.ID, "08:05")

	u, err := h.review.Ignore(ctx, id, types.IgnoreRequest{ReviewerID: "ta"})
	if err != nil {
		t.Fatalf("Ignore: %v", err)
	}
	if u.ReviewStatus != types.ReviewIgnored || u.ReviewedAt == nil || u.AssignedPersonID != "" {
		t.Errorf("unknown = %+v", u)
	}
	if rec := h.record(t, sess.ID, "alice"); rec.Status != types.StatusAbsent {
		t.Errorf("record = %+v", rec)
	}
	if n := h.store.RecognitionCount(); n != 0 {
		t.Errorf("recognition events = %d, want 0", n)
	}

	ignored, _ := h.review.List(ctx, storeFilter(sess.ID, types.ReviewIgnored))
	if len(ignored) != 1 || ignored[0].ID != id {
		t.Errorf("ignored = %+v", ignored)
	}
}

func TestReview_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.review.Assign(ctx, "missing", types.AssignRequest{PersonID: "p", ReviewerID: "r"}); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("Assign missing: got %v", err)
	}
	var vErr *service.ValidationError
	if _, err := h.review.Assign(ctx, "x", types.AssignRequest{}); !errors.As(err, &vErr) {
		t.Errorf("Assign empty: got %v", err)
	}
	if _, err := h.review.Ignore(ctx, "x", types.IgnoreRequest{}); !errors.As(err, &vErr) {
		t.Errorf("Ignore empty: got %v", err)
	}
	if _, err := h.review.List(ctx, storeFilter("", "maybe")); !errors.As(err, &vErr) {
		t.Errorf("List bad status: got %v", err)
	}
}

func TestAssign_AppliesAfterCallerCancels(t *testing.T) {
	h := newHarness(t)
	sess := h.runningSession(t, "alice")
	id := h.queueUnknown(t, sess.ID, "08:20")
	hs := &hookedStore{AttendanceStore: h.store}
	_, review := h.withStore(hs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hs.afterNextAtomic(cancel)

	res, err := review.Assign(ctx, id, types.AssignRequest{PersonID: "alice", ReviewerID: "ta"})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !res.Applied {
		t.Fatalf("result = %+v", res)
	}
	if rec := h.record(t, sess.ID, "alice"); rec.Status != types.StatusLate || !rec.CheckinTime.Equal(at("08:20")) {
		t.Errorf("record = %+v", rec)
	}
}
