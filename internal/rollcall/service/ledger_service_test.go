package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/audit"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// ── Manual attendance ──

func TestManualCheckin_ClassifiesAtCurrentTime(t *testing.T) {
	h := newHarness(t)
	sess := h.runningSession(t, "alice", "bob")
	ctx := context.Background()

	h.clock.Set(at("08:30"))
	rec, err := h.ledger.ManualCheckin(ctx, types.ManualAttendanceRequest{
		SessionID: sess.ID, PersonID: "bob", Notes: "badge reader down", ActorID: "host",
	})
	if err != nil {
		t.Fatalf("ManualCheckin: %v", err)
	}
	if rec.Status != types.StatusLate || !rec.CheckinTime.Equal(at("08:30")) {
		t.Errorf("record = %+v", rec)
	}
	if !rec.IsManual || rec.Notes != "badge reader down" {
		t.Errorf("manual flag or notes missing: %+v", rec)
	}
}

func TestManualCheckin_KeepsEarlierCheckin(t *testing.T) {
	h := newHarness(t)
	sess := h.runningSession(t, "alice")
	ctx := context.Background()

	h.recognize(t, sess.ID, "alice", types.DirectionEntry, at("08:02"))
	h.clock.Set(at("08:40"))
	rec, err := h.ledger.ManualCheckin(ctx, types.ManualAttendanceRequest{SessionID: sess.ID, PersonID: "alice", ActorID: "host"})
	if err != nil {
		t.Fatalf("ManualCheckin: %v", err)
	}
	if !rec.CheckinTime.Equal(at("08:02")) || rec.Status != types.StatusPresent {
		t.Errorf("record = %+v", rec)
	}
}

func TestManualCheckout(t *testing.T) {
	h := newHarness(t)
	sess := h.runningSession(t, "alice")
	h.recognize(t, sess.ID, "alice", types.DirectionEntry, at("08:02"))

	h.clock.Set(at("08:55"))
	rec, err := h.ledger.ManualCheckout(context.Background(), types.ManualAttendanceRequest{SessionID: sess.ID, PersonID: "alice", ActorID: "host"})
	if err != nil {
		t.Fatalf("ManualCheckout: %v", err)
	}
	if rec.CheckoutTime == nil || !rec.CheckoutTime.Equal(at("08:55")) || rec.Status != types.StatusPresent {
		t.Errorf("record = %+v", rec)
	}
}

func TestManual_Errors(t *testing.T) {
	h := newHarness(t)
	sess := h.newSession(t, "alice")
	ctx := context.Background()

	_, err := h.ledger.ManualCheckin(ctx, types.ManualAttendanceRequest{SessionID: sess.ID, PersonID: "alice", ActorID: "host"})
	if !errors.Is(err, service.ErrSessionNotActive) {
		t.Errorf("scheduled session: got %v, want ErrSessionNotActive", err)
	}

	if _, err := h.sessions.Start(ctx, sess.ID, "admin"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err = h.ledger.ManualCheckin(ctx, types.ManualAttendanceRequest{SessionID: sess.ID, PersonID: "nobody", ActorID: "host"})
	if !errors.Is(err, service.ErrNotFound) {
		t.Errorf("off roster: got %v, want ErrNotFound", err)
	}

	_, err = h.ledger.ManualCheckin(ctx, types.ManualAttendanceRequest{SessionID: sess.ID, PersonID: "alice"})
	var vErr *service.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("missing actor: got %v, want ValidationError", err)
	}
}

// ── Override ──

func TestOverride_AbsentClearsCheckin(t *testing.T) {
	h := newHarness(t)
	sess := h.runningSession(t, "alice")
	res := h.recognize(t, sess.ID, "alice", types.DirectionEntry, at("08:01"))

	rec, err := h.ledger.Override(context.Background(), res.Record.ID, types.OverrideRequest{
		Status: types.StatusAbsent, Notes: "twin brother", ActorID: "registrar",
	})
	if err != nil {
		t.Fatalf("Override: %v", err)
	}
	if rec.Status != types.StatusAbsent || rec.CheckinTime != nil || rec.CheckinCameraID != "" {
		t.Errorf("record = %+v", rec)
	}
	if !rec.IsManual {
		t.Errorf("override not flagged manual")
	}
}

func TestOverride_PresentStampsCheckin(t *testing.T) {
	h := newHarness(t)
	sess := h.runningSession(t, "alice")
	ctx := context.Background()
	id := h.record(t, sess.ID, "alice").ID

	h.clock.Set(at("09:30"))
	rec, err := h.ledger.Override(ctx, id, types.OverrideRequest{Status: types.StatusPresent, ActorID: "registrar"})
	if err != nil {
		t.Fatalf("Override: %v", err)
	}
	if rec.Status != types.StatusPresent || rec.CheckinTime == nil || !rec.CheckinTime.Equal(at("09:30")) {
		t.Errorf("record = %+v", rec)
	}
}

func TestOverride_AllowedAfterEndRejectedWhenLocked(t *testing.T) {
	h := newHarness(t)
	sess := h.runningSession(t, "alice")
	ctx := context.Background()
	id := h.record(t, sess.ID, "alice").ID

	if _, err := h.sessions.End(ctx, sess.ID, "admin"); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, err := h.ledger.Override(ctx, id, types.OverrideRequest{Status: types.StatusLate, ActorID: "registrar"}); err != nil {
		t.Fatalf("Override ended: %v", err)
	}
	if _, err := h.sessions.Lock(ctx, sess.ID, "registrar"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	_, err := h.ledger.Override(ctx, id, types.OverrideRequest{Status: types.StatusAbsent, ActorID: "registrar"})
	if !errors.Is(err, service.ErrSessionLocked) {
		t.Fatalf("Override locked: got %v, want ErrSessionLocked", err)
	}
	if rec := h.record(t, sess.ID, "alice"); rec.Status != types.StatusLate {
		t.Errorf("status = %q, want late", rec.Status)
	}
}

func TestOverride_AuditsOldAndNew(t *testing.T) {
	h := newHarness(t)
	sess := h.runningSession(t, "alice")
	id := h.record(t, sess.ID, "alice").ID

	if _, err := h.ledger.Override(context.Background(), id, types.OverrideRequest{Status: types.StatusLate, ActorID: "registrar"}); err != nil {
		t.Fatalf("Override: %v", err)
	}

	recs := h.audits.Records()
	last := recs[len(recs)-1]
	if last.Action != audit.ActionOverride || last.EntityID != id || last.ActorID != "registrar" {
		t.Fatalf("audit = %+v", last)
	}
	var before, after types.AttendanceRecord
	if err := audit.Decode(last.OldValue, &before); err != nil {
		t.Fatalf("decode old: %v", err)
	}
	if err := audit.Decode(last.NewValue, &after); err != nil {
		t.Fatalf("decode new: %v", err)
	}
	if before.Status != types.StatusAbsent || after.Status != types.StatusLate {
		t.Errorf("old=%q new=%q", before.Status, after.Status)
	}
}

func TestOverride_Validation(t *testing.T) {
	h := newHarness(t)
	_, err := h.ledger.Override(context.Background(), "rec", types.OverrideRequest{Status: "excused"})
	var vErr *service.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	for _, f := range []string{"status", "actor_id"} {
		if _, ok := vErr.FieldErrors[f]; !ok {
			t.Errorf("missing field error %q", f)
		}
	}
}

// ── Reads ──

func TestGetAttendance_Summary(t *testing.T) {
	h := newHarness(t)
	sess := h.runningSession(t, "alice", "bob", "carol")

	h.recognize(t, sess.ID, "alice", types.DirectionEntry, at("08:00"))
	h.recognize(t, sess.ID, "bob", types.DirectionEntry, at("08:40"))

	att, err := h.ledger.GetAttendance(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetAttendance: %v", err)
	}
	want := types.AttendanceSummary{Total: 3, Present: 1, Late: 1, Absent: 1}
	if att.Summary != want {
		t.Errorf("summary = %+v, want %+v", att.Summary, want)
	}
	if att.Session.ID != sess.ID || att.Session.Status != types.SessionRunning {
		t.Errorf("session = %+v", att.Session)
	}
	for _, r := range att.Records {
		if (r.Status == types.StatusAbsent) != (r.CheckinTime == nil) {
			t.Errorf("record %s: status %q with checkin %v", r.PersonID, r.Status, r.CheckinTime)
		}
	}
}

func TestListRecognitions_NewestFirst(t *testing.T) {
	h := newHarness(t)
	sess := h.runningSession(t, "alice")
	for i := range 5 {
		h.recognize(t, sess.ID, "alice", types.DirectionExit, at("09:00").Add(time.Duration(i)*time.Minute))
	}

	evs, err := h.ledger.ListRecognitions(context.Background(), sess.ID, 2)
	if err != nil {
		t.Fatalf("ListRecognitions: %v", err)
	}
	if len(evs) != 2 || !evs[0].Timestamp.Equal(at("09:04")) || !evs[1].Timestamp.Equal(at("09:03")) {
		t.Errorf("events = %+v", evs)
	}

	if _, err := h.ledger.ListRecognitions(context.Background(), "missing", 0); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("missing session: got %v, want ErrNotFound", err)
	}
}
