package service

import (
	"context"
	"errors"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/policy"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// Reasons reported when a recognition event leaves the ledger unchanged.
const (
	ReasonNotOnRoster      = "not_on_roster"
	ReasonAlreadyCheckedIn = "already_checked_in"
	ReasonStaleExit        = "stale_exit"
)

// guardRunning loads the session inside tx and fails unless it is running.
func guardRunning(ctx context.Context, tx store.Tx, sessionID string) (types.Session, error) {
	sess, err := tx.GetSession(ctx, sessionID)
	if err != nil {
		return types.Session{}, mapStoreErr(err)
	}
	if sess.Status != types.SessionRunning {
		return sess, ErrSessionNotActive
	}
	return sess, nil
}

// applyDetection folds one detection into rec and reports whether it
// changed. Entry sets the check-in once (first in wins) and classifies it
// against the session start. Exit moves the check-out forward to the latest
// time seen (last out wins); it never touches status.
func applyDetection(rec *types.AttendanceRecord, sess types.Session, dir types.Direction, cameraID string, at time.Time) (bool, string) {
	switch dir {
	case types.DirectionExit:
		if rec.CheckoutTime != nil && rec.CheckoutTime.After(at) {
			return false, ReasonStaleExit
		}
		t := at
		rec.CheckoutTime = &t
		rec.CheckoutCameraID = cameraID
		return true, ""
	default:
		if rec.CheckinTime != nil {
			return false, ReasonAlreadyCheckedIn
		}
		t := at
		rec.CheckinTime = &t
		rec.CheckinCameraID = cameraID
		rec.Status = policy.Classify(at, sess.StartTime, sess.GracePeriodMinutes)
		return true, ""
	}
}

// applyRecognitionTx is the ledger write for one recognition event. It must
// run inside the same transaction as the session guard.
func applyRecognitionTx(ctx context.Context, tx store.Tx, ev types.RecognitionEvent, now time.Time) (ApplyResult, error) {
	sess, err := guardRunning(ctx, tx, ev.SessionID)
	if err != nil {
		return ApplyResult{}, err
	}

	rec, err := tx.GetRecord(ctx, ev.SessionID, ev.PersonID)
	if errors.Is(err, store.ErrNotFound) {
		return ApplyResult{Reason: ReasonNotOnRoster}, nil
	}
	if err != nil {
		return ApplyResult{}, err
	}

	changed, reason := applyDetection(&rec, sess, ev.Direction, ev.CameraID, ev.Timestamp)
	if !changed {
		return ApplyResult{Record: rec, Reason: reason}, nil
	}
	rec.UpdatedAt = now
	if err := tx.UpdateRecord(ctx, rec); err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{Record: rec, Applied: true}, nil
}

func summarize(records []types.AttendanceRecord) types.AttendanceSummary {
	sum := types.AttendanceSummary{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case types.StatusPresent:
			sum.Present++
		case types.StatusLate:
			sum.Late++
		default:
			sum.Absent++
		}
	}
	return sum
}
