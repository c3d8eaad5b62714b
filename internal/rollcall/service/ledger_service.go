package service

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/audit"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/policy"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

const (
	defaultRecognitionLimit = 100
	maxRecognitionLimit     = 500
)

// ApplyResult describes what a recognition did to the ledger. Reason is set
// when Applied is false.
type ApplyResult struct {
	Record  types.AttendanceRecord
	Applied bool
	Reason  string
}

// LedgerService owns the attendance records of every session.
type LedgerService struct {
	d Deps
}

func NewLedgerService(d Deps) *LedgerService {
	return &LedgerService{d: d.withDefaults()}
}

func (s *LedgerService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.d.Logger, "LedgerService", operation, attrs...)
}

// ApplyRecognition folds an already persisted recognition event into the
// ledger. The session guard and the record write share one transaction.
func (s *LedgerService) ApplyRecognition(ctx context.Context, ev types.RecognitionEvent) (res ApplyResult, err error) {
	ctx, span := startSpan(ctx, "LedgerService.ApplyRecognition",
		attribute.String("session_id", ev.SessionID), attribute.String("person_id", ev.PersonID))
	defer func() { finishSpan(span, err) }()

	logger := s.loggerWith(ctx, "ApplyRecognition",
		"session_id", ev.SessionID, "person_id", ev.PersonID, "event_id", ev.ID, "direction", ev.Direction)
	defer func() {
		switch {
		case err != nil:
			logOutcome(ctx, logger, err, "", "recognition not applied")
		case res.Reason == ReasonNotOnRoster:
			logger.WarnContext(ctx, "recognized person not on roster", "reason", res.Reason)
		default:
			logger.InfoContext(ctx, "recognition applied", "applied", res.Applied, "reason", res.Reason)
		}
	}()

	err = s.d.Store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		var txErr error
		res, txErr = applyRecognitionTx(ctx, tx, ev, s.d.now())
		return txErr
	})
	if err != nil {
		return ApplyResult{}, err
	}
	// The caller announces the outcome as a "recognition" message.
	return res, nil
}

func validateManual(req types.ManualAttendanceRequest) error {
	var vErr ValidationError
	if strings.TrimSpace(req.SessionID) == "" {
		vErr.add("session_id", "is required")
	}
	if strings.TrimSpace(req.PersonID) == "" {
		vErr.add("person_id", "is required")
	}
	if strings.TrimSpace(req.ActorID) == "" {
		vErr.add("actor_id", "is required")
	}
	return vErr.orNil()
}

// ManualCheckin records a check-in on behalf of a person at the current
// time. An existing check-in is kept (first in wins); the note and manual
// flag are still updated.
func (s *LedgerService) ManualCheckin(ctx context.Context, req types.ManualAttendanceRequest) (types.AttendanceRecord, error) {
	return s.manual(ctx, "ManualCheckin", audit.ActionManualCheckin, req, func(rec *types.AttendanceRecord, sess types.Session) {
		if rec.CheckinTime == nil {
			now := s.d.now()
			rec.CheckinTime = &now
			rec.Status = policy.Classify(now, sess.StartTime, sess.GracePeriodMinutes)
		}
	})
}

// ManualCheckout records a check-out at the current time.
func (s *LedgerService) ManualCheckout(ctx context.Context, req types.ManualAttendanceRequest) (types.AttendanceRecord, error) {
	return s.manual(ctx, "ManualCheckout", audit.ActionManualCheckout, req, func(rec *types.AttendanceRecord, _ types.Session) {
		now := s.d.now()
		rec.CheckoutTime = &now
	})
}

func (s *LedgerService) manual(
	ctx context.Context,
	operation, action string,
	req types.ManualAttendanceRequest,
	mutate func(rec *types.AttendanceRecord, sess types.Session),
) (rec types.AttendanceRecord, err error) {
	ctx, span := startSpan(ctx, "LedgerService."+operation,
		attribute.String("session_id", req.SessionID), attribute.String("person_id", req.PersonID))
	defer func() { finishSpan(span, err) }()

	logger := s.loggerWith(ctx, operation,
		"session_id", req.SessionID, "person_id", req.PersonID, "actor_id", req.ActorID)
	defer func() { logOutcome(ctx, logger, err, "manual attendance recorded", "manual attendance rejected") }()

	if err = validateManual(req); err != nil {
		return types.AttendanceRecord{}, err
	}

	var before types.AttendanceRecord
	err = s.d.Store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		sess, err := guardRunning(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		before, err = tx.GetRecord(ctx, req.SessionID, req.PersonID)
		if err != nil {
			return mapStoreErr(err)
		}
		rec = before
		mutate(&rec, sess)
		rec.IsManual = true
		if note := strings.TrimSpace(req.Notes); note != "" {
			rec.Notes = note
		}
		rec.UpdatedAt = s.d.now()
		return tx.UpdateRecord(ctx, rec)
	})
	if err != nil {
		return types.AttendanceRecord{}, err
	}

	s.d.recordAudit(ctx, logger, audit.Entry{
		ActorID: req.ActorID, Action: action, EntityType: "attendance_record", EntityID: rec.ID,
		Old: before, New: rec,
	})
	s.d.publish(ctx, logger, notify.SessionChannel(rec.SessionID), notify.Message{
		Type: notify.TypeAttendance, SessionID: rec.SessionID, Payload: rec,
	})
	return rec, nil
}

// Override sets a record's status directly, bypassing the temporal rule.
// Check-in time follows the status so that absent always means no check-in:
// overriding to absent clears it and overriding an absent record to present
// or late stamps the current time. Locked sessions reject overrides.
func (s *LedgerService) Override(ctx context.Context, recordID string, req types.OverrideRequest) (rec types.AttendanceRecord, err error) {
	ctx, span := startSpan(ctx, "LedgerService.Override", attribute.String("record_id", recordID))
	defer func() { finishSpan(span, err) }()

	logger := s.loggerWith(ctx, "Override", "record_id", recordID, "status", req.Status, "actor_id", req.ActorID)
	defer func() { logOutcome(ctx, logger, err, "attendance overridden", "override rejected") }()

	var vErr ValidationError
	if strings.TrimSpace(recordID) == "" {
		vErr.add("id", "is required")
	}
	if !req.Status.Valid() {
		vErr.add("status", "must be present, late or absent")
	}
	if strings.TrimSpace(req.ActorID) == "" {
		vErr.add("actor_id", "is required")
	}
	if err = vErr.orNil(); err != nil {
		return types.AttendanceRecord{}, err
	}

	var before types.AttendanceRecord
	err = s.d.Store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		before, err = tx.GetRecordByID(ctx, recordID)
		if err != nil {
			return mapStoreErr(err)
		}
		sess, err := tx.GetSession(ctx, before.SessionID)
		if err != nil {
			return mapStoreErr(err)
		}
		if sess.Status == types.SessionLocked {
			return ErrSessionLocked
		}

		now := s.d.now()
		rec = before
		rec.Status = req.Status
		switch {
		case req.Status == types.StatusAbsent:
			rec.CheckinTime = nil
			rec.CheckinCameraID = ""
		case rec.CheckinTime == nil:
			rec.CheckinTime = &now
		}
		rec.IsManual = true
		if note := strings.TrimSpace(req.Notes); note != "" {
			rec.Notes = note
		}
		rec.UpdatedAt = now
		return tx.UpdateRecord(ctx, rec)
	})
	if err != nil {
		return types.AttendanceRecord{}, err
	}

	s.d.recordAudit(ctx, logger, audit.Entry{
		ActorID: req.ActorID, Action: audit.ActionOverride, EntityType: "attendance_record", EntityID: rec.ID,
		Old: before, New: rec,
	})
	s.d.publish(ctx, logger, notify.SessionChannel(rec.SessionID), notify.Message{
		Type: notify.TypeAttendance, SessionID: rec.SessionID, Payload: rec,
	})
	return rec, nil
}

// GetAttendance returns the session, every record and the status counts.
func (s *LedgerService) GetAttendance(ctx context.Context, sessionID string) (types.SessionAttendance, error) {
	sess, err := s.d.Store.GetSession(ctx, sessionID)
	if err != nil {
		return types.SessionAttendance{}, mapStoreErr(err)
	}
	records, err := s.d.Store.ListRecords(ctx, sessionID)
	if err != nil {
		return types.SessionAttendance{}, err
	}
	return types.SessionAttendance{Session: sess, Records: records, Summary: summarize(records)}, nil
}

// ListRecognitions returns the most recent recognition events of a session,
// newest first. limit <= 0 means 100.
func (s *LedgerService) ListRecognitions(ctx context.Context, sessionID string, limit int) ([]types.RecognitionEvent, error) {
	if _, err := s.d.Store.GetSession(ctx, sessionID); err != nil {
		return nil, mapStoreErr(err)
	}
	switch {
	case limit <= 0:
		limit = defaultRecognitionLimit
	case limit > maxRecognitionLimit:
		limit = maxRecognitionLimit
	}
	return s.d.Store.ListRecognitions(ctx, sessionID, limit)
}
