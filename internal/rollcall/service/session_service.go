package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/audit"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

const DefaultGracePeriodMinutes = 15

// SessionService drives the session lifecycle:
//
//	scheduled -> running -> ended -> locked
//	scheduled -> cancelled
//
// locked and cancelled are terminal.
type SessionService struct {
	d            Deps
	defaultGrace int
}

// NewSessionService returns a SessionService. defaultGrace applies to
// sessions created without a grace period; a negative value means 15.
func NewSessionService(d Deps, defaultGrace int) *SessionService {
	if defaultGrace < 0 {
		defaultGrace = DefaultGracePeriodMinutes
	}
	return &SessionService{d: d.withDefaults(), defaultGrace: defaultGrace}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.d.Logger, "SessionService", operation, attrs...)
}

// Create stores a scheduled session and seeds its roster in one transaction.
func (s *SessionService) Create(ctx context.Context, req types.CreateSessionRequest) (sess types.Session, err error) {
	ctx, span := startSpan(ctx, "SessionService.Create")
	defer func() { finishSpan(span, err) }()

	logger := s.loggerWith(ctx, "Create", "actor_id", req.ActorID)
	defer func() {
		logOutcome(ctx, logger, err, "session created", "session not created",
			"session_id", sess.ID, "roster_size", len(req.RosterPersonIDs))
	}()

	var vErr ValidationError
	title := strings.TrimSpace(req.Title)
	if title == "" {
		vErr.add("title", "is required")
	}
	if strings.TrimSpace(req.ActorID) == "" {
		vErr.add("actor_id", "is required")
	}
	start := parseRequiredTime(&vErr, "start_time", req.StartTime)
	end := parseRequiredTime(&vErr, "end_time", req.EndTime)
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		vErr.add("end_time", "must be after start_time")
	}
	grace := s.defaultGrace
	if req.GracePeriodMinutes != nil {
		grace = *req.GracePeriodMinutes
		if grace < 0 {
			vErr.add("grace_period_minutes", "must not be negative")
		}
	}
	people := normalizePeople(&vErr, req.RosterPersonIDs, false)
	if err = vErr.orNil(); err != nil {
		return types.Session{}, err
	}

	now := s.d.now()
	sess = types.Session{
		ID:                 s.d.NewID(),
		Title:              title,
		Description:        strings.TrimSpace(req.Description),
		RoomID:             strings.TrimSpace(req.RoomID),
		HostID:             strings.TrimSpace(req.HostID),
		StartTime:          start,
		EndTime:            end,
		GracePeriodMinutes: grace,
		Status:             types.SessionScheduled,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	entries, records := s.rosterRows(sess.ID, people, now)

	err = s.d.Store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertSession(ctx, sess); err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		if err := tx.InsertRoster(ctx, entries, records); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrDuplicateRoster
			}
			return err
		}
		return nil
	})
	if err != nil {
		return types.Session{}, err
	}

	s.d.recordAudit(ctx, logger, audit.Entry{
		ActorID: req.ActorID, Action: audit.ActionSessionCreate, EntityType: "session", EntityID: sess.ID, New: sess,
	})
	return sess, nil
}

// Update edits session metadata. Locked sessions reject edits.
func (s *SessionService) Update(ctx context.Context, id string, req types.UpdateSessionRequest) (sess types.Session, err error) {
	ctx, span := startSpan(ctx, "SessionService.Update", attribute.String("session_id", id))
	defer func() { finishSpan(span, err) }()

	logger := s.loggerWith(ctx, "Update", "session_id", id, "actor_id", req.ActorID)
	defer func() { logOutcome(ctx, logger, err, "session updated", "session not updated") }()

	var vErr ValidationError
	if strings.TrimSpace(req.ActorID) == "" {
		vErr.add("actor_id", "is required")
	}
	start := parseOptionalTime(&vErr, "start_time", req.StartTime)
	end := parseOptionalTime(&vErr, "end_time", req.EndTime)
	if req.GracePeriodMinutes != nil && *req.GracePeriodMinutes < 0 {
		vErr.add("grace_period_minutes", "must not be negative")
	}
	if err = vErr.orNil(); err != nil {
		return types.Session{}, err
	}

	var before types.Session
	err = s.d.Store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		before, err = tx.GetSession(ctx, id)
		if err != nil {
			return mapStoreErr(err)
		}
		if before.Status == types.SessionLocked {
			return ErrSessionLocked
		}

		sess = before
		if t := strings.TrimSpace(req.Title); t != "" {
			sess.Title = t
		}
		if d := strings.TrimSpace(req.Description); d != "" {
			sess.Description = d
		}
		if start != nil {
			sess.StartTime = *start
		}
		if end != nil {
			sess.EndTime = *end
		}
		if req.GracePeriodMinutes != nil {
			sess.GracePeriodMinutes = *req.GracePeriodMinutes
		}
		if !sess.EndTime.After(sess.StartTime) {
			return &ValidationError{FieldErrors: map[string]string{"end_time": "must be after start_time"}}
		}
		sess.UpdatedAt = s.d.now()
		return tx.UpdateSession(ctx, sess)
	})
	if err != nil {
		return types.Session{}, err
	}

	s.d.recordAudit(ctx, logger, audit.Entry{
		ActorID: req.ActorID, Action: audit.ActionSessionUpdate, EntityType: "session", EntityID: id, Old: before, New: sess,
	})
	return sess, nil
}

func (s *SessionService) Get(ctx context.Context, id string) (types.Session, error) {
	sess, err := s.d.Store.GetSession(ctx, id)
	return sess, mapStoreErr(err)
}

type transition struct {
	op     string
	from   types.SessionStatus
	to     types.SessionStatus
	msg    string
	action string
}

var (
	transitionStart  = transition{"start", types.SessionScheduled, types.SessionRunning, notify.TypeSessionStarted, audit.ActionSessionStart}
	transitionEnd    = transition{"end", types.SessionRunning, types.SessionEnded, notify.TypeSessionEnded, audit.ActionSessionEnd}
	transitionLock   = transition{"lock", types.SessionEnded, types.SessionLocked, notify.TypeSessionLocked, audit.ActionSessionLock}
	transitionCancel = transition{"cancel", types.SessionScheduled, types.SessionCancelled, notify.TypeSessionCancelled, audit.ActionSessionCancel}
)

// Start opens the session for recognition and manual attendance.
func (s *SessionService) Start(ctx context.Context, id, actorID string) (types.Session, error) {
	return s.transition(ctx, id, actorID, transitionStart)
}

// End closes the session to further attendance writes.
func (s *SessionService) End(ctx context.Context, id, actorID string) (types.Session, error) {
	return s.transition(ctx, id, actorID, transitionEnd)
}

// Lock freezes an ended session; LockedAt is set once and never changes.
func (s *SessionService) Lock(ctx context.Context, id, actorID string) (types.Session, error) {
	if strings.TrimSpace(actorID) == "" {
		return types.Session{}, &ValidationError{FieldErrors: map[string]string{"actor_id": "is required"}}
	}
	return s.transition(ctx, id, actorID, transitionLock)
}

// Cancel abandons a session that never started.
func (s *SessionService) Cancel(ctx context.Context, id, actorID string) (types.Session, error) {
	return s.transition(ctx, id, actorID, transitionCancel)
}

// transition moves a session from t.from to t.to. Any other current state,
// including t.to itself, is a ConflictError and nothing is published.
func (s *SessionService) transition(ctx context.Context, id, actorID string, t transition) (sess types.Session, err error) {
	ctx, span := startSpan(ctx, "SessionService.Transition",
		attribute.String("session_id", id), attribute.String("op", t.op))
	defer func() { finishSpan(span, err) }()

	logger := s.loggerWith(ctx, "Transition", "session_id", id, "op", t.op, "actor_id", actorID)
	defer func() { logOutcome(ctx, logger, err, "session transitioned", "session transition rejected", "status", sess.Status) }()

	var before types.Session
	err = s.d.Store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		before, err = tx.GetSession(ctx, id)
		if err != nil {
			return mapStoreErr(err)
		}
		if before.Status != t.from {
			return &ConflictError{Op: t.op, From: before.Status}
		}

		now := s.d.now()
		sess = before
		sess.Status = t.to
		if t.to == types.SessionLocked {
			sess.LockedAt = &now
		}
		sess.UpdatedAt = now
		return tx.UpdateSession(ctx, sess)
	})
	if err != nil {
		return types.Session{}, err
	}

	s.d.recordAudit(ctx, logger, audit.Entry{
		ActorID: actorID, Action: t.action, EntityType: "session", EntityID: id, Old: before, New: sess,
	})
	s.d.publish(ctx, logger, notify.SessionChannel(id), notify.Message{
		Type: t.msg, SessionID: id, Payload: sess,
	})
	return sess, nil
}

// SeedRoster adds people to a session, each with an absent record. It is
// all or nothing: if anyone is already rostered, ErrDuplicateRoster is
// returned and no one is added.
func (s *SessionService) SeedRoster(ctx context.Context, sessionID string, personIDs []string, actorID string) (records []types.AttendanceRecord, err error) {
	ctx, span := startSpan(ctx, "SessionService.SeedRoster", attribute.String("session_id", sessionID))
	defer func() { finishSpan(span, err) }()

	logger := s.loggerWith(ctx, "SeedRoster", "session_id", sessionID, "actor_id", actorID)
	defer func() { logOutcome(ctx, logger, err, "roster seeded", "roster not seeded", "count", len(records)) }()

	var vErr ValidationError
	people := normalizePeople(&vErr, personIDs, true)
	if err = vErr.orNil(); err != nil {
		return nil, err
	}

	now := s.d.now()
	entries, records := s.rosterRows(sessionID, people, now)

	err = s.d.Store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return mapStoreErr(err)
		}
		switch sess.Status {
		case types.SessionLocked:
			return ErrSessionLocked
		case types.SessionEnded, types.SessionCancelled:
			return ErrSessionNotActive
		}
		if err := tx.InsertRoster(ctx, entries, records); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrDuplicateRoster
			}
			return mapStoreErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.d.recordAudit(ctx, logger, audit.Entry{
		ActorID: actorID, Action: audit.ActionRosterAdd, EntityType: "session", EntityID: sessionID, New: people,
	})
	s.d.publish(ctx, logger, notify.SessionChannel(sessionID), notify.Message{
		Type: notify.TypeAttendance, SessionID: sessionID, Payload: records,
	})
	return records, nil
}

// AddToRoster is SeedRoster for a single person.
func (s *SessionService) AddToRoster(ctx context.Context, sessionID, personID, actorID string) (types.AttendanceRecord, error) {
	records, err := s.SeedRoster(ctx, sessionID, []string{personID}, actorID)
	if err != nil {
		return types.AttendanceRecord{}, err
	}
	return records[0], nil
}

func (s *SessionService) rosterRows(sessionID string, people []string, now time.Time) ([]types.RosterEntry, []types.AttendanceRecord) {
	entries := make([]types.RosterEntry, 0, len(people))
	records := make([]types.AttendanceRecord, 0, len(people))
	for _, p := range people {
		entries = append(entries, types.RosterEntry{SessionID: sessionID, PersonID: p, IsRequired: true, CreatedAt: now})
		records = append(records, types.AttendanceRecord{
			ID:        s.d.NewID(),
			SessionID: sessionID,
			PersonID:  p,
			Status:    types.StatusAbsent,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return entries, records
}

// normalizePeople trims ids and rejects blanks and repeats.
func normalizePeople(vErr *ValidationError, ids []string, required bool) []string {
	if required && len(ids) == 0 {
		vErr.add("person_ids", "at least one person is required")
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			vErr.add("person_ids", "must not contain blank ids")
			continue
		}
		if _, ok := seen[id]; ok {
			vErr.add("person_ids", "contains "+id+" more than once")
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
