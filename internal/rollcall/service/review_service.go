package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/audit"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// synthetic events from an assignment carry full confidence.
const assignedConfidence = 1.0

type AssignResult struct {
	Unknown types.UnknownFace
	IngestResult
}

// ReviewService triages unknown faces. Each face is reviewed exactly once.
type ReviewService struct {
	d      Deps
	ledger *LedgerService
}

func NewReviewService(d Deps, ledger *LedgerService) *ReviewService {
	return &ReviewService{d: d.withDefaults(), ledger: ledger}
}

func (s *ReviewService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.d.Logger, "ReviewService", operation, attrs...)
}

// List returns unknown faces newest first.
func (s *ReviewService) List(ctx context.Context, f store.UnknownFilter) ([]types.UnknownFace, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, &ValidationError{FieldErrors: map[string]string{"status": "must be pending, assigned or ignored"}}
	}
	if f.Limit <= 0 || f.Limit > maxRecognitionLimit {
		f.Limit = maxRecognitionLimit
	}
	return s.d.Store.ListUnknown(ctx, f)
}

// Assign attributes an unknown face to a person. The review and a synthetic
// recognition event (the face's camera and timestamp, direction entry) are
// written together; the event then goes through the same ledger step as an
// AI recognition.
func (s *ReviewService) Assign(ctx context.Context, unknownID string, req types.AssignRequest) (res AssignResult, err error) {
	ctx, span := startSpan(ctx, "ReviewService.Assign", attribute.String("unknown_id", unknownID))
	defer func() { finishSpan(span, err) }()

	logger := s.loggerWith(ctx, "Assign", "unknown_id", unknownID, "person_id", req.PersonID, "reviewer_id", req.ReviewerID)
	defer func() { logOutcome(ctx, logger, err, "unknown face assigned", "assignment rejected", "event_id", res.EventID) }()

	var vErr ValidationError
	personID := strings.TrimSpace(req.PersonID)
	reviewer := strings.TrimSpace(req.ReviewerID)
	if personID == "" {
		vErr.add("person_id", "is required")
	}
	if reviewer == "" {
		vErr.add("reviewer_id", "is required")
	}
	if err = vErr.orNil(); err != nil {
		return AssignResult{}, err
	}

	now := s.d.now()
	var ev types.RecognitionEvent
	err = s.d.Store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := loadPending(ctx, tx, unknownID)
		if err != nil {
			return err
		}
		if _, err := guardRunning(ctx, tx, u.SessionID); err != nil {
			return err
		}
		if err := reviewTx(ctx, tx, types.UnknownReview{
			UnknownID: u.ID, Status: types.ReviewAssigned, AssignedPersonID: personID,
			ReviewedBy: reviewer, ReviewedAt: now,
		}); err != nil {
			return err
		}

		ev = types.RecognitionEvent{
			ID:          s.d.NewID(),
			SessionID:   u.SessionID,
			CameraID:    u.CameraID,
			PersonID:    personID,
			Confidence:  assignedConfidence,
			SnapshotRef: u.SnapshotRef,
			Direction:   types.DirectionEntry,
			Timestamp:   u.Timestamp,
			ReceivedAt:  now,
		}
		if err := tx.InsertRecognition(ctx, ev); err != nil {
			return mapStoreErr(err)
		}

		u.ReviewStatus = types.ReviewAssigned
		u.AssignedPersonID = personID
		u.ReviewedBy = reviewer
		u.ReviewedAt = &now
		res.Unknown = u
		return nil
	})
	if err != nil {
		return AssignResult{}, err
	}

	s.d.recordAudit(ctx, logger, audit.Entry{
		ActorID: reviewer, Action: audit.ActionUnknownAssign, EntityType: "unknown_face", EntityID: unknownID, New: res.Unknown,
	})
	s.d.publish(ctx, logger, notify.SessionChannel(res.Unknown.SessionID), notify.Message{
		Type: notify.TypeUnknownReviewed, SessionID: res.Unknown.SessionID, Payload: res.Unknown,
	})

	res.IngestResult, err = applyAndAnnounce(ctx, s.d, s.ledger, logger, ev)
	return res, err
}

// Ignore closes an unknown face without touching the ledger.
func (s *ReviewService) Ignore(ctx context.Context, unknownID string, req types.IgnoreRequest) (u types.UnknownFace, err error) {
	ctx, span := startSpan(ctx, "ReviewService.Ignore", attribute.String("unknown_id", unknownID))
	defer func() { finishSpan(span, err) }()

	logger := s.loggerWith(ctx, "Ignore", "unknown_id", unknownID, "reviewer_id", req.ReviewerID)
	defer func() { logOutcome(ctx, logger, err, "unknown face ignored", "ignore rejected") }()

	reviewer := strings.TrimSpace(req.ReviewerID)
	if reviewer == "" {
		err = &ValidationError{FieldErrors: map[string]string{"reviewer_id": "is required"}}
		return types.UnknownFace{}, err
	}

	now := s.d.now()
	err = s.d.Store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		u, err = loadPending(ctx, tx, unknownID)
		if err != nil {
			return err
		}
		if err := reviewTx(ctx, tx, types.UnknownReview{
			UnknownID: u.ID, Status: types.ReviewIgnored, ReviewedBy: reviewer, ReviewedAt: now,
		}); err != nil {
			return err
		}
		u.ReviewStatus = types.ReviewIgnored
		u.ReviewedBy = reviewer
		u.ReviewedAt = &now
		return nil
	})
	if err != nil {
		return types.UnknownFace{}, err
	}

	s.d.recordAudit(ctx, logger, audit.Entry{
		ActorID: reviewer, Action: audit.ActionUnknownIgnore, EntityType: "unknown_face", EntityID: unknownID, New: u,
	})
	s.d.publish(ctx, logger, notify.SessionChannel(u.SessionID), notify.Message{
		Type: notify.TypeUnknownReviewed, SessionID: u.SessionID, Payload: u,
	})
	return u, nil
}

func loadPending(ctx context.Context, tx store.Tx, id string) (types.UnknownFace, error) {
	u, err := tx.GetUnknown(ctx, id)
	if err != nil {
		return types.UnknownFace{}, mapStoreErr(err)
	}
	if u.ReviewStatus != types.ReviewPending {
		return types.UnknownFace{}, ErrAlreadyReviewed
	}
	return u, nil
}

func reviewTx(ctx context.Context, tx store.Tx, r types.UnknownReview) error {
	err := tx.ReviewUnknown(ctx, r)
	if errors.Is(err, store.ErrDuplicate) {
		return ErrAlreadyReviewed
	}
	return mapStoreErr(err)
}
