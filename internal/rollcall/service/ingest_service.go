package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// IngestResult is returned for every accepted detection.
type IngestResult struct {
	Accepted  bool
	EventID   string
	UnknownID string
	Applied   bool
	Reason    string
	Record    *types.AttendanceRecord
}

// RecognitionNotice is the payload of a "recognition" message.
type RecognitionNotice struct {
	Event   types.RecognitionEvent  `json:"event"`
	Applied bool                    `json:"applied"`
	Reason  string                  `json:"reason,omitempty"`
	Record  *types.AttendanceRecord `json:"record,omitempty"`
}

// IngestService accepts detections from AI nodes.
type IngestService struct {
	d       Deps
	ledger  *LedgerService
	cameras *CameraRegistry
}

func NewIngestService(d Deps, ledger *LedgerService, cameras *CameraRegistry) *IngestService {
	return &IngestService{d: d.withDefaults(), ledger: ledger, cameras: cameras}
}

func (s *IngestService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.d.Logger, "IngestService", operation, attrs...)
}

// ParseRecognition validates a recognition request and decides which path
// it takes. A missing direction takes the camera's direction. A match
// without a person, or below the camera's threshold, becomes an Unknown.
func (s *IngestService) ParseRecognition(ctx context.Context, req types.RecognitionRequest) (Detection, error) {
	var vErr ValidationError
	sessionID := strings.TrimSpace(req.SessionID)
	cameraID := strings.TrimSpace(req.CameraID)
	personID := strings.TrimSpace(req.PersonID)
	snapshot := strings.TrimSpace(req.SnapshotRef)

	if sessionID == "" {
		vErr.add("session_id", "is required")
	}
	if cameraID == "" {
		vErr.add("camera_id", "is required")
	}
	switch {
	case req.Confidence == nil:
		vErr.add("confidence", "is required")
	case *req.Confidence < 0 || *req.Confidence > 1:
		vErr.add("confidence", "must be between 0 and 1")
	}
	dir := types.Direction(strings.ToLower(strings.TrimSpace(req.Direction)))
	if dir != "" && !dir.Valid() {
		vErr.add("direction", "must be entry or exit")
	}
	ts := parseOptionalTime(&vErr, "timestamp", req.Timestamp)
	if err := vErr.orNil(); err != nil {
		return nil, err
	}

	cam, err := s.cameras.Lookup(ctx, cameraID)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = cam.Direction
	}
	at := s.d.now()
	if ts != nil {
		at = storedTime(*ts)
	}

	if personID == "" || *req.Confidence < *cam.Threshold {
		if snapshot == "" {
			return nil, &ValidationError{FieldErrors: map[string]string{
				"snapshot_ref": "is required for unmatched detections",
			}}
		}
		return Unknown{SessionID: sessionID, CameraID: cameraID, SnapshotRef: snapshot, Timestamp: at}, nil
	}

	return Recognition{
		SessionID:   sessionID,
		CameraID:    cameraID,
		PersonID:    personID,
		Confidence:  *req.Confidence,
		SnapshotRef: snapshot,
		Direction:   dir,
		Timestamp:   at,
	}, nil
}

// ParseUnknown validates an unknown-face request.
func (s *IngestService) ParseUnknown(req types.UnknownRequest) (Unknown, error) {
	var vErr ValidationError
	u := Unknown{
		SessionID:    strings.TrimSpace(req.SessionID),
		CameraID:     strings.TrimSpace(req.CameraID),
		SnapshotRef:  strings.TrimSpace(req.SnapshotRef),
		EmbeddingRef: strings.TrimSpace(req.EmbeddingRef),
	}
	if u.SessionID == "" {
		vErr.add("session_id", "is required")
	}
	if u.CameraID == "" {
		vErr.add("camera_id", "is required")
	}
	if u.SnapshotRef == "" {
		vErr.add("snapshot_ref", "is required")
	}
	ts := parseOptionalTime(&vErr, "timestamp", req.Timestamp)
	if err := vErr.orNil(); err != nil {
		return Unknown{}, err
	}
	u.Timestamp = s.d.now()
	if ts != nil {
		u.Timestamp = storedTime(*ts)
	}
	return u, nil
}

// Ingest dispatches a parsed detection.
func (s *IngestService) Ingest(ctx context.Context, det Detection) (IngestResult, error) {
	switch d := det.(type) {
	case Recognition:
		return s.IngestRecognition(ctx, d)
	case Unknown:
		return s.IngestUnknown(ctx, d)
	default:
		return IngestResult{}, fmt.Errorf("ingest: unsupported detection %T", det)
	}
}

// IngestRecognition persists the recognition event and then applies it to
// the ledger. The event row is written first and survives a failed ledger
// update; in that case the result is still Accepted and the ledger error is
// returned alongside it.
func (s *IngestService) IngestRecognition(ctx context.Context, r Recognition) (res IngestResult, err error) {
	ctx, span := startSpan(ctx, "IngestService.IngestRecognition",
		attribute.String("session_id", r.SessionID), attribute.String("camera_id", r.CameraID))
	defer func() { finishSpan(span, err) }()

	logger := s.loggerWith(ctx, "IngestRecognition",
		"session_id", r.SessionID, "camera_id", r.CameraID, "person_id", r.PersonID, "direction", r.Direction)
	defer func() {
		logOutcome(ctx, logger, err, "recognition ingested", "recognition rejected",
			"event_id", res.EventID, "applied", res.Applied)
	}()

	now := s.d.now()
	ev := types.RecognitionEvent{
		ID:          s.d.NewID(),
		SessionID:   r.SessionID,
		CameraID:    r.CameraID,
		PersonID:    r.PersonID,
		Confidence:  r.Confidence,
		SnapshotRef: r.SnapshotRef,
		Direction:   r.Direction,
		Timestamp:   storedTime(r.Timestamp),
		ReceivedAt:  now,
	}
	if r.Timestamp.IsZero() {
		ev.Timestamp = now
	}
	if !ev.Direction.Valid() {
		ev.Direction = types.DirectionEntry
	}

	err = s.d.Store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := guardRunning(ctx, tx, ev.SessionID); err != nil {
			return err
		}
		return mapStoreErr(tx.InsertRecognition(ctx, ev))
	})
	if err != nil {
		return IngestResult{}, err
	}

	return applyAndAnnounce(ctx, s.d, s.ledger, logger, ev)
}

// applyAndAnnounce runs the ledger step for a persisted event and publishes
// the recognition notice. Shared by ingestion and review assignment.
//
// Once the event row exists the ledger step must be attempted, so it runs
// detached from the caller's cancellation and bounded by ApplyTimeout.
func applyAndAnnounce(ctx context.Context, d Deps, ledger *LedgerService, logger *slog.Logger, ev types.RecognitionEvent) (IngestResult, error) {
	res := IngestResult{Accepted: true, EventID: ev.ID}

	applyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.ApplyTimeout)
	defer cancel()
	applied, err := ledger.ApplyRecognition(applyCtx, ev)
	if err != nil {
		return res, fmt.Errorf("event %s recorded but not applied: %w", ev.ID, err)
	}
	res.Applied = applied.Applied
	res.Reason = applied.Reason
	notice := RecognitionNotice{Event: ev, Applied: applied.Applied, Reason: applied.Reason}
	if applied.Reason != ReasonNotOnRoster {
		rec := applied.Record
		res.Record = &rec
		notice.Record = &rec
	}

	d.publish(ctx, logger, notify.SessionChannel(ev.SessionID), notify.Message{
		Type: notify.TypeRecognition, SessionID: ev.SessionID, Payload: notice,
	})
	return res, nil
}

// IngestUnknown stores a pending unknown face for review.
func (s *IngestService) IngestUnknown(ctx context.Context, u Unknown) (res IngestResult, err error) {
	ctx, span := startSpan(ctx, "IngestService.IngestUnknown",
		attribute.String("session_id", u.SessionID), attribute.String("camera_id", u.CameraID))
	defer func() { finishSpan(span, err) }()

	logger := s.loggerWith(ctx, "IngestUnknown", "session_id", u.SessionID, "camera_id", u.CameraID)
	defer func() { logOutcome(ctx, logger, err, "unknown face queued", "unknown face rejected", "unknown_id", res.UnknownID) }()

	face := types.UnknownFace{
		ID:           s.d.NewID(),
		SessionID:    u.SessionID,
		CameraID:     u.CameraID,
		SnapshotRef:  u.SnapshotRef,
		EmbeddingRef: u.EmbeddingRef,
		ReviewStatus: types.ReviewPending,
		Timestamp:    storedTime(u.Timestamp),
	}
	if u.Timestamp.IsZero() {
		face.Timestamp = s.d.now()
	}

	err = s.d.Store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := guardRunning(ctx, tx, face.SessionID); err != nil {
			return err
		}
		return mapStoreErr(tx.InsertUnknown(ctx, face))
	})
	if err != nil {
		return IngestResult{}, err
	}

	s.d.publish(ctx, logger, notify.SessionChannel(face.SessionID), notify.Message{
		Type: notify.TypeUnknownFace, SessionID: face.SessionID, Payload: face,
	})
	return IngestResult{Accepted: true, UnknownID: face.ID}, nil
}
