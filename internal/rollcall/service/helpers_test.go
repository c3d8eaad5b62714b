package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/audit"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store/memory"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// sessionStart is 08:00 UTC; sessions in tests use a 15 minute grace period.
var sessionStart = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func at(hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return sessionStart.Add(time.Duration(t.Hour()-8)*time.Hour + time.Duration(t.Minute())*time.Minute)
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type published struct {
	Channel string
	Msg     notify.Message
}

// recordingNotifier captures every publish; fail makes Publish return an
// error after recording.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []published
	fail bool
}

func (n *recordingNotifier) Publish(_ context.Context, channel string, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, published{Channel: channel, Msg: msg})
	if n.fail {
		return errors.New("broker down")
	}
	return nil
}

func (n *recordingNotifier) Types(channel string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, p := range n.msgs {
		if p.Channel == channel {
			out = append(out, p.Msg.Type)
		}
	}
	return out
}

func (n *recordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = nil
}

type harness struct {
	store    *memory.AttendanceStore
	cameras  *memory.CameraStore
	statuses *memory.CameraStatusStore
	audits   *memory.AuditStore
	notifier *recordingNotifier
	clock    *fakeClock
	deps     service.Deps

	sessions *service.SessionService
	ledger   *service.LedgerService
	ingest   *service.IngestService
	review   *service.ReviewService
	health   *service.CameraHealthService
	registry *service.CameraRegistry
}

func newHarness(t *testing.T, cams ...types.Camera) *harness {
	t.Helper()

	h := &harness{
		store:    memory.NewAttendanceStore(),
		cameras:  memory.NewCameraStore(cams),
		statuses: memory.NewCameraStatusStore(),
		audits:   memory.NewAuditStore(),
		notifier: &recordingNotifier{},
		clock:    &fakeClock{t: sessionStart.Add(-5 * time.Minute)},
	}
	sink, err := audit.NewStoreSink(h.audits)
	if err != nil {
		t.Fatalf("NewStoreSink: %v", err)
	}

	var mu sync.Mutex
	n := 0
	d := service.Deps{
		Store:    h.store,
		Notifier: h.notifier,
		Audit:    sink,
		Logger:   silentLogger(),
		Now:      h.clock.Now,
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}

	h.deps = d
	h.registry = service.NewCameraRegistry(h.cameras, 0.85)
	h.sessions = service.NewSessionService(d, 15)
	h.ledger = service.NewLedgerService(d)
	h.ingest = service.NewIngestService(d, h.ledger, h.registry)
	h.review = service.NewReviewService(d, h.ledger)
	h.health = service.NewCameraHealthService(h.statuses, h.registry, d)
	return h
}

// newSession creates a scheduled 08:00-09:00 session rostered with people.
func (h *harness) newSession(t *testing.T, people ...string) types.Session {
	t.Helper()
	grace := 15
	sess, err := h.sessions.Create(context.Background(), types.CreateSessionRequest{
		Title:              "Algorithms",
		StartTime:          sessionStart.Format(time.RFC3339),
		EndTime:            sessionStart.Add(time.Hour).Format(time.RFC3339),
		GracePeriodMinutes: &grace,
		RosterPersonIDs:    people,
		ActorID:            "admin",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return sess
}

// runningSession is newSession followed by Start.
func (h *harness) runningSession(t *testing.T, people ...string) types.Session {
	t.Helper()
	sess := h.newSession(t, people...)
	sess, err := h.sessions.Start(context.Background(), sess.ID, "admin")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.notifier.Reset()
	return sess
}

func (h *harness) recognize(t *testing.T, sessionID, personID string, dir types.Direction, when time.Time) service.IngestResult {
	t.Helper()
	res, err := h.ingest.IngestRecognition(context.Background(), service.Recognition{
		SessionID: sessionID, CameraID: "cam-1", PersonID: personID, Confidence: 0.97,
		Direction: dir, Timestamp: when,
	})
	if err != nil {
		t.Fatalf("IngestRecognition(%s %s %s): %v", personID, dir, when.Format("15:04"), err)
	}
	return res
}

func (h *harness) record(t *testing.T, sessionID, personID string) types.AttendanceRecord {
	t.Helper()
	att, err := h.ledger.GetAttendance(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("GetAttendance: %v", err)
	}
	for _, r := range att.Records {
		if r.PersonID == personID {
			return r
		}
	}
	t.Fatalf("no record for %s", personID)
	return types.AttendanceRecord{}
}

func ptr[T any](v T) *T { return &v }

func storeFilter(sessionID string, status types.ReviewStatus) store.UnknownFilter {
	return store.UnknownFilter{SessionID: sessionID, Status: status}
}

// hookedStore runs after once, right after the next Atomic call returns.
type hookedStore struct {
	*memory.AttendanceStore

	mu    sync.Mutex
	after func()
}

func (s *hookedStore) afterNextAtomic(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.after = fn
}

func (s *hookedStore) Atomic(ctx context.Context, fn store.TxFn) error {
	err := s.AttendanceStore.Atomic(ctx, fn)
	s.mu.Lock()
	after := s.after
	s.after = nil
	s.mu.Unlock()
	if after != nil {
		after()
	}
	return err
}

// withStore rebuilds the ingestion and review services over st.
func (h *harness) withStore(st store.AttendanceStore) (*service.IngestService, *service.ReviewService) {
	d := h.deps
	d.Store = st
	ledger := service.NewLedgerService(d)
	return service.NewIngestService(d, ledger, h.registry), service.NewReviewService(d, ledger)
}
