package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

type Dependencies struct {
	Logger *slog.Logger
	Addr   string

	Sessions *service.SessionService
	Ledger   *service.LedgerService
	Ingest   *service.IngestService
	Review   *service.ReviewService
	Health   *service.CameraHealthService
	Hub      *notify.Hub

	// AIKeyHash is the bcrypt hash AI nodes authenticate against. Empty
	// disables the check.
	AIKeyHash string
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux

	sessions *service.SessionService
	ledger   *service.LedgerService
	ingest   *service.IngestService
	review   *service.ReviewService
	health   *service.CameraHealthService
	hub      *notify.Hub
}

func NewServer(d Dependencies) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	s := &Server{
		logger:   logger,
		mux:      mux,
		sessions: d.Sessions,
		ledger:   d.Ledger,
		ingest:   d.Ingest,
		review:   d.Review,
		health:   d.Health,
		hub:      d.Hub,
	}

	ai := http.NewServeMux()
	ai.HandleFunc("POST /v1/ai/recognition", s.handleRecognition)
	ai.HandleFunc("POST /v1/ai/unknown", s.handleUnknown)
	ai.HandleFunc("POST /v1/ai/heartbeat", s.handleHeartbeat)
	mux.Handle("/v1/ai/", apiKeyMiddleware(logger, d.AIKeyHash, ai))

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PUT /v1/sessions/{id}", s.handleUpdateSession)
	mux.HandleFunc("POST /v1/sessions/{id}/start", s.handleTransition(s.sessions.Start))
	mux.HandleFunc("POST /v1/sessions/{id}/end", s.handleTransition(s.sessions.End))
	mux.HandleFunc("POST /v1/sessions/{id}/lock", s.handleTransition(s.sessions.Lock))
	mux.HandleFunc("POST /v1/sessions/{id}/cancel", s.handleTransition(s.sessions.Cancel))
	mux.HandleFunc("POST /v1/sessions/{id}/roster", s.handleSeedRoster)
	mux.HandleFunc("GET /v1/sessions/{id}/attendance", s.handleGetAttendance)
	mux.HandleFunc("GET /v1/sessions/{id}/recognitions", s.handleListRecognitions)
	mux.HandleFunc("GET /v1/sessions/{id}/ws", s.handleSessionWS)
	mux.HandleFunc("GET /v1/cameras/ws", s.handleCameraWS)

	mux.HandleFunc("POST /v1/attendance/checkin", s.handleManual(s.ledger.ManualCheckin))
	mux.HandleFunc("POST /v1/attendance/checkout", s.handleManual(s.ledger.ManualCheckout))
	mux.HandleFunc("PUT /v1/attendance/{id}", s.handleOverride)

	mux.HandleFunc("GET /v1/unknown", s.handleListUnknown)
	mux.HandleFunc("POST /v1/unknown/{id}/assign", s.handleAssign)
	mux.HandleFunc("POST /v1/unknown/{id}/ignore", s.handleIgnore)

	handler := loggingMiddleware(logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ── AI nodes ─────────────────────────────────────────────────────────────────

func (s *Server) handleRecognition(w http.ResponseWriter, r *http.Request) {
	var req types.RecognitionRequest
	if !s.decode(w, r, &req) {
		return
	}

	det, err := s.ingest.ParseRecognition(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.ingest.Ingest(r.Context(), det)
	if err != nil {
		s.writeIngestError(w, r, res, err)
		return
	}
	s.respond(w, r, http.StatusAccepted, ingestResponse(res))
}

func (s *Server) handleUnknown(w http.ResponseWriter, r *http.Request) {
	var req types.UnknownRequest
	if !s.decode(w, r, &req) {
		return
	}

	u, err := s.ingest.ParseUnknown(req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.ingest.IngestUnknown(r.Context(), u)
	if err != nil {
		s.writeIngestError(w, r, res, err)
		return
	}
	s.respond(w, r, http.StatusAccepted, ingestResponse(res))
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req types.HeartbeatRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.health.Record(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, resp)
}

func ingestResponse(res service.IngestResult) types.IngestResponse {
	return types.IngestResponse{
		Accepted:   res.Accepted,
		EventID:    res.EventID,
		UnknownID:  res.UnknownID,
		Applied:    res.Applied,
		Reason:     res.Reason,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// ── Sessions ─────────────────────────────────────────────────────────────────

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req types.CreateSessionRequest
	if !s.decode(w, r, &req) {
		return
	}
	sess, err := s.sessions.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateSessionRequest
	if !s.decode(w, r, &req) {
		return
	}
	sess, err := s.sessions.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type transitionFunc func(ctx context.Context, id, actorID string) (types.Session, error)

// handleTransition serves the lifecycle endpoints. The body is optional.
func (s *Server) handleTransition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.TransitionRequest
		if r.ContentLength != 0 && !s.decode(w, r, &req) {
			return
		}
		sess, err := fn(r.Context(), r.PathValue("id"), req.ActorID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func (s *Server) handleSeedRoster(w http.ResponseWriter, r *http.Request) {
	var req types.RosterRequest
	if !s.decode(w, r, &req) {
		return
	}
	records, err := s.sessions.SeedRoster(r.Context(), r.PathValue("id"), req.PersonIDs, req.ActorID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, records)
}

func (s *Server) handleGetAttendance(w http.ResponseWriter, r *http.Request) {
	att, err := s.ledger.GetAttendance(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, att)
}

func (s *Server) handleListRecognitions(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	evs, err := s.ledger.ListRecognitions(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

// ── Attendance ───────────────────────────────────────────────────────────────

type manualFunc func(ctx context.Context, req types.ManualAttendanceRequest) (types.AttendanceRecord, error)

func (s *Server) handleManual(fn manualFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ManualAttendanceRequest
		if !s.decode(w, r, &req) {
			return
		}
		rec, err := fn(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	var req types.OverrideRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec, err := s.ledger.Override(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ── Unknown faces ────────────────────────────────────────────────────────────

func (s *Server) handleListUnknown(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	faces, err := s.review.List(r.Context(), store.UnknownFilter{
		SessionID: q.Get("session_id"),
		Status:    types.ReviewStatus(q.Get("status")),
		Limit:     limit,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, faces)
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req types.AssignRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.review.Assign(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeIngestError(w, r, res.IngestResult, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"unknown": res.Unknown,
		"ingest":  ingestResponse(res.IngestResult),
		"record":  res.Record,
	})
}

func (s *Server) handleIgnore(w http.ResponseWriter, r *http.Request) {
	var req types.IgnoreRequest
	if !s.decode(w, r, &req) {
		return
	}
	u, err := s.review.Ignore(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "validation", "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

// statusFor maps an ErrorKind label to an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "unauthorized":
		return http.StatusUnauthorized
	case "session_not_active", "already_reviewed", "duplicate_roster", "invalid_transition", "session_locked":
		return http.StatusConflict
	case "canceled":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorFor maps err to a status and body. Unclassified errors are logged and
// reported without detail.
func (s *Server) errorFor(r *http.Request, err error) (int, errorBody) {
	kind := service.ErrorKind(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		return status, errorBody{Error: "internal_error", Message: "unexpected server error"}
	}

	body := errorBody{Error: kind, Message: err.Error()}
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		body.Fields = vErr.FieldErrors
	}
	return status, body
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := s.errorFor(r, err)
	s.respond(w, r, status, body)
}

// writeIngestError reports a failure that may follow a recorded detection.
// The ids let the node see the detection is stored and must not be resent.
func (s *Server) writeIngestError(w http.ResponseWriter, r *http.Request, res service.IngestResult, err error) {
	status, body := s.errorFor(r, err)
	if res.Accepted {
		body.Accepted = true
		body.EventID = res.EventID
		body.UnknownID = res.UnknownID
	}
	s.respond(w, r, status, body)
}
