package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

type pairKey struct {
	sessionID string
	personID  string
}

// AttendanceStore keeps the attendance tables in maps. Atomic holds one mutex
// for the whole unit of work and replays an undo log when it fails, so it
// gives the same all-or-nothing behaviour as the SQLite store. It is intended
// for tests and single-node dev runs.
type AttendanceStore struct {
	mu           sync.Mutex
	sessions     map[string]types.Session
	roster       map[pairKey]types.RosterEntry
	records      map[string]types.AttendanceRecord
	recordByPair map[pairKey]string
	recognitions []types.RecognitionEvent
	unknown      map[string]types.UnknownFace
	unknownOrder []string
}

func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{
		sessions:     make(map[string]types.Session),
		roster:       make(map[pairKey]types.RosterEntry),
		records:      make(map[string]types.AttendanceRecord),
		recordByPair: make(map[pairKey]string),
		unknown:      make(map[string]types.UnknownFace),
	}
}

func (s *AttendanceStore) Atomic(ctx context.Context, fn store.TxFn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *AttendanceStore) GetSession(_ context.Context, id string) (types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return types.Session{}, store.ErrNotFound
	}
	return cloneSession(sess), nil
}

func (s *AttendanceStore) ListRecords(_ context.Context, sessionID string) ([]types.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.AttendanceRecord, 0)
	for _, rec := range s.records {
		if rec.SessionID == sessionID {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].PersonID < out[j].PersonID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *AttendanceStore) ListRecognitions(_ context.Context, sessionID string, limit int) ([]types.RecognitionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.RecognitionEvent, 0)
	for i := len(s.recognitions) - 1; i >= 0; i-- {
		ev := s.recognitions[i]
		if ev.SessionID != sessionID {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AttendanceStore) ListUnknown(_ context.Context, f store.UnknownFilter) ([]types.UnknownFace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.UnknownFace, 0)
	for i := len(s.unknownOrder) - 1; i >= 0; i-- {
		u := s.unknown[s.unknownOrder[i]]
		if f.SessionID != "" && u.SessionID != f.SessionID {
			continue
		}
		if f.Status != "" && u.ReviewStatus != f.Status {
			continue
		}
		out = append(out, cloneUnknown(u))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// RecognitionCount returns how many recognition events have been appended.
// Test-only helper.
func (s *AttendanceStore) RecognitionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recognitions)
}

// memTx mutates the store's maps directly; the caller holds s.mu.
type memTx struct {
	s    *AttendanceStore
	undo []func()
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memTx) GetSession(_ context.Context, id string) (types.Session, error) {
	sess, ok := tx.s.sessions[id]
	if !ok {
		return types.Session{}, store.ErrNotFound
	}
	return cloneSession(sess), nil
}

func (tx *memTx) InsertSession(_ context.Context, sess types.Session) error {
	if _, ok := tx.s.sessions[sess.ID]; ok {
		return store.ErrDuplicate
	}
	tx.s.sessions[sess.ID] = cloneSession(sess)
	tx.undo = append(tx.undo, func() { delete(tx.s.sessions, sess.ID) })
	return nil
}

func (tx *memTx) UpdateSession(_ context.Context, sess types.Session) error {
	prev, ok := tx.s.sessions[sess.ID]
	if !ok {
		return store.ErrNotFound
	}
	tx.s.sessions[sess.ID] = cloneSession(sess)
	tx.undo = append(tx.undo, func() { tx.s.sessions[sess.ID] = prev })
	return nil
}

func (tx *memTx) InsertRoster(_ context.Context, entries []types.RosterEntry, records []types.AttendanceRecord) error {
	seen := make(map[pairKey]struct{}, len(entries)+len(records))
	for _, e := range entries {
		if _, ok := tx.s.sessions[e.SessionID]; !ok {
			return store.ErrNotFound
		}
		k := pairKey{e.SessionID, e.PersonID}
		if _, ok := tx.s.roster[k]; ok {
			return store.ErrDuplicate
		}
		if _, ok := seen[k]; ok {
			return store.ErrDuplicate
		}
		seen[k] = struct{}{}
	}
	seen = make(map[pairKey]struct{}, len(records))
	for _, r := range records {
		k := pairKey{r.SessionID, r.PersonID}
		if _, ok := tx.s.recordByPair[k]; ok {
			return store.ErrDuplicate
		}
		if _, ok := seen[k]; ok {
			return store.ErrDuplicate
		}
		seen[k] = struct{}{}
	}

	for _, e := range entries {
		k := pairKey{e.SessionID, e.PersonID}
		tx.s.roster[k] = e
		tx.undo = append(tx.undo, func() { delete(tx.s.roster, k) })
	}
	for _, r := range records {
		k := pairKey{r.SessionID, r.PersonID}
		id := r.ID
		tx.s.records[id] = cloneRecord(r)
		tx.s.recordByPair[k] = id
		tx.undo = append(tx.undo, func() {
			delete(tx.s.records, id)
			delete(tx.s.recordByPair, k)
		})
	}
	return nil
}

func (tx *memTx) GetRecord(_ context.Context, sessionID, personID string) (types.AttendanceRecord, error) {
	id, ok := tx.s.recordByPair[pairKey{sessionID, personID}]
	if !ok {
		return types.AttendanceRecord{}, store.ErrNotFound
	}
	return cloneRecord(tx.s.records[id]), nil
}

func (tx *memTx) GetRecordByID(_ context.Context, id string) (types.AttendanceRecord, error) {
	rec, ok := tx.s.records[id]
	if !ok {
		return types.AttendanceRecord{}, store.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (tx *memTx) UpdateRecord(_ context.Context, rec types.AttendanceRecord) error {
	prev, ok := tx.s.records[rec.ID]
	if !ok {
		return store.ErrNotFound
	}
	tx.s.records[rec.ID] = cloneRecord(rec)
	tx.undo = append(tx.undo, func() { tx.s.records[rec.ID] = prev })
	return nil
}

func (tx *memTx) InsertRecognition(_ context.Context, ev types.RecognitionEvent) error {
	if _, ok := tx.s.sessions[ev.SessionID]; !ok {
		return store.ErrNotFound
	}
	n := len(tx.s.recognitions)
	tx.s.recognitions = append(tx.s.recognitions, ev)
	tx.undo = append(tx.undo, func() { tx.s.recognitions = tx.s.recognitions[:n] })
	return nil
}

func (tx *memTx) InsertUnknown(_ context.Context, u types.UnknownFace) error {
	if _, ok := tx.s.sessions[u.SessionID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := tx.s.unknown[u.ID]; ok {
		return store.ErrDuplicate
	}
	if u.ReviewStatus == "" {
		u.ReviewStatus = types.ReviewPending
	}
	n := len(tx.s.unknownOrder)
	tx.s.unknown[u.ID] = cloneUnknown(u)
	tx.s.unknownOrder = append(tx.s.unknownOrder, u.ID)
	tx.undo = append(tx.undo, func() {
		delete(tx.s.unknown, u.ID)
		tx.s.unknownOrder = tx.s.unknownOrder[:n]
	})
	return nil
}

func (tx *memTx) GetUnknown(_ context.Context, id string) (types.UnknownFace, error) {
	u, ok := tx.s.unknown[id]
	if !ok {
		return types.UnknownFace{}, store.ErrNotFound
	}
	return cloneUnknown(u), nil
}

func (tx *memTx) ReviewUnknown(_ context.Context, r types.UnknownReview) error {
	prev, ok := tx.s.unknown[r.UnknownID]
	if !ok {
		return store.ErrNotFound
	}
	if prev.ReviewStatus != types.ReviewPending {
		return store.ErrDuplicate
	}
	next := cloneUnknown(prev)
	next.ReviewStatus = r.Status
	next.AssignedPersonID = r.AssignedPersonID
	next.ReviewedBy = r.ReviewedBy
	next.ReviewedAt = timePtr(r.ReviewedAt)
	tx.s.unknown[r.UnknownID] = next
	tx.undo = append(tx.undo, func() { tx.s.unknown[r.UnknownID] = prev })
	return nil
}

func cloneSession(s types.Session) types.Session {
	s.LockedAt = cloneTime(s.LockedAt)
	return s
}

func cloneRecord(r types.AttendanceRecord) types.AttendanceRecord {
	r.CheckinTime = cloneTime(r.CheckinTime)
	r.CheckoutTime = cloneTime(r.CheckoutTime)
	return r
}

func cloneUnknown(u types.UnknownFace) types.UnknownFace {
	u.ReviewedAt = cloneTime(u.ReviewedAt)
	return u
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
