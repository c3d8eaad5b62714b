package store

import (
	"context"
	"errors"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate")
)

// TxFn is a unit of work run by AttendanceStore.Atomic. Returning an error
// rolls back every write made through tx.
type TxFn func(ctx context.Context, tx Tx) error

// Tx is the transactional view of the attendance tables. Session guard checks
// and ledger writes made through one Tx are consistent with each other.
type Tx interface {
	GetSession(ctx context.Context, id string) (types.Session, error)
	InsertSession(ctx context.Context, s types.Session) error
	UpdateSession(ctx context.Context, s types.Session) error

	// InsertRoster adds roster entries with their initial records. It fails
	// with ErrDuplicate, writing nothing, if any pair already exists.
	InsertRoster(ctx context.Context, entries []types.RosterEntry, records []types.AttendanceRecord) error

	GetRecord(ctx context.Context, sessionID, personID string) (types.AttendanceRecord, error)
	GetRecordByID(ctx context.Context, id string) (types.AttendanceRecord, error)
	UpdateRecord(ctx context.Context, rec types.AttendanceRecord) error

	InsertRecognition(ctx context.Context, ev types.RecognitionEvent) error

	InsertUnknown(ctx context.Context, u types.UnknownFace) error
	GetUnknown(ctx context.Context, id string) (types.UnknownFace, error)
	// ReviewUnknown records the terminal decision for an unknown face. A
	// second review of the same face fails with ErrDuplicate.
	ReviewUnknown(ctx context.Context, r types.UnknownReview) error
}

type UnknownFilter struct {
	SessionID string
	Status    types.ReviewStatus // empty matches every status
	Limit     int
}

// AttendanceStore owns sessions, rosters, the attendance ledger and the two
// append-only detection logs.
type AttendanceStore interface {
	Atomic(ctx context.Context, fn TxFn) error

	GetSession(ctx context.Context, id string) (types.Session, error)
	ListRecords(ctx context.Context, sessionID string) ([]types.AttendanceRecord, error)
	ListRecognitions(ctx context.Context, sessionID string, limit int) ([]types.RecognitionEvent, error)
	ListUnknown(ctx context.Context, f UnknownFilter) ([]types.UnknownFace, error)
}
