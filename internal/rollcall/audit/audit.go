// Package audit records administrative changes to sessions and attendance.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

// Actions written by the services.
const (
	ActionSessionCreate  = "session.create"
	ActionSessionUpdate  = "session.update"
	ActionSessionStart   = "session.start"
	ActionSessionEnd     = "session.end"
	ActionSessionLock    = "session.lock"
	ActionSessionCancel  = "session.cancel"
	ActionRosterAdd      = "roster.add"
	ActionManualCheckin  = "attendance.manual_checkin"
	ActionManualCheckout = "attendance.manual_checkout"
	ActionOverride       = "attendance.override"
	ActionUnknownAssign  = "unknown_face.assign"
	ActionUnknownIgnore  = "unknown_face.ignore"
)

// Entry is one audited change. Old and New are snapshots of the entity
// before and after the change; either may be nil.
type Entry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Old        any
	New        any
	At         time.Time
}

type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// StoreSink encodes snapshots as CBOR and appends them to an AuditStore.
type StoreSink struct {
	store store.AuditStore
	enc   cbor.EncMode
}

func NewStoreSink(s store.AuditStore) (*StoreSink, error) {
	enc, err := cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
		Sort:    cbor.SortCanonical,
	}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("audit: cbor enc mode: %w", err)
	}
	return &StoreSink{store: s, enc: enc}, nil
}

func (s *StoreSink) Record(ctx context.Context, e Entry) error {
	oldVal, err := s.encode(e.Old)
	if err != nil {
		return fmt.Errorf("audit: encode old value: %w", err)
	}
	newVal, err := s.encode(e.New)
	if err != nil {
		return fmt.Errorf("audit: encode new value: %w", err)
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return s.store.RecordAudit(ctx, store.AuditRecord{
		ActorID:    e.ActorID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		OldValue:   oldVal,
		NewValue:   newVal,
		RecordedAt: e.At,
	})
}

func (s *StoreSink) encode(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return s.enc.Marshal(v)
}

// Decode unpacks a snapshot written by StoreSink into v.
func Decode(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
