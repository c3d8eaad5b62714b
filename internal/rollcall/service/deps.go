package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/audit"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

const (
	defaultSideEffectTimeout = 2 * time.Second
	defaultApplyTimeout      = 10 * time.Second
)

// Deps are the collaborators shared by the attendance services. Nil
// Notifier and Audit fall back to no-ops; nil Now and NewID to the wall
// clock and random UUIDs.
type Deps struct {
	Store    store.AttendanceStore
	Notifier notify.Notifier
	Audit    audit.Sink
	Logger   *slog.Logger
	Now      func() time.Time
	NewID    func() string

	// SideEffectTimeout bounds each notification publish and audit write.
	SideEffectTimeout time.Duration

	// ApplyTimeout bounds the ledger step that follows a recorded
	// recognition event. That step ignores caller cancellation.
	ApplyTimeout time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	d.Logger = defaultLogger(d.Logger)
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.SideEffectTimeout <= 0 {
		d.SideEffectTimeout = defaultSideEffectTimeout
	}
	if d.ApplyTimeout <= 0 {
		d.ApplyTimeout = defaultApplyTimeout
	}
	return d
}

// now is millisecond precision, the resolution timestamps are stored at.
func (d Deps) now() time.Time {
	return storedTime(d.Now())
}

func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// publish delivers msg after the primary write has committed. It runs on a
// context detached from the caller's cancellation and bounded by
// SideEffectTimeout; failures are logged and dropped.
func (d Deps) publish(ctx context.Context, logger *slog.Logger, channel string, msg notify.Message) {
	if msg.At.IsZero() {
		msg.At = d.now()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.SideEffectTimeout)
	defer cancel()
	if err := d.Notifier.Publish(ctx, channel, msg); err != nil {
		logger.WarnContext(ctx, "notification dropped", "channel", channel, "type", msg.Type, "error", err)
	}
}

// recordAudit records e with the same bounds as publish.
func (d Deps) recordAudit(ctx context.Context, logger *slog.Logger, e audit.Entry) {
	if e.At.IsZero() {
		e.At = d.now()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.SideEffectTimeout)
	defer cancel()
	if err := d.Audit.Record(ctx, e); err != nil {
		logger.WarnContext(ctx, "audit write dropped", "action", e.Action, "entity_id", e.EntityID, "error", err)
	}
}
