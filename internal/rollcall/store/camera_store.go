package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

type CameraStore interface {
	GetCamera(ctx context.Context, id string) (types.Camera, error)
	// UpsertCamera registers an inventory entry and marks it known.
	UpsertCamera(ctx context.Context, cam types.Camera) error
	// MarkSeen records the latest reported status. Cameras missing from the
	// inventory get a placeholder row with Known false.
	MarkSeen(ctx context.Context, id string, status types.CameraStatus, at time.Time) error
}

// CameraStatusRecord is one heartbeat received from a camera.
type CameraStatusRecord struct {
	CameraID   string
	Status     types.CameraStatus
	FPS        *float64
	ErrorMsg   string
	ReceivedAt time.Time
}

type CameraStatusStore interface {
	RecordStatus(ctx context.Context, rec CameraStatusRecord) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
