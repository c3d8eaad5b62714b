package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// DefaultThreshold is the minimum match confidence for cameras without their
// own threshold.
const DefaultThreshold = 0.85

// CameraRegistry resolves camera settings used at the ingestion boundary.
type CameraRegistry struct {
	store            store.CameraStore
	defaultThreshold float64
}

// NewCameraRegistry returns a registry over st. A threshold outside [0, 1]
// falls back to DefaultThreshold.
func NewCameraRegistry(st store.CameraStore, defaultThreshold float64) *CameraRegistry {
	if defaultThreshold < 0 || defaultThreshold > 1 {
		defaultThreshold = DefaultThreshold
	}
	return &CameraRegistry{store: st, defaultThreshold: defaultThreshold}
}

// Lookup returns the camera with its effective direction and threshold.
// Cameras that were never registered resolve to an unknown entry camera.
func (r *CameraRegistry) Lookup(ctx context.Context, id string) (types.Camera, error) {
	id = strings.TrimSpace(id)
	cam, err := r.store.GetCamera(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		cam = types.Camera{ID: id, Status: types.CameraOffline}
	} else if err != nil {
		return types.Camera{}, err
	}
	if !cam.Direction.Valid() {
		cam.Direction = types.DirectionEntry
	}
	if cam.Threshold == nil {
		th := r.defaultThreshold
		cam.Threshold = &th
	}
	return cam, nil
}

// Register upserts inventory entries and marks them known.
func (r *CameraRegistry) Register(ctx context.Context, cams []types.Camera) error {
	for _, c := range cams {
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" {
			continue
		}
		if err := r.store.UpsertCamera(ctx, c); err != nil {
			return fmt.Errorf("register camera %s: %w", c.ID, err)
		}
	}
	return nil
}

func (r *CameraRegistry) NoteSeen(ctx context.Context, id string, status types.CameraStatus, at time.Time) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return r.store.MarkSeen(ctx, id, status, at)
}
