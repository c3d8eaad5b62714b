package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

type CameraStore struct {
	mu      sync.RWMutex
	cameras map[string]types.Camera
}

// NewCameraStore seeds the inventory with the given cameras, all marked known.
func NewCameraStore(inventory []types.Camera) *CameraStore {
	c := make(map[string]types.Camera, len(inventory))
	for _, cam := range inventory {
		cam.ID = strings.TrimSpace(cam.ID)
		if cam.ID == "" {
			continue
		}
		cam.Known = true
		if cam.Status == "" {
			cam.Status = types.CameraOffline
		}
		c[cam.ID] = cam
	}
	return &CameraStore{cameras: c}
}

func (s *CameraStore) GetCamera(_ context.Context, id string) (types.Camera, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cam, ok := s.cameras[id]
	if !ok {
		return types.Camera{}, store.ErrNotFound
	}
	cam.LastHeartbeat = cloneTime(cam.LastHeartbeat)
	return cam, nil
}

func (s *CameraStore) UpsertCamera(_ context.Context, cam types.Camera) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.cameras[cam.ID]
	cam.Known = true
	if ok {
		cam.Status = prev.Status
		cam.LastHeartbeat = prev.LastHeartbeat
	} else if cam.Status == "" {
		cam.Status = types.CameraOffline
	}
	s.cameras[cam.ID] = cam
	return nil
}

func (s *CameraStore) MarkSeen(_ context.Context, id string, status types.CameraStatus, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cam, ok := s.cameras[id]
	if !ok {
		cam = types.Camera{ID: id, Direction: types.DirectionEntry}
	}
	cam.Status = status
	cam.LastHeartbeat = &at
	s.cameras[id] = cam
	return nil
}
