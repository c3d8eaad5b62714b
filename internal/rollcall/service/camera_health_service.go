package service

import (
	"context"
	"strings"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// CameraHealthService records camera heartbeats and publishes them on the
// camera channel. It never touches attendance state.
type CameraHealthService struct {
	statusStore store.CameraStatusStore
	registry    *CameraRegistry
	d           Deps
}

func NewCameraHealthService(ss store.CameraStatusStore, reg *CameraRegistry, d Deps) *CameraHealthService {
	return &CameraHealthService{statusStore: ss, registry: reg, d: d.withDefaults()}
}

func (s *CameraHealthService) Record(ctx context.Context, req types.HeartbeatRequest) (resp types.HeartbeatResponse, err error) {
	logger := serviceLogger(ctx, s.d.Logger, "CameraHealthService", "Record", "camera_id", req.CameraID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, err, "", "heartbeat rejected")
			return
		}
		logger.DebugContext(ctx, "heartbeat recorded", "known", resp.Known)
	}()

	var vErr ValidationError
	cameraID := strings.TrimSpace(req.CameraID)
	if cameraID == "" {
		vErr.add("camera_id", "is required")
	}
	status := types.CameraStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if status == "" {
		status = types.CameraOnline
	}
	if !status.Valid() {
		vErr.add("status", "must be online, offline or error")
	}
	if req.FPS != nil && *req.FPS < 0 {
		vErr.add("fps", "must not be negative")
	}
	if err = vErr.orNil(); err != nil {
		return types.HeartbeatResponse{}, err
	}

	cam, err := s.registry.Lookup(ctx, cameraID)
	if err != nil {
		return types.HeartbeatResponse{}, err
	}

	now := s.d.now()
	if err = s.registry.NoteSeen(ctx, cameraID, status, now); err != nil {
		return types.HeartbeatResponse{}, err
	}
	if err = s.statusStore.RecordStatus(ctx, store.CameraStatusRecord{
		CameraID:   cameraID,
		Status:     status,
		FPS:        req.FPS,
		ErrorMsg:   strings.TrimSpace(req.ErrorMsg),
		ReceivedAt: now,
	}); err != nil {
		return types.HeartbeatResponse{}, err
	}

	cam.Status = status
	cam.LastHeartbeat = &now
	s.d.publish(ctx, logger, notify.CameraChannel, notify.Message{Type: notify.TypeCameraStatus, Payload: cam})

	return types.HeartbeatResponse{
		OK:         true,
		Known:      cam.Known,
		CameraID:   cameraID,
		ServerTime: now.Format(time.RFC3339Nano),
	}, nil
}
