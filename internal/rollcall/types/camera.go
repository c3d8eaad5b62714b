package types

import "time"

type CameraStatus string

const (
	CameraOnline  CameraStatus = "online"
	CameraOffline CameraStatus = "offline"
	CameraError   CameraStatus = "error"
)

func (s CameraStatus) Valid() bool {
	switch s {
	case CameraOnline, CameraOffline, CameraError:
		return true
	}
	return false
}

// Camera is an inventory entry. Threshold is the minimum confidence at which a
// matched detection from this camera is trusted; nil means the server default.
type Camera struct {
	ID            string       `json:"id"`
	Name          string       `json:"name,omitempty"`
	Direction     Direction    `json:"direction"`
	Threshold     *float64     `json:"threshold,omitempty"`
	Known         bool         `json:"known"`
	Status        CameraStatus `json:"status"`
	LastHeartbeat *time.Time   `json:"last_heartbeat,omitempty"`
}

type HeartbeatRequest struct {
	CameraID string   `json:"camera_id"`
	Status   string   `json:"status"`
	FPS      *float64 `json:"fps,omitempty"`
	ErrorMsg string   `json:"error_msg,omitempty"`
}

type HeartbeatResponse struct {
	OK         bool   `json:"ok"`
	Known      bool   `json:"known"`
	CameraID   string `json:"camera_id"`
	ServerTime string `json:"server_time"`
}
