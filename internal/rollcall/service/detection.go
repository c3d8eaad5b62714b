package service

import (
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// Detection is a validated detection ready for ingestion. It is either a
// Recognition (a trusted person match) or an Unknown (no usable match).
type Detection interface {
	isDetection()
}

// Recognition is a detection matched to a person at or above the camera's
// confidence threshold.
type Recognition struct {
	SessionID   string
	CameraID    string
	PersonID    string
	Confidence  float64
	SnapshotRef string
	Direction   types.Direction
	Timestamp   time.Time
}

// Unknown is a detection awaiting human review.
type Unknown struct {
	SessionID    string
	CameraID     string
	SnapshotRef  string
	EmbeddingRef string
	Timestamp    time.Time
}

func (Recognition) isDetection() {}
func (Unknown) isDetection()     {}
