package types

import "time"

type Direction string

const (
	DirectionEntry Direction = "entry"
	DirectionExit  Direction = "exit"
)

func (d Direction) Valid() bool {
	return d == DirectionEntry || d == DirectionExit
}

// RecognitionEvent is an append-only fact reported by an AI node (or
// synthesized by a reviewer assignment). PersonID is empty for unmatched
// detections.
type RecognitionEvent struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	CameraID    string    `json:"camera_id"`
	PersonID    string    `json:"person_id,omitempty"`
	Confidence  float64   `json:"confidence"`
	SnapshotRef string    `json:"snapshot_ref,omitempty"`
	Direction   Direction `json:"direction"`
	Timestamp   time.Time `json:"timestamp"`
	ReceivedAt  time.Time `json:"received_at"`
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewAssigned ReviewStatus = "assigned"
	ReviewIgnored  ReviewStatus = "ignored"
)

func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewAssigned, ReviewIgnored:
		return true
	}
	return false
}

// UnknownFace is a detection without a person match awaiting triage. The
// review fields are populated once, when the face leaves ReviewPending.
type UnknownFace struct {
	ID               string       `json:"id"`
	SessionID        string       `json:"session_id"`
	CameraID         string       `json:"camera_id"`
	SnapshotRef      string       `json:"snapshot_ref"`
	EmbeddingRef     string       `json:"embedding_ref,omitempty"`
	ReviewStatus     ReviewStatus `json:"review_status"`
	AssignedPersonID string       `json:"assigned_person_id,omitempty"`
	ReviewedBy       string       `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time   `json:"reviewed_at,omitempty"`
	Timestamp        time.Time    `json:"timestamp"`
}

// UnknownReview is the terminal decision taken on an unknown face.
type UnknownReview struct {
	UnknownID        string
	Status           ReviewStatus
	AssignedPersonID string
	ReviewedBy       string
	ReviewedAt       time.Time
}

// RecognitionRequest is the wire shape an AI node posts for a detection.
// Confidence is a pointer so a missing value can be told apart from zero.
type RecognitionRequest struct {
	SessionID   string   `json:"session_id"`
	CameraID    string   `json:"camera_id"`
	PersonID    string   `json:"person_id,omitempty"`
	Confidence  *float64 `json:"confidence"`
	SnapshotRef string   `json:"snapshot_ref,omitempty"`
	Direction   string   `json:"direction,omitempty"`
	Timestamp   string   `json:"timestamp,omitempty"` // RFC3339; server time when empty
}

type UnknownRequest struct {
	SessionID    string `json:"session_id"`
	CameraID     string `json:"camera_id"`
	SnapshotRef  string `json:"snapshot_ref"`
	EmbeddingRef string `json:"embedding_ref,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}

type IngestResponse struct {
	Accepted   bool   `json:"accepted"`
	EventID    string `json:"event_id,omitempty"`
	UnknownID  string `json:"unknown_id,omitempty"`
	Applied    bool   `json:"applied"`
	Reason     string `json:"reason,omitempty"`
	ServerTime string `json:"server_time"`
}

type AssignRequest struct {
	PersonID   string `json:"person_id"`
	ReviewerID string `json:"reviewer_id"`
}

type IgnoreRequest struct {
	ReviewerID string `json:"reviewer_id"`
}
