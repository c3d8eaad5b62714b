package types

import "time"

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
	StatusAbsent  AttendanceStatus = "absent"
)

// Valid reports whether s is one of the three ledger statuses.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent:
		return true
	}
	return false
}

// AttendanceRecord is the single mutable projection of attendance for one
// (session, person) pair. Status is absent exactly when CheckinTime is nil.
type AttendanceRecord struct {
	ID               string           `json:"id"`
	SessionID        string           `json:"session_id"`
	PersonID         string           `json:"person_id"`
	Status           AttendanceStatus `json:"status"`
	CheckinTime      *time.Time       `json:"checkin_time,omitempty"`
	CheckoutTime     *time.Time       `json:"checkout_time,omitempty"`
	CheckinCameraID  string           `json:"checkin_camera_id,omitempty"`
	CheckoutCameraID string           `json:"checkout_camera_id,omitempty"`
	IsManual         bool             `json:"is_manual"`
	Notes            string           `json:"notes,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

type AttendanceSummary struct {
	Total   int `json:"total"`
	Present int `json:"present"`
	Late    int `json:"late"`
	Absent  int `json:"absent"`
}

// SessionAttendance is the catch-up view an observer fetches after
// (re)connecting to a session channel.
type SessionAttendance struct {
	Session Session            `json:"session"`
	Records []AttendanceRecord `json:"records"`
	Summary AttendanceSummary  `json:"summary"`
}

type ManualAttendanceRequest struct {
	SessionID string `json:"session_id"`
	PersonID  string `json:"person_id"`
	Notes     string `json:"notes,omitempty"`
	ActorID   string `json:"actor_id"`
}

type OverrideRequest struct {
	Status  AttendanceStatus `json:"status"`
	Notes   string           `json:"notes,omitempty"`
	ActorID string           `json:"actor_id"`
}
