package types

import "time"

type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionRunning   SessionStatus = "running"
	SessionEnded     SessionStatus = "ended"
	SessionLocked    SessionStatus = "locked"
	SessionCancelled SessionStatus = "cancelled"
)

// Session is one scheduled activity. LockedAt is set exactly when Status is
// SessionLocked and never changes afterwards.
type Session struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	Description        string        `json:"description,omitempty"`
	RoomID             string        `json:"room_id,omitempty"`
	HostID             string        `json:"host_id,omitempty"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            time.Time     `json:"end_time"`
	GracePeriodMinutes int           `json:"grace_period_minutes"`
	Status             SessionStatus `json:"status"`
	LockedAt           *time.Time    `json:"locked_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// RosterEntry declares that a person is expected at a session.
type RosterEntry struct {
	SessionID  string    `json:"session_id"`
	PersonID   string    `json:"person_id"`
	IsRequired bool      `json:"is_required"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateSessionRequest struct {
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	RoomID             string   `json:"room_id,omitempty"`
	HostID             string   `json:"host_id,omitempty"`
	StartTime          string   `json:"start_time"`
	EndTime            string   `json:"end_time"`
	GracePeriodMinutes *int     `json:"grace_period_minutes,omitempty"`
	RosterPersonIDs    []string `json:"roster_person_ids,omitempty"`
	ActorID            string   `json:"actor_id"`
}

// UpdateSessionRequest carries a partial metadata edit; empty fields are left
// untouched.
type UpdateSessionRequest struct {
	Title              string `json:"title,omitempty"`
	Description        string `json:"description,omitempty"`
	StartTime          string `json:"start_time,omitempty"`
	EndTime            string `json:"end_time,omitempty"`
	GracePeriodMinutes *int   `json:"grace_period_minutes,omitempty"`
	ActorID            string `json:"actor_id"`
}

type TransitionRequest struct {
	ActorID string `json:"actor_id,omitempty"`
}

type RosterRequest struct {
	PersonIDs []string `json:"person_ids"`
	ActorID   string   `json:"actor_id,omitempty"`
}
