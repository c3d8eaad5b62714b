// Package policy holds the temporal attendance rule shared by every path that
// records a check-in: AI recognition, manual check-in and unknown-face
// assignment all call Classify and nothing else.
package policy

import (
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// Classify returns StatusLate when eventTime is strictly after
// sessionStart + graceMinutes, StatusPresent otherwise. A negative grace
// period is treated as zero.
func Classify(eventTime, sessionStart time.Time, graceMinutes int) types.AttendanceStatus {
	if eventTime.After(Deadline(sessionStart, graceMinutes)) {
		return types.StatusLate
	}
	return types.StatusPresent
}

// Deadline is the last instant still classified as on time.
func Deadline(sessionStart time.Time, graceMinutes int) time.Time {
	if graceMinutes < 0 {
		graceMinutes = 0
	}
	return sessionStart.Add(time.Duration(graceMinutes) * time.Minute)
}
