package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{service.ErrSessionNotActive, "session_not_active"},
		{fmt.Errorf("event e1 recorded but not applied: %w", service.ErrSessionNotActive), "session_not_active"},
		{service.ErrNotFound, "not_found"},
		{service.ErrAlreadyReviewed, "already_reviewed"},
		{service.ErrDuplicateRoster, "duplicate_roster"},
		{service.ErrSessionLocked, "session_locked"},
		{service.ErrUnauthorized, "unauthorized"},
		{context.Canceled, "canceled"},
		{&service.ConflictError{Op: "start", From: types.SessionEnded}, "invalid_transition"},
		{&service.ValidationError{FieldErrors: map[string]string{"title": "is required"}}, "validation"},
		{fmt.Errorf("disk full"), "unexpected"},
	}
	for _, tt := range tests {
		if got := service.ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &service.ValidationError{FieldErrors: map[string]string{
		"title":    "is required",
		"end_time": "must be after start_time",
	}}
	want := "validation failed: end_time: must be after start_time; title: is required"
	if err.Error() != want {
		t.Errorf("Error() = %q", err.Error())
	}
	if !err.HasErrors() {
		t.Error("HasErrors() = false")
	}
}

func TestConflictError_Message(t *testing.T) {
	err := &service.ConflictError{Op: "lock", From: types.SessionRunning}
	if err.Error() != "cannot lock a running session" {
		t.Errorf("Error() = %q", err.Error())
	}
}
