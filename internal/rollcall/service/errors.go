package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

var (
	// ErrSessionNotActive is returned when a ledger write is attempted on a
	// session that is not running.
	ErrSessionNotActive = errors.New("session is not active")
	// ErrNotFound is returned when a session, record or unknown face does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyReviewed is returned when an unknown face already left pending.
	ErrAlreadyReviewed = errors.New("unknown face already reviewed")
	// ErrDuplicateRoster is returned when a person is already on the roster.
	ErrDuplicateRoster = errors.New("person already on roster")
	// ErrSessionLocked is returned for edits to a locked session or its records.
	ErrSessionLocked = errors.New("session is locked")
	// ErrUnauthorized is returned when an AI node presents a bad API key.
	ErrUnauthorized = errors.New("unauthorized")
)

// ConflictError reports a session transition that is not allowed from the
// session's current state.
type ConflictError struct {
	Op   string
	From types.SessionStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot %s a %s session", e.Op, e.From)
}

// ValidationError captures field level problems with a request. Nothing is
// persisted when one is returned.
type ValidationError struct {
	FieldErrors map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v.FieldErrors[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// orNil lets callers return a *ValidationError as a plain error without the
// typed-nil trap.
func (v *ValidationError) orNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

// mapStoreErr translates store sentinels into service errors.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	}
	return err
}
