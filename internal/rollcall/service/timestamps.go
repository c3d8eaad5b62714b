package service

import (
	"strings"
	"time"
)

// parseOptionalTimestamp parses an RFC 3339 timestamp reported by a client.
// Empty input yields nil, nil.
func parseOptionalTimestamp(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	u := t.UTC()
	return &u, nil
}

func parseOptionalTime(vErr *ValidationError, field, s string) *time.Time {
	t, err := parseOptionalTimestamp(s)
	if err != nil {
		vErr.add(field, "must be an RFC 3339 timestamp")
		return nil
	}
	return t
}

func parseRequiredTime(vErr *ValidationError, field, s string) time.Time {
	if strings.TrimSpace(s) == "" {
		vErr.add(field, "is required")
		return time.Time{}
	}
	t := parseOptionalTime(vErr, field, s)
	if t == nil {
		return time.Time{}
	}
	return *t
}
