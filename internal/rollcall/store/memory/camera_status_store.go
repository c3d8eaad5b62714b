package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

// CameraStatusStore is an in-memory log of camera heartbeats.
type CameraStatusStore struct {
	mu   sync.Mutex
	data []store.CameraStatusRecord
}

func NewCameraStatusStore() *CameraStatusStore {
	return &CameraStatusStore{}
}

func (s *CameraStatusStore) RecordStatus(_ context.Context, rec store.CameraStatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	s.data = append(s.data, rec)
	return nil
}

func (s *CameraStatusStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.data[:0]
	var n int64
	for _, rec := range s.data {
		if rec.ReceivedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	s.data = kept
	return n, nil
}

// Statuses returns a copy of the retained heartbeats. Test-only helper.
func (s *CameraStatusStore) Statuses() []store.CameraStatusRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.CameraStatusRecord, len(s.data))
	copy(out, s.data)
	return out
}
