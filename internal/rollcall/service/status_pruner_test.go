package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store/memory"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

func TestStatusPruner_DisabledWhenRetentionZero(t *testing.T) {
	ms := memory.NewCameraStatusStore()
	pruner := service.NewStatusPruner(ms, service.PrunerConfig{
		RetentionDays: 0,
		IntervalHours: 1,
	}, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pruner.Start(ctx)
	pruner.Stop()
}

func TestStatusPruner_PrunesOnStart(t *testing.T) {
	ms := memory.NewCameraStatusStore()
	ctx := context.Background()

	for id, age := range map[string]int{"cam-old": -40, "cam-recent": -1} {
		rec := store.CameraStatusRecord{
			CameraID:   id,
			Status:     types.CameraOnline,
			ReceivedAt: time.Now().UTC().AddDate(0, 0, age),
		}
		if err := ms.RecordStatus(ctx, rec); err != nil {
			t.Fatalf("RecordStatus %s: %v", id, err)
		}
	}

	pruner := service.NewStatusPruner(ms, service.PrunerConfig{
		RetentionDays: 30,
		IntervalHours: 1,
	}, silentLogger())
	pruner.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for len(ms.Statuses()) != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	pruner.Stop()

	got := ms.Statuses()
	if len(got) != 1 || got[0].CameraID != "cam-recent" {
		t.Fatalf("remaining statuses = %+v", got)
	}
}

func TestStatusPruner_StopIsIdempotent(t *testing.T) {
	ms := memory.NewCameraStatusStore()
	pruner := service.NewStatusPruner(ms, service.PrunerConfig{
		RetentionDays: 30,
		IntervalHours: 1,
	}, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	pruner.Start(ctx)

	cancel()
	pruner.Stop()
	pruner.Stop()
}
