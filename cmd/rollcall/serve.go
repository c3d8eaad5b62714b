package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/rollcall/internal/config"
	"github.com/BrandonDHaskell/rollcall/internal/db"
	"github.com/BrandonDHaskell/rollcall/internal/grpcapi"
	"github.com/BrandonDHaskell/rollcall/internal/httpapi"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/audit"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/notify"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store/memory"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store/sqlite"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
	"github.com/BrandonDHaskell/rollcall/internal/telemetry"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx.cfg, ctx.logger)
		},
	}
}

type stores struct {
	attendance store.AttendanceStore
	cameras    store.CameraStore
	statuses   store.CameraStatusStore
	audit      store.AuditStore

	// camerasSeeded is set when the inventory was already written.
	camerasSeeded bool
	close         func()
}

func openStores(ctx context.Context, cfg config.Config, cams []types.Camera, logger *slog.Logger) (*stores, error) {
	if cfg.Store == "memory" {
		logger.WarnContext(ctx, "using in-memory store; nothing is persisted")
		return &stores{
			attendance:    memory.NewAttendanceStore(),
			cameras:       memory.NewCameraStore(cams),
			statuses:      memory.NewCameraStatusStore(),
			audit:         memory.NewAuditStore(),
			camerasSeeded: true,
			close:         func() {},
		}, nil
	}

	lock, err := db.AcquireLock(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	writer := db.NewWorker(conn)

	s := &stores{
		attendance: sqlite.NewAttendanceStore(conn, writer),
		cameras:    sqlite.NewCameraStore(conn, writer),
		statuses:   sqlite.NewCameraStatusStore(conn, writer),
		audit:      sqlite.NewAuditStore(conn, writer),
		close: func() {
			writer.Close()
			_ = conn.Close()
			_ = lock.Unlock()
		},
	}

	if cfg.IsDev() {
		if err := db.SeedDev(ctx, conn, db.SeedDevOptions{Cameras: seedCameras(cams), DemoSession: true}); err != nil {
			s.close()
			return nil, err
		}
		s.camerasSeeded = true
	}
	logger.InfoContext(ctx, "database ready", "db_path", cfg.DBPath)
	return s, nil
}

func seedCameras(cams []types.Camera) []db.SeedCamera {
	out := make([]db.SeedCamera, 0, len(cams))
	for _, c := range cams {
		out = append(out, db.SeedCamera{ID: c.ID, Name: c.Name, Direction: string(c.Direction), Threshold: c.Threshold})
	}
	return out
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, "rollcall", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	cams, err := config.LoadCameras(cfg.CamerasFile)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, cams, logger)
	if err != nil {
		return err
	}
	defer st.close()

	hub := notify.NewHub()
	sink, err := audit.NewStoreSink(st.audit)
	if err != nil {
		return err
	}
	deps := service.Deps{
		Store:             st.attendance,
		Notifier:          hub,
		Audit:             sink,
		Logger:            logger,
		SideEffectTimeout: cfg.SideEffectTimeout,
	}

	registry := service.NewCameraRegistry(st.cameras, cfg.DefaultThreshold)
	if !st.camerasSeeded {
		if err := registry.Register(ctx, cams); err != nil {
			return err
		}
	}
	logger.InfoContext(ctx, "camera inventory loaded", "cameras", len(cams), "file", cfg.CamerasFile)

	ledger := service.NewLedgerService(deps)
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:    logger,
		Addr:      cfg.HTTPAddr,
		Sessions:  service.NewSessionService(deps, cfg.DefaultGrace),
		Ledger:    ledger,
		Ingest:    service.NewIngestService(deps, ledger, registry),
		Review:    service.NewReviewService(deps, ledger),
		Health:    service.NewCameraHealthService(st.statuses, registry, deps),
		Hub:       hub,
		AIKeyHash: cfg.AIKeyHash,
	})
	if cfg.AIKeyHash == "" {
		logger.WarnContext(ctx, "AI node API key check disabled")
	}

	pruner := service.NewStatusPruner(st.statuses, service.PrunerConfig{
		RetentionDays: cfg.StatusRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errs := make(chan error, 2)

	if cfg.GRPCAddr != "" {
		gs, err := grpcapi.Listen(cfg.GRPCAddr, logger)
		if err != nil {
			return err
		}
		go func() { errs <- gs.Serve(ctx) }()
	}

	go func() {
		logger.InfoContext(ctx, "http listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http: %w", err)
			return
		}
		errs <- nil
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	logger.Info("rollcall stopped")
	return runErr
}
