package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	roveradapter "github.com/helios-robotics/roverops/internal/adapter/driven/rover"
	sqliteadapter "github.com/helios-robotics/roverops/internal/adapter/driven/sqlite"
	telemetryadapter "github.com/helios-robotics/roverops/internal/adapter/driven/telemetry"
	httphandler "github.com/helios-robotics/roverops/internal/adapter/driving/http"
	"github.com/helios-robotics/roverops/internal/application"
	"github.com/helios-robotics/roverops/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"backend_url", cfg.BackendURL,
		"telemetry_url", cfg.TelemetryURL,
		"camera_url", cfg.CameraURL,
		"db_path", cfg.DBPath,
		"persistence", cfg.SecretKey != nil,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	sessionStore := sqliteadapter.NewSessionRepo(db, cfg.SecretKey)
	backend := roveradapter.NewClient(cfg.BackendURL)
	dialer := telemetryadapter.NewDialer(cfg.TelemetryURL)
	cameraDialer := telemetryadapter.NewDialer(cfg.CameraURL)

	// 6. Create session manager and restore any persisted session.
	session := application.NewSessionManager(backend, sessionStore, cfg.RefreshMargin)
	session.Restore(ctx)
	if status := session.Status(); status.Authenticated {
		slog.Info("session restored", "username", status.Username)
	}

	// 7. Create and start the telemetry synchronizer and camera stream.
	telemetry := application.NewSynchronizer(dialer, session, cfg.ReconnectDelay, cfg.HistoryDepth)
	go telemetry.Run(ctx)
	camera := application.NewCameraStream(cameraDialer, session, cfg.ReconnectDelay)
	go camera.Run(ctx)

	// 8. Create the teleop dispatcher. Close() on shutdown cancels any
	// in-flight hold so the backend watchdog halts the motors.
	dispatcher := application.NewDispatcher(backend, session, cfg.CommandInterval)
	defer dispatcher.Close()

	// 9. Create and start the map feed, plus the SLAM relay.
	mapFeed := application.NewMapFeed(backend, session, cfg.MapPollInterval)
	go mapFeed.Run(ctx)
	slam := application.NewSlamService(backend, session)

	// 10. Create HTTP handler and register routes.
	apiHandler := httphandler.NewHandler(session, telemetry, dispatcher, camera, mapFeed, slam, backend, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("roverops started",
		"listen_addr", cfg.ListenAddr,
		"command_interval", cfg.CommandInterval,
		"reconnect_delay", cfg.ReconnectDelay,
	)

	// 11. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 12. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
