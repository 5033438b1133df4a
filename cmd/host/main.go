package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"playcast/internal/core/services"
	httphandlers "playcast/internal/handlers/http"
	"playcast/internal/infrastructure/actuate"
	backupinfra "playcast/internal/infrastructure/backup"
	"playcast/internal/infrastructure/discovery"
	"playcast/internal/infrastructure/distributed"
	"playcast/internal/infrastructure/middleware"
	"playcast/internal/infrastructure/monitoring"
	"playcast/internal/infrastructure/pipeline"
	signalsrv "playcast/internal/infrastructure/signal"
	"playcast/internal/infrastructure/transport"
	"playcast/pkg/backup"
	"playcast/pkg/config"
	"playcast/pkg/logger"
	"playcast/pkg/settings"
	"playcast/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const appVersion = "1.0.0"

func main() {
	startTime := time.Now()

	// The first existing config file wins; with none, defaults plus
	// env overrides apply. A config that exists but does not load is
	// an operator error and stops the host.
	var configPath string
	for _, path := range []string{
		"configs/config.yaml",
		"config.yaml",
		"/etc/playcast/config.yaml",
	} {
		if _, err := os.Stat(path); err == nil {
			configPath = path
			break
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "playcast:", err)
		os.Exit(1)
	}

	// A single positional argument overrides the signaling bind address.
	if len(os.Args) > 1 {
		cfg.Signal.Address = os.Args[1]
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Settings document, recovered from the newest backup when the
	// file on disk is corrupt.
	fileStorage, err := backup.NewFileStorage(cfg.Settings.BackupDir)
	if err != nil {
		log.Fatalw("failed to open backup directory", "dir", cfg.Settings.BackupDir, "error", err)
	}
	backupService := backup.NewBackupService(fileStorage, appVersion)
	restoreService := backupinfra.NewRestoreService(backupService, log)

	loaded, err := restoreService.LoadWithRecovery(ctx, cfg.Settings.Path)
	if err != nil {
		log.Fatalw("failed to load settings", "path", cfg.Settings.Path, "error", err)
	}
	store := settings.NewStore(loaded)
	log.Infow("settings loaded",
		"peer_management", loaded.PeerManagementType,
		"bitrate", loaded.Bitrate)

	// Initialize monitoring and tracing
	registry := prometheus.NewRegistry()
	collector := monitoring.NewPrometheusCollector(registry)

	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "playcast",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Actuation collaborators. The host is useless without them, so
	// init failure is fatal.
	pointer, err := actuate.NewPointer(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize pointer input", "error", err)
	}
	gamepad, err := actuate.NewGamepad(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize virtual gamepad", "error", err)
	}

	// Initialize services
	metricsService := services.NewMetricsService()
	dispatcher := services.NewActuationService(pointer, gamepad, metricsService, log)

	engine := pipeline.NewGstLaunchEngine(collector, log)
	engine.SetBinary(cfg.Pipeline.Launcher)
	engine.SetStopGrace(cfg.Pipeline.StopTimeout)
	pipelineService := services.NewPipelineService(
		engine,
		store,
		cfg.Pipeline.VideoPort,
		cfg.Pipeline.AudioPort,
		log,
	)

	mirror := distributed.NewPresenceMirror(ctx, cfg, log)

	sessionService := services.NewSessionService(store, pipelineService, mirror, metricsService, log)
	sessionService.Start(ctx)

	// Health checks exposed on the admin surface
	health := monitoring.NewHealthChecker()
	health.AddCheck("pipeline_launcher", func(ctx context.Context) error {
		_, err := exec.LookPath(cfg.Pipeline.Launcher)
		return err
	}, 2*time.Second)
	if rm, ok := mirror.(*distributed.RedisPresenceMirror); ok {
		health.AddCheck("redis", rm.Ping, 2*time.Second)
	}

	// Signaling server
	signalServer := signalsrv.NewServer(
		cfg.Signal.Address,
		sessionService,
		dispatcher,
		store,
		collector,
		log,
	)
	signalServer.SetRequirePIN(cfg.Signal.RequirePIN)
	signalServer.SetPingInterval(cfg.Signal.PingInterval)
	signalServer.SetReadTimeout(cfg.Signal.PongTimeout)
	signalServer.SetMaxMessageBytes(cfg.Signal.MaxMessageBytes)
	if cfg.RateLimiting.Enabled && cfg.RateLimiting.Signal.ConnectionsPerMinute > 0 {
		cpm := cfg.RateLimiting.Signal.ConnectionsPerMinute
		signalServer.SetUpgradeLimit(rate.Limit(float64(cpm)/60.0), cpm)
	}
	if err := signalServer.Start(); err != nil {
		log.Fatalw("failed to start signal server", "addr", cfg.Signal.Address, "error", err)
	}

	// Reliable input transport
	inputServer := transport.NewServer(cfg.Input.Address, dispatcher, sessionService, collector, log)
	inputServer.SetPeerLimit(cfg.Input.PeerLimit)
	inputServer.SetIdleTimeout(cfg.Input.IdleTimeout)
	inputServer.SetWindowSize(cfg.Input.WindowSize)
	inputServer.SetPollInterval(cfg.Input.PollInterval)
	if err := inputServer.Start(); err != nil {
		log.Fatalw("failed to start input transport", "addr", cfg.Input.Address, "error", err)
	}

	// Discovery beacon announces the signaling port over UDP broadcast
	beaconCtx, beaconCancel := context.WithCancel(ctx)
	defer beaconCancel()

	var beacon *discovery.Beacon
	if cfg.Discovery.Enabled {
		port := signalPort(signalServer.Addr())
		if port == 0 {
			log.Warnw("cannot derive signal port, discovery disabled", "addr", signalServer.Addr())
		} else {
			beacon = discovery.NewBeacon(
				cfg.Discovery.BroadcastAddress,
				cfg.Discovery.ServiceTag,
				port,
				collector,
				log,
			)
			beacon.SetInterval(cfg.Discovery.Interval)
			if err := beacon.Start(beaconCtx); err != nil {
				log.Fatalw("failed to start discovery beacon", "error", err)
			}
		}
	}

	// Periodic settings backups
	scheduler := backupinfra.NewScheduler(
		backupService,
		store,
		cfg.Settings.BackupInterval,
		cfg.Settings.BackupRetention,
		log,
	)
	go scheduler.Start(ctx)

	// Admin API
	serverErr := make(chan error, 1)

	var adminServer *http.Server
	if cfg.Admin.Enabled {
		if cfg.Logging.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		router := gin.New()
		router.Use(middleware.RecoveryMiddleware(log))
		router.Use(middleware.RequestIDMiddleware())
		router.Use(middleware.RequestLoggerMiddleware(zapLogger))
		router.Use(middleware.ErrorHandlerMiddleware(log))
		router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
		if cfg.Tracing.Enabled {
			router.Use(middleware.TracingMiddleware())
		}

		var guard gin.HandlerFunc
		if cfg.Admin.PINGuard {
			guard = middleware.PINGuardMiddleware(store, log)
		}

		var metricsRegistry *prometheus.Registry
		if cfg.Monitoring.PrometheusEnabled {
			metricsRegistry = registry
		}

		adminHandler := httphandlers.NewAdminHandler(
			sessionService,
			store,
			health,
			metricsRegistry,
			cfg.Admin.SnapshotTTL,
			log,
		)
		adminHandler.SetupRoutes(router, guard)

		adminServer = &http.Server{
			Addr:         cfg.Admin.Address,
			Handler:      router,
			ReadTimeout:  cfg.Admin.ReadTimeout,
			WriteTimeout: cfg.Admin.WriteTimeout,
		}

		go func() {
			log.Infow("admin server listening", "addr", cfg.Admin.Address)
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErr <- err
			}
		}()
	}

	log.Infow("playcast host running",
		"signal_addr", signalServer.Addr(),
		"input_addr", inputServer.Addr(),
		"discovery", beacon != nil,
		"started_in", time.Since(startTime).String())

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("admin server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("shutting down playcast host...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Signal.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting admin requests first, then announcements.
	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			log.Errorw("admin server shutdown failed", "error", err)
			if closeErr := adminServer.Close(); closeErr != nil {
				log.Errorw("admin server force close failed", "error", closeErr)
			}
		}
	}

	beaconCancel()
	if beacon != nil {
		<-beacon.Done()
	}

	if err := inputServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("input transport shutdown failed", "error", err)
	}

	// Closing the signaling peers drains the lifecycle queue, which
	// stops the pipeline on the last leave.
	if err := signalServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("signal server shutdown failed", "error", err)
	}
	sessionService.Close()
	pipelineService.Stop(shutdownCtx)

	if err := mirror.Close(shutdownCtx); err != nil {
		log.Errorw("presence mirror close failed", "error", err)
	}
	scheduler.Stop()

	if err := settings.Save(cfg.Settings.Path, store.Get()); err != nil {
		log.Errorw("failed to persist settings", "path", cfg.Settings.Path, "error", err)
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("tracer shutdown failed", "error", err)
	}

	log.Info("playcast host stopped")
}

// signalPort extracts the port the beacon should announce. Zero means
// the listener address was not a host:port pair.
func signalPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}
