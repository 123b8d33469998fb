package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/pillbox/internal/actuator"
	"github.com/goodtune/pillbox/internal/admin"
	"github.com/goodtune/pillbox/internal/clock"
	"github.com/goodtune/pillbox/internal/config"
	"github.com/goodtune/pillbox/internal/engine"
	"github.com/goodtune/pillbox/internal/events"
	"github.com/goodtune/pillbox/internal/history"
	"github.com/goodtune/pillbox/internal/metrics"
	"github.com/goodtune/pillbox/internal/storage"
	"github.com/goodtune/pillbox/internal/storage/bolt"
	"github.com/goodtune/pillbox/internal/storage/memory"
	redisstore "github.com/goodtune/pillbox/internal/storage/redis"
	"github.com/goodtune/pillbox/internal/storage/sqlite"
	"github.com/goodtune/pillbox/internal/systemd"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start Pillbox server",
	Long:  `Start the dispenser engine with the admin API, event publishers and metrics endpoint.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting Pillbox")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	store, redisClient, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	// Time source
	src, err := clock.Select(cfg.Clock.Source, cfg.Clock.RTCDevice, cfg.Clock.Timezone)
	if err != nil {
		return fmt.Errorf("failed to initialize clock: %w", err)
	}
	if !src.HasReliableClock() {
		logger.Warn().
			Str("rtc_device", cfg.Clock.RTCDevice).
			Msg("No reliable clock, running on uptime; slot times will drift from wall time")
	}

	// Servo controller
	act := actuator.NewServo(ctx, newDriver(cfg.Actuator, logger), actuator.Options{
		HomeAngle:     cfg.Actuator.HomeAngle,
		DispenseAngle: cfg.Actuator.DispenseAngle,
		Hold:          config.Duration(cfg.Actuator.Hold),
		Settle:        config.Duration(cfg.Actuator.Settle),
		ProbeAttempts: cfg.Actuator.ProbeAttempts,
		ProbeInterval: config.Duration(cfg.Actuator.ProbeInterval),
	}, logger)

	// Event fan-out
	bus := events.NewBus()
	publishers, err := openPublishers(cfg, redisClient, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize event publishers: %w", err)
	}
	eventHooks := events.NewHooks(bus, cfg.Device.Name, logger, publishers...)
	go eventHooks.Run(ctx)

	recorder, err := history.New(cfg.Device.HistorySize)
	if err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}

	// Engine
	eng := engine.New(ctx, src, store, act, engine.MultiHooks{eventHooks, recorder}, engine.Options{
		ConfirmTimeout: config.Duration(cfg.Device.ConfirmTimeout),
		StartupGrace:   config.Duration(cfg.Device.StartupGrace),
	}, logger)

	// Gates may have been left open by a crash or power cut
	if err := eng.HomeAll(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to return modules home")
	}

	runner := engine.NewRunner(eng, config.Duration(cfg.Server.TickInterval), logger)
	go func() {
		if err := runner.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("Engine loop exited")
		}
	}()

	// Initialize Admin Server
	var adminServer *admin.Server
	if cfg.Admin.Enabled {
		adminConfig := admin.Config{
			ListenAddr:      fmt.Sprintf("%s:%d", cfg.Admin.BindAddress, cfg.Admin.Port),
			Token:           cfg.Admin.Token,
			RateLimit:       cfg.Admin.RateLimit,
			RateLimitWindow: config.Duration(cfg.Admin.RateLimitWindow),
			AllowedOrigins:  cfg.Admin.AllowedOrigins,
		}
		adminServer = admin.NewServer(adminConfig, runner, recorder, bus, logger)

		// Use systemd socket-activated listener if available
		if sdListeners.Activated && sdListeners.Admin != nil {
			err = adminServer.Serve(sdListeners.Admin)
		} else {
			err = adminServer.Start()
		}
		if err != nil {
			return fmt.Errorf("failed to start Admin Server: %w", err)
		}
	}

	// Initialize Metrics Server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)

	// Use systemd socket-activated listener if available
	if sdListeners.Activated && sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}

	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start Metrics Server: %w", err)
	}

	logger.Info().Msg("Pillbox startup complete")
	if cfg.Admin.Enabled {
		logger.Info().Msgf("Admin API: http://%s:%d/api/status", cfg.Admin.BindAddress, cfg.Admin.Port)
	}
	logger.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Server.BindAddress, cfg.Server.MetricsPort)

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	go systemd.RunWatchdog(ctx, func() bool {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		return runner.Do(pingCtx, func(*engine.Engine) error { return nil }) == nil
	}, logger)

	// Wait for signals (shutdown or reload)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

wait:
	for {
		select {
		case <-runner.Done():
			logger.Error().Msg("Engine loop stopped unexpectedly, shutting down")
			break wait
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				logger.Info().Msg("SIGHUP received, reloading schedule from storage...")
				if err := runner.Do(ctx, func(e *engine.Engine) error { return e.Reload(ctx) }); err != nil {
					logger.Error().Err(err).Msg("Failed to reload schedule")
				} else {
					logger.Info().Msg("Schedule reloaded successfully")
				}
				continue
			}
			logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, gracefully stopping...")
			break wait
		}
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop servers
	if adminServer != nil {
		if err := adminServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Admin Server")
		}
	}

	homeCtx, homeCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := runner.Do(homeCtx, func(e *engine.Engine) error { return e.HomeAll(homeCtx) }); err != nil {
		logger.Warn().Err(err).Msg("Failed to return modules home")
	}
	homeCancel()

	cancel()
	<-runner.Done()

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping Metrics Server")
	}

	logger.Info().Msg("Pillbox stopped")

	return nil
}

// openStorage opens the configured backend. The Redis client is returned
// as well so event publishing can share the connection.
func openStorage(cfg *config.Config) (storage.Store, *redis.Client, error) {
	switch cfg.Storage.Type {
	case "", "bolt":
		store, err := bolt.Open(cfg.Storage.Path)
		return store, nil, err
	case "sqlite":
		store, err := sqlite.Open(cfg.Storage.Path)
		return store, nil, err
	case "redis":
		store, err := redisstore.Open(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Client(), nil
	case "memory":
		return memory.New(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// openPublishers connects the enabled external event sinks. A Redis
// connection already opened for storage is reused.
func openPublishers(cfg *config.Config, redisClient *redis.Client, logger zerolog.Logger) ([]events.Publisher, error) {
	var publishers []events.Publisher

	if cfg.Events.Redis.Enabled {
		owned := false
		if redisClient == nil {
			store, err := redisstore.Open(cfg.Redis)
			if err != nil {
				return nil, fmt.Errorf("redis events: %w", err)
			}
			redisClient = store.Client()
			owned = true
		}
		publishers = append(publishers, events.NewRedisPublisher(redisClient, cfg.Events.Redis.Channel, owned))
		logger.Info().Str("channel", cfg.Events.Redis.Channel).Msg("Publishing events to Redis")
	}

	if cfg.Events.NATS.Enabled {
		nc, err := events.NewNATSPublisher(events.NATSConfig{
			URL:           cfg.Events.NATS.URL,
			Token:         cfg.Events.NATS.Token,
			SubjectPrefix: cfg.Events.NATS.SubjectPrefix,
			MaxReconnects: cfg.Events.NATS.MaxReconnects,
			ReconnectWait: config.Duration(cfg.Events.NATS.ReconnectWait),
			Timeout:       config.Duration(cfg.Events.NATS.Timeout),
		}, cfg.Device.Name)
		if err != nil {
			for _, p := range publishers {
				_ = p.Close()
			}
			return nil, fmt.Errorf("nats events: %w", err)
		}
		publishers = append(publishers, nc)
		logger.Info().Str("url", cfg.Events.NATS.URL).Msg("Publishing events to NATS")
	}

	return publishers, nil
}

// newDriver returns the servo driver named in the configuration.
func newDriver(cfg config.ActuatorConfig, logger zerolog.Logger) actuator.Driver {
	switch cfg.Driver {
	case "none":
		return actuator.None{}
	default:
		return actuator.NewSimDriver(logger)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
