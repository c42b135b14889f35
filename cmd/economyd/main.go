package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Vonix-Network/VonixCore-sub003/internal/app"
	"github.com/Vonix-Network/VonixCore-sub003/internal/config"
	"github.com/Vonix-Network/VonixCore-sub003/internal/database"
	"github.com/Vonix-Network/VonixCore-sub003/internal/gateway"
	"github.com/Vonix-Network/VonixCore-sub003/internal/store"
	"github.com/Vonix-Network/VonixCore-sub003/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/economyd.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting economyd", append(version.Attrs(), "config", *configPath)...)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"starting_balance", cfg.Economy.StartingBalance,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Handle SIGHUP as a config reload request
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	logger.Info("database connected")

	// Standalone mode runs with the in-process gateway. An embedding host
	// would pass its own inventory, identity, and world hooks instead.
	local := gateway.NewLocal()

	application := app.New(cfg, *configPath, store.NewPostgres(pool), app.Collaborators{
		Inventory: local,
		Identity:  local,
		Resolver:  local,
		Hooks:     local,
	}, logger)

	if err := application.Start(ctx); err != nil {
		logger.Error("failed to start application", "error", err)
		os.Exit(1)
	}

	logger.Info("economyd running",
		"instance_id", cfg.Instance.ID,
		"ops_enabled", cfg.Ops.Enabled,
	)

	// Wait for shutdown, servicing reload requests meanwhile
	for running := true; running; {
		select {
		case <-hupCh:
			logger.Info("reload requested")
			if err := application.Reload(ctx); err != nil {
				logger.Error("reload failed", "error", err)
			}
		case <-ctx.Done():
			running = false
		}
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Flush.ShutdownTimeout)
	defer shutdownCancel()
	if err := application.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("economyd stopped")
}
