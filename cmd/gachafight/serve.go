// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gachafight/arena/internal/auth"
	"github.com/gachafight/arena/internal/catalog"
	"github.com/gachafight/arena/internal/config"
	"github.com/gachafight/arena/internal/core"
	"github.com/gachafight/arena/internal/logging"
	"github.com/gachafight/arena/internal/match"
	"github.com/gachafight/arena/internal/observability"
	"github.com/gachafight/arena/internal/reward"
	"github.com/gachafight/arena/internal/store"
	arenatls "github.com/gachafight/arena/internal/tls"
	"github.com/gachafight/arena/internal/transport/ws"
)

const shutdownTimeout = 10 * time.Second

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// ProfileStoreFactory opens the configured profile store.
	// Default: openProfileStore
	ProfileStoreFactory func(ctx context.Context, cfg *config.Config) (store.ProfileStore, error)

	// LogWriter receives structured logs.
	// Default: stderr
	LogWriter io.Writer

	// Started is called with the bound websocket address once serving.
	Started func(addr string)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the arena server",
		Long: `Run the websocket arena server together with the room-sync broadcaster,
the reward workers, and the metrics/health endpoint. SIGINT or SIGTERM
triggers a graceful shutdown.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Loader{}.Load(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, &ServeDeps{LogWriter: cmd.ErrOrStderr()})
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServe runs the server until ctx is cancelled or a component fails.
func runServe(ctx context.Context, cfg *config.Config, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ProfileStoreFactory == nil {
		deps.ProfileStoreFactory = openProfileStore
	}
	if err := cfg.Validate(); err != nil {
		return oops.Wrapf(err, "invalid configuration")
	}

	logOpts := logging.Options{Format: cfg.LogFormat, Level: cfg.LogLevel}
	var logger *slog.Logger
	if deps.LogWriter != nil {
		logger = logging.Setup("gachafight", version, logOpts, deps.LogWriter)
		slog.SetDefault(logger)
	} else {
		logger = logging.SetDefault("gachafight", version, logOpts)
	}

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return err
	}
	logger.Info("character catalog loaded", "characters", cat.Len(), "version", cat.Version())

	profiles, err := deps.ProfileStoreFactory(ctx, cfg)
	if err != nil {
		return oops.Code("STORE_OPEN_FAILED").With("store", cfg.Store).Wrap(err)
	}
	defer func() {
		if closeErr := profiles.Close(); closeErr != nil {
			logger.Warn("error closing profile store", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ready atomic.Bool
	var metrics *observability.Metrics
	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, ready.Load)
		obsErrCh, startErr := obsServer.Start()
		if startErr != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(startErr)
		}
		metrics = obsServer.Metrics()
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	authn, err := auth.NewJWTAuthenticator([]byte(cfg.JWTSecret), profiles, auth.WithDefaultCharacter(cat.DefaultID()))
	if err != nil {
		return err
	}

	rewards := reward.NewDispatcher(profiles, reward.Config{
		Workers:    cfg.RewardWorkers,
		QueueSize:  cfg.RewardQueueSize,
		MaxRetries: cfg.RewardMaxRetries,
		Timeout:    cfg.RewardTimeout,
	}, reward.WithLogger(logger), reward.WithMetrics(metrics))

	engine := core.NewEngine(match.NewQueue(), match.NewRegistry(cat),
		core.WithRewarder(rewards),
		core.WithMetrics(metrics),
		core.WithLogger(logger),
	)

	wsCfg := ws.Config{
		Addr:           cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		OutboxSize:     cfg.OutboxSize,
	}
	if cfg.TLSDir != "" {
		wsCfg.TLS, err = arenatls.LoadServerConfig(cfg.TLSDir)
		if err != nil {
			return err
		}
	}
	wsOpts := []ws.Option{ws.WithMetrics(metrics), ws.WithLogger(logger)}
	if cfg.LockoutThreshold > 0 {
		wsOpts = append(wsOpts, ws.WithFailureLimiter(auth.NewFailureLimiter(cfg.LockoutThreshold, cfg.LockoutDuration)))
	}
	wsServer, err := ws.NewServer(wsCfg, engine, authn, wsOpts...)
	if err != nil {
		return err
	}

	broadcasterDone := make(chan struct{})
	go func() {
		defer close(broadcasterDone)
		core.NewBroadcaster(engine, cfg.BroadcastInterval).Run(ctx)
	}()

	wsErrCh := make(chan error, 1)
	go func() { wsErrCh <- wsServer.Run(ctx) }()

	go func() {
		for wsServer.Addr() == "" {
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
		ready.Store(true)
		logger.Info("arena ready", "addr", wsServer.Addr(), "store", cfg.Store)
		if deps.Started != nil {
			deps.Started(wsServer.Addr())
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		runErr = <-wsErrCh
	case runErr = <-wsErrCh:
		cancel()
	}
	ready.Store(false)
	<-broadcasterDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := rewards.Close(shutdownCtx); err != nil {
		logger.Warn("reward queue not drained", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

func openProfileStore(ctx context.Context, cfg *config.Config) (store.ProfileStore, error) {
	switch cfg.Store {
	case config.StorePostgres:
		return store.OpenPostgres(ctx, cfg.DatabaseURL)
	case config.StoreSQLite:
		return store.OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return store.NewMemoryProfileStore(), nil
	}
}

// monitorServerErrors cancels ctx when a background server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server failed", "server", name, "error", err)
			cancel()
		}
	}
}
