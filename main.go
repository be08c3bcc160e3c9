package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/wfunc/nightfall/broadcast"
	"github.com/wfunc/nightfall/config"
	"github.com/wfunc/nightfall/logger"
	"github.com/wfunc/nightfall/monitor"
	"github.com/wfunc/nightfall/persistence"
	"github.com/wfunc/nightfall/room"
	"github.com/wfunc/nightfall/rpc"
	"github.com/wfunc/nightfall/server"
	"github.com/wfunc/nightfall/services"
	"github.com/wfunc/nightfall/session"
	"github.com/wfunc/nightfall/settlement"
	"github.com/wfunc/nightfall/timer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Log.Errorf("Server stopped with error: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	db, err := persistence.Open(cfg.Database)
	if err != nil {
		return err
	}
	logger.Log.Infof("Database %q ready.", cfg.Database.Driver)

	metrics := monitor.NewMonitor("nightfall")
	timers := timer.NewManager(timer.DefaultResolution)

	rooms := room.NewRoomManager(cfg.Game,
		room.WithTimers(timers),
		room.WithMetrics(metrics),
		room.WithSettler(settlement.NewRecordSettler(db)),
	)
	sessions := session.NewManager()
	rooms.SetBroadcaster(broadcast.NewRoomBroadcaster(rooms, sessions))
	service := services.NewGameService(rooms, db)

	gameServer := server.NewGameServer(cfg.Server, service, sessions, metrics)
	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, rpc.NewAdminService(service))
	if err != nil {
		return err
	}
	healthServer, err := rpc.NewHealthServer(cfg.Server.HealthAddress)
	if err != nil {
		return multierr.Append(err, rpcServer.Stop())
	}
	metricsServer := &http.Server{
		Addr:              cfg.Server.MetricsAddress,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(gameServer.Start)
	g.Go(rpcServer.Start)
	g.Go(healthServer.Start)
	g.Go(func() error {
		logger.Log.Infof("Metrics listening on %s", cfg.Server.MetricsAddress)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		healthServer.Stop()
		errs := multierr.Combine(
			gameServer.Shutdown(shutdownCtx),
			rpcServer.Stop(),
			metricsServer.Shutdown(shutdownCtx),
		)
		rooms.Close()
		timers.Stop()
		return multierr.Append(errs, db.Close())
	})
	return g.Wait()
}
