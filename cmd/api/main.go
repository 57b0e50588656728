package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/bookwell/penalty-service/internal/api/http"
	"github.com/bookwell/penalty-service/internal/api/http/handlers"
	"github.com/bookwell/penalty-service/internal/auth"
	"github.com/bookwell/penalty-service/internal/bootstrap"
	"github.com/bookwell/penalty-service/internal/config"
	"github.com/bookwell/penalty-service/internal/observability"
	"github.com/bookwell/penalty-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	container, err := bootstrap.Build(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Fatal("failed to assemble service", zap.Error(err))
	}
	defer container.Close()

	worker.StartNotificationWorker(container.Notifications)

	scheduler := worker.NewScheduler(logger, 0, worker.PenaltyJobs(cfg.Scheduler, container.Resets, container.Certificates, container.Penalty, logger)...)
	if cfg.Scheduler.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			logger.Fatal("failed to start scheduler", zap.Error(err))
		}
	} else {
		logger.Info("scheduler disabled by config")
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := httptransport.NewApp(cfg.App.Name)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, container.Postgres, container.Redis),
		Penalties:      handlers.NewPenaltiesHandler(container.Penalty, container.Appeals, container.Catalog, container.Access),
		AdminPenalties: handlers.NewAdminPenaltiesHandler(container.Penalty, container.Appeals, container.Catalog, container.Resets),
		InternalEvents: handlers.NewInternalEventsHandler(container.Hooks, logger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	scheduler.Stop()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
