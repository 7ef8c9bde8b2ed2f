package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fivepointers/pagerelay/internal/application/config"
	"github.com/fivepointers/pagerelay/internal/application/constant"
	"github.com/fivepointers/pagerelay/internal/application/metric"
	"github.com/fivepointers/pagerelay/internal/docstate"
	"github.com/fivepointers/pagerelay/internal/infra/adapters/memory"
	"github.com/fivepointers/pagerelay/internal/infra/adapters/postgres"
	"github.com/fivepointers/pagerelay/internal/infra/adapters/postgres/repository"
	"github.com/fivepointers/pagerelay/internal/infra/ports/http/handlers"
	"github.com/fivepointers/pagerelay/internal/infra/ports/http/server"
	"github.com/fivepointers/pagerelay/internal/usecase"
)

func runApp() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logLevel := slog.LevelInfo

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: logLevel},
			),
		),
	)

	dbConn, err := postgres.NewPostgres(ctx, cfg.Postgres.DSN())
	if err != nil {
		slog.Error("connect to postgres", slog.Any(constant.Error, err))
		os.Exit(1)
	}
	defer dbConn.Close()

	snapshotRepo := repository.NewSnapshotRepo(dbConn)

	registry := memory.NewRoomRegistry()
	connRepo := memory.NewConnectionRepository()
	presenceRepo := memory.NewPresenceRepository()
	engine := docstate.NewMemoryEngine()

	electionUsecase := usecase.NewElectionUsecase(registry, connRepo)
	relayUsecase := usecase.NewRelayUsecase(registry, connRepo, presenceRepo, engine, electionUsecase)
	presenceUsecase := usecase.NewPresenceUsecase(registry, presenceRepo, relayUsecase)
	versionUsecase := usecase.NewVersionUsecase(registry, engine, snapshotRepo, relayUsecase)
	commentUsecase := usecase.NewCommentUsecase(engine, relayUsecase)

	statusHandler := handlers.NewStatusHandler(registry)
	wsHandler := handlers.NewWebSocketHandler(cfg, relayUsecase, presenceUsecase, connRepo)
	versionHandler := handlers.NewVersionHandler(versionUsecase)
	commentHandler := handlers.NewCommentHandler(commentUsecase)

	echoSrv := server.New(cfg, statusHandler, wsHandler, versionHandler, commentHandler)

	metricsSrv := metric.NewServer()

	echoSrvCh := make(chan error, 1)
	metricsSrvCh := make(chan error, 1)

	go func() {
		echoSrvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	go func() {
		metricsSrvCh <- metricsSrv.Start(":" + cfg.MetricPort)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down servers due to signal")
	case err := <-echoSrvCh:
		slog.Error(
			"HTTP server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	case err := <-metricsSrvCh:
		slog.Error(
			"Metrics server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeoutCancel()

	// Stop accepting, let in-flight fan-out drain, then drop all sockets.
	// Nothing in memory is durable, so abrupt state loss is harmless.
	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown HTTP server", slog.Any(constant.Error, err))
	}

	connRepo.CloseAll()

	if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown metric server", slog.Any(constant.Error, err))
	}
}
