package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/totegamma/memories/internal/config"
	"github.com/totegamma/memories/internal/infra/observability"
	"github.com/totegamma/memories/internal/infra/providers"
	"github.com/totegamma/memories/internal/infra/repository"
	"github.com/totegamma/memories/internal/present/rest"
	"github.com/totegamma/memories/internal/usecase"
)

func main() {
	conf, err := config.Load(config.Path())
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	var level slog.Level
	_ = level.UnmarshalText([]byte(conf.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Server.EnableTrace {
		shutdown, err := observability.SetupTracing(ctx, "memories", conf.Server.TraceEndpoint)
		if err != nil {
			panic("failed to setup tracing: " + err.Error())
		}
		defer shutdown(context.Background())
	}

	metrics := observability.NewCollector("memories")

	backend, err := providers.NewBackend(ctx, conf.Storage)
	if err != nil {
		panic("failed to open storage: " + err.Error())
	}

	repo := repository.NewMemoryRepository(backend.Store, conf.Storage.Key, metrics)
	memoryUC := usecase.NewMemoryUsecase(repo, backend.Signal, metrics)
	captureUC := usecase.NewCaptureUsecase(repo, providers.NewGallery(conf.Device), backend.Signal, metrics)

	handler := rest.NewHandler(
		rest.HandlerConfig{MediaDir: conf.Device.MediaDir, Debug: conf.Server.Debug},
		memoryUC,
		captureUC,
		backend.Signal,
		metrics,
	)

	e := echo.New()
	e.HideBanner = true
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("memories"))
	}
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(rest.RequestMetrics(metrics))

	handler.RegisterRoutes(e)
	e.Static("/media", conf.Device.MediaDir)

	go func() {
		slog.Info(
			"memories started",
			slog.String("listen", conf.Server.Listen),
			slog.String("backend", conf.Storage.Backend),
		)
		err := e.Start(conf.Server.Listen)
		if err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = e.Shutdown(shutdownCtx)
	if err != nil {
		slog.Error("shutdown failed", slog.String("error", err.Error()))
	}
}
