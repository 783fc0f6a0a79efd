package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/padraicbc/raceflow/config"
	"github.com/padraicbc/raceflow/db"
	"github.com/padraicbc/raceflow/handlers"
	"github.com/padraicbc/raceflow/ingest"
	applog "github.com/padraicbc/raceflow/logger"
	mw "github.com/padraicbc/raceflow/middleware"
	"github.com/padraicbc/raceflow/provider"
	"github.com/padraicbc/raceflow/scheduler"
	"github.com/padraicbc/raceflow/store"
)

func main() {
	cfg := config.Load()
	logger, err := applog.New(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	bdb := db.Setup(cfg)
	defer bdb.Close()

	if err := db.CreateTables(context.Background(), bdb); err != nil {
		logger.Fatal("create tables failed", zap.Error(err))
	}

	st := store.New(bdb)
	client := provider.New(cfg, logger)
	pipeline := ingest.New(cfg, st, client, logger)
	sched := scheduler.New(cfg, st, pipeline, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			// Normal collision outcome: another execution is live. Exit
			// immediately so the redundant invocation stays cheap.
			logger.Info("another scheduler execution holds the lock, exiting")
			return
		}
		logger.Fatal("scheduler start failed", zap.Error(err))
	}

	h := handlers.New(st, sched, pipeline, cfg.JWTKey())

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.Int("status", v.Status),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			switch {
			case v.Status >= 500:
				logger.Error("http request", fields...)
			case v.Status >= 400:
				logger.Warn("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
			return nil
		},
	}))
	e.Use(echomw.Recover())

	// Public
	e.POST("/ops/signin", h.Signin)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Protected – require valid JWT in Authorization header
	ops := e.Group("/ops", mw.JWT(cfg.JWTKey()))
	ops.GET("/status", h.Status)
	ops.GET("/assignments", h.Assignments)
	ops.GET("/races/:id", h.Race)
	ops.GET("/money-flow/:raceID", h.MoneyFlow)

	go func() {
		logger.Info("starting ops server", zap.String("addr", cfg.Port))
		if err := e.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server exited", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop("completed")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutCtx); err != nil {
		logger.Error("ops server shutdown failed", zap.Error(err))
	}
}
