// README: Entry point; loads config, wires the pipeline, starts the scheduler and the ops API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"zonerev/internal/app"
	"zonerev/internal/config"
	httptransport "zonerev/internal/http"
	"zonerev/internal/http/handlers"
	"zonerev/internal/logger"
	"zonerev/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Get()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Error(ctx, "config", logger.Error(err))
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "keeping info log level", logger.Error(err))
	}

	a, err := app.Build(ctx, cfg, app.Options{WithAuth: true}, log)
	if err != nil {
		log.Error(ctx, "startup", logger.Error(err))
		os.Exit(1)
	}
	defer a.Close()
	if a.Verifier == nil {
		log.Warn(ctx, "firebase not configured, ops API is unauthenticated")
	}

	scheduler := service.NewScheduler(a.Pipeline, service.SchedulerConfig{
		PollInterval:   cfg.Pipeline.PollInterval,
		HourlyLookback: cfg.Pipeline.HourlyLookback,
		DailyLookback:  cfg.Pipeline.DailyLookback,
		DailyEnabled:   cfg.Pipeline.DailyEnabled,
	}, log)
	go scheduler.Run(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := httptransport.NewRouter(httptransport.RouterDeps{
		Runs:      a.Pipeline,
		Lookbacks: handlers.Lookbacks{Hourly: cfg.Pipeline.HourlyLookback, Daily: cfg.Pipeline.DailyLookback},
		Metrics:   a.Metrics.Handler(),
		Verifier:  a.Verifier,
		Logger:    log,
	})
	server := httptransport.NewServer(cfg.HTTP.Addr, router)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info(ctx, "listening", logger.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(ctx, "http server", logger.Error(err))
		os.Exit(1)
	}
}
