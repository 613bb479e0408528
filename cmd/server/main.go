package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/stride-planner/internal/api"
	"alcyxob/stride-planner/internal/app"
	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/config"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron"
)

// @title Stride Planner API
// @version 1.0
// @description Cycle-aware training plans for goal races.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		panic("could not load config: " + err.Error())
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		panic("could not build logger: " + err.Error())
	}
	defer log.Sync()
	log.Info("Starting Stride Planner server", "address", cfg.Server.Address)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitOTel(ctx, log, cfg.Tracing, "server")

	// --- Dependencies ---
	application, err := app.Build(ctx, cfg, log, clock.Real())
	if err != nil {
		log.Fatal("Could not initialise application", "error", err)
	}
	defer application.Close(context.Background())

	// Jobs queued in memory are only visible to this process.
	workerDone := make(chan struct{})
	if application.InProcessQueue {
		w := application.NewWorker()
		go func() {
			defer close(workerDone)
			if err := w.Run(ctx); err != nil {
				log.Error("In-process worker stopped", "error", err)
			}
		}()
	} else {
		close(workerDone)
	}

	// --- Sweeper ---
	sweeps := cron.New()
	err = sweeps.AddFunc(cfg.Sweeper.Schedule, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		report, err := application.Services.Sweeper.Run(sweepCtx)
		if err != nil {
			log.Error("Sweep failed", "error", err)
			return
		}
		log.Debug("Sweep finished", "completed", report.PlansCompleted, "failed", report.JobsFailed, "stale", report.JobsStale, "unreported", report.JobsUnreported)
	})
	if err != nil {
		log.Fatal("Invalid sweeper schedule", "schedule", cfg.Sweeper.Schedule, "error", err)
	}
	sweeps.Start()
	defer sweeps.Stop()

	// --- HTTP ---
	if cfg.Log.Mode == "prod" || cfg.Log.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	s := application.Services
	api.SetupRoutes(router, log, application.Clock, cfg.Tracing.ServiceName, cfg.JWT.Secret, api.Services{
		Lifecycle: s.Lifecycle,
		Reads:     s.Reads,
		Outcomes:  s.Outcomes,
		Recalc:    s.Recalc,
		History:   s.History,
		Runners:   s.Runners,
		Calendar:  s.Calendar,
	})

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ListenAndServe error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	<-workerDone
	if err := shutdownTracing(ctxShutdown); err != nil {
		log.Warn("Tracing shutdown failed", "error", err)
	}
	log.Info("Server exiting")
}
