package main

import (
	"context"
	"os/signal"
	"syscall"

	"alcyxob/stride-planner/internal/app"
	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/config"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/observability"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		panic("could not load config: " + err.Error())
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		panic("could not build logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitOTel(ctx, log, cfg.Tracing, "worker")
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	application, err := app.Build(ctx, cfg, log, clock.Real())
	if err != nil {
		log.Fatal("Could not initialise application", "error", err)
	}
	defer application.Close(context.Background())

	if application.InProcessQueue {
		log.Fatal("A standalone worker needs redis.addr; the in-process queue is only reachable from the server")
	}

	log.Info("Adaptation worker started", "concurrency", cfg.Worker.Concurrency)
	if err := application.NewWorker().Run(ctx); err != nil {
		log.Error("Worker stopped with error", "error", err)
		return
	}
	log.Info("Worker exiting")
}
