// Package app assembles repositories, queue, storage and services from
// configuration. The server, worker and planctl binaries share it.
package app

import (
	"context"
	"fmt"
	"time"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/config"
	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/generator"
	"alcyxob/stride-planner/internal/jobqueue"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/repository"
	"alcyxob/stride-planner/internal/repository/memory"
	"alcyxob/stride-planner/internal/repository/mongo"
	"alcyxob/stride-planner/internal/service"
	"alcyxob/stride-planner/internal/storage"
	"alcyxob/stride-planner/internal/worker"
)

type Repositories struct {
	Runners  repository.RunnerRepository
	Races    repository.RaceRepository
	Plans    repository.TrainingPlanRepository
	Sessions repository.TrainingSessionRepository
	History  repository.AdaptationHistoryRepository
}

type Services struct {
	Lifecycle service.PlanLifecycleService
	Reads     service.PlanReadService
	Outcomes  service.SessionOutcomeService
	Recalc    service.RecalculationService
	History   service.AdaptationHistoryService
	Runners   service.RunnerService
	Calendar  service.CalendarService
	Sweeper   *service.Sweeper
}

// App owns every long-lived dependency. Close releases them in reverse
// order of acquisition.
type App struct {
	Config    config.Config
	Log       *logger.Logger
	Clock     clock.Clock
	Repos     Repositories
	Queue     jobqueue.Broker
	Generator generator.Generator
	Services  Services

	// InProcessQueue is true when jobs never leave this process, so a
	// worker must run alongside the server.
	InProcessQueue bool

	closers []func(context.Context) error
}

// Build connects to the configured backends and wires the services. Every
// component reads time from clk.
func Build(ctx context.Context, cfg config.Config, log *logger.Logger, clk clock.Clock) (*App, error) {
	a := &App{Config: cfg, Log: log, Clock: clk}

	// 1. Storage backend for plans and sessions
	if err := a.openRepositories(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	// 2. Job queue
	if cfg.Redis.Addr != "" {
		q, err := jobqueue.NewRedisQueue(log, jobqueue.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			QueueKey: cfg.Redis.QueueKey,
			JobTTL:   cfg.Redis.JobTTL,
			Clock:    clk,
		})
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("init redis queue: %w", err)
		}
		a.Queue = q
	} else {
		log.Warn("redis.addr not set, using in-process job queue")
		a.Queue = jobqueue.NewMemoryQueue()
		a.InProcessQueue = true
	}
	a.closers = append(a.closers, func(context.Context) error { return a.Queue.Close() })

	// 3. Calendar file storage
	var files storage.FileStorage
	if cfg.S3.BucketName != "" {
		s3, err := storage.NewS3Storage(ctx, log, cfg.S3)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		files = s3
	} else {
		log.Warn("s3.bucket_name not set, calendar exports are kept in memory")
		files = storage.NewMemoryStorage()
	}

	// 4. Plan content generator
	if cfg.Worker.GeneratorURL != "" {
		a.Generator = generator.NewHTTPClient(log, cfg.Worker.GeneratorURL, cfg.Worker.GeneratorTimeout)
	} else {
		a.Generator = generator.NewTemplate()
	}

	// 5. Services
	r := a.Repos
	recalc := service.NewRecalculationService(log, a.Clock, r.Plans, a.Queue, a.Queue, cfg.Planning.PollTimeout)
	history := service.NewAdaptationHistoryService(log, a.Clock, r.Plans, r.History)
	lifecycle := service.NewPlanLifecycleService(log, a.Clock, r.Runners, r.Races, r.Plans, r.Sessions, a.Generator, service.LifecycleConfig{
		MinLeadDays: cfg.Planning.MinLeadDays,
		DefaultReduction: domain.PeriodReduction{
			DaysBefore: cfg.Planning.PeriodReductionDaysBefore,
			DaysAfter:  cfg.Planning.PeriodReductionDaysAfter,
		},
	})
	reads := service.NewPlanReadService(a.Clock, r.Runners, r.Races, r.Plans, r.Sessions, recalc)
	a.Services = Services{
		Lifecycle: lifecycle,
		Reads:     reads,
		Outcomes:  service.NewSessionOutcomeService(log, a.Clock, r.Plans, r.Sessions, recalc),
		Recalc:    recalc,
		History:   history,
		Runners:   service.NewRunnerService(log, a.Clock, r.Runners, r.Races),
		Calendar:  service.NewCalendarService(log, a.Clock, reads, r.Plans, files),
		Sweeper:   service.NewSweeper(log, a.Clock, r.Plans, a.Queue, lifecycle, history, cfg.Sweeper.StaleAfter),
	}
	return a, nil
}

func (a *App) openRepositories(ctx context.Context) error {
	if a.Config.Database.Driver == "memory" {
		a.Log.Warn("database.driver is memory, data is lost on exit")
		store := memory.NewStore()
		a.Repos = Repositories{
			Runners:  store.Runners(),
			Races:    store.Races(),
			Plans:    store.Plans(),
			Sessions: store.Sessions(),
			History:  store.History(),
		}
		return nil
	}

	client, err := mongo.ConnectDB(a.Config.Database.URI)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return mongo.DisconnectDB(client) })
	db := client.Database(a.Config.Database.Name)

	idxCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := mongo.EnsureIndexes(idxCtx, db); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	a.Log.Info("Database connection established", "database", a.Config.Database.Name)

	a.Repos = Repositories{
		Runners:  mongo.NewMongoRunnerRepository(db),
		Races:    mongo.NewMongoRaceRepository(db),
		Plans:    mongo.NewMongoTrainingPlanRepository(db),
		Sessions: mongo.NewMongoSessionRepository(db),
		History:  mongo.NewMongoHistoryRepository(db),
	}
	return nil
}

// NewWorker builds an adaptation worker consuming the app's queue.
func (a *App) NewWorker() *worker.Worker {
	return worker.New(a.Log, a.Clock, a.Queue, a.Repos.Plans, a.Repos.Sessions, a.Generator, a.Services.History, worker.Options{
		Concurrency: a.Config.Worker.Concurrency,
		ClaimWait:   a.Config.Worker.PollInterval,
	})
}

func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.Log.Error("Failed to release resource", "error", err)
		}
	}
	a.closers = nil
}
