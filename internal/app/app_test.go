package app

import (
	"context"
	"testing"
	"time"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/config"
	"alcyxob/stride-planner/internal/generator"
	"alcyxob/stride-planner/internal/logger"
)

func memoryConfig() config.Config {
	var cfg config.Config
	cfg.Database.Driver = "memory"
	cfg.JWT.Secret = "s"
	cfg.Planning.MinLeadDays = 28
	cfg.Planning.PollTimeout = time.Second
	cfg.Sweeper.StaleAfter = time.Hour
	cfg.Worker.Concurrency = 1
	return cfg
}

func TestBuild_InMemory(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	a, err := Build(ctx, memoryConfig(), logger.NewNop(), clk)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer a.Close(ctx)

	if a.Clock != clk {
		t.Error("Build did not keep the injected clock")
	}
	if !a.InProcessQueue {
		t.Error("InProcessQueue = false without redis.addr")
	}
	if _, ok := a.Generator.(*generator.Template); !ok {
		t.Errorf("Generator = %T, want *generator.Template", a.Generator)
	}
	s := a.Services
	if s.Lifecycle == nil || s.Reads == nil || s.Outcomes == nil || s.Recalc == nil ||
		s.History == nil || s.Runners == nil || s.Calendar == nil || s.Sweeper == nil {
		t.Fatalf("services not fully wired: %+v", s)
	}
	if a.NewWorker() == nil {
		t.Error("NewWorker returned nil")
	}

	report, err := s.Sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("Sweeper.Run on empty store: %v", err)
	}
	if report.PlansCompleted != 0 {
		t.Errorf("report = %+v, want nothing done", report)
	}
}

func TestBuild_HTTPGenerator(t *testing.T) {
	cfg := memoryConfig()
	cfg.Worker.GeneratorURL = "http://generator.internal"
	cfg.Worker.GeneratorTimeout = time.Second
	a, err := Build(context.Background(), cfg, logger.NewNop(), clock.Real())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close(context.Background())
	if _, ok := a.Generator.(*generator.HTTPClient); !ok {
		t.Errorf("Generator = %T, want *generator.HTTPClient", a.Generator)
	}
}
