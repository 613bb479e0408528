package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/planning"
	"alcyxob/stride-planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CycleProfile is a runner's self-reported cycle data.
type CycleProfile struct {
	Anchor     *time.Time
	Length     *int
	Regularity domain.CycleRegularity
}

type RaceInput struct {
	Name       string
	Date       time.Time
	DistanceKm float64
	GoalTime   *time.Duration
}

type RunnerService interface {
	GetRunner(ctx context.Context, runnerID primitive.ObjectID) (*domain.Runner, error)
	// UpdateCycleProfile creates the profile on first use.
	UpdateCycleProfile(ctx context.Context, runnerID primitive.ObjectID, profile CycleProfile) (*domain.Runner, error)
	RegisterRace(ctx context.Context, runnerID primitive.ObjectID, in RaceInput) (*domain.Race, error)
	RecordRaceResult(ctx context.Context, runnerID, raceID primitive.ObjectID, finish time.Duration, notes string) (*domain.Race, error)
}

type runnerService struct {
	log     *logger.Logger
	clock   clock.Clock
	runners repository.RunnerRepository
	races   repository.RaceRepository
}

func NewRunnerService(log *logger.Logger, clk clock.Clock, runners repository.RunnerRepository, races repository.RaceRepository) RunnerService {
	return &runnerService{
		log:     log.With("component", "RunnerService"),
		clock:   clk,
		runners: runners,
		races:   races,
	}
}

func (s *runnerService) GetRunner(ctx context.Context, runnerID primitive.ObjectID) (*domain.Runner, error) {
	runner, err := s.runners.GetByID(ctx, runnerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRunnerNotFound
		}
		return nil, err
	}
	return runner, nil
}

func (s *runnerService) UpdateCycleProfile(ctx context.Context, runnerID primitive.ObjectID, profile CycleProfile) (*domain.Runner, error) {
	now := s.clock.Now()
	if profile.Regularity == "" {
		profile.Regularity = domain.RegularityRegular
	}
	if !profile.Regularity.Valid() {
		return nil, fmt.Errorf("%w: unknown regularity %q", ErrInvalidCycleProfile, profile.Regularity)
	}
	anchor, length := profile.Anchor, profile.Length
	if profile.Regularity == domain.RegularityDoNotTrack {
		anchor, length = nil, nil
	}
	if length != nil && !planning.ValidCycleLength(*length) {
		return nil, fmt.Errorf("%w: cycle length must be %d-%d days", ErrInvalidCycleProfile, domain.MinCycleLength, domain.MaxCycleLength)
	}
	if anchor != nil {
		day := planning.Day(*anchor)
		if day.After(planning.Day(now)) {
			return nil, fmt.Errorf("%w: cycle start cannot be in the future", ErrInvalidCycleProfile)
		}
		anchor = &day
	}

	runner, err := s.runners.GetByID(ctx, runnerID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		runner = &domain.Runner{
			ID:          runnerID,
			CycleAnchor: anchor,
			CycleLength: length,
			Regularity:  profile.Regularity,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := s.runners.Create(ctx, runner); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := s.runners.UpdateCycleProfile(ctx, runnerID, anchor, length, profile.Regularity, now); err != nil {
			return nil, err
		}
		runner.CycleAnchor, runner.CycleLength, runner.Regularity, runner.UpdatedAt = anchor, length, profile.Regularity, now
	}
	s.log.Info("cycle profile updated", "runner_id", runnerID.Hex(), "regularity", profile.Regularity, "cycle_aware", runner.CycleAware())
	return runner, nil
}

func (s *runnerService) RegisterRace(ctx context.Context, runnerID primitive.ObjectID, in RaceInput) (*domain.Race, error) {
	now := s.clock.Now()
	name := strings.TrimSpace(in.Name)
	if name == "" || in.DistanceKm <= 0 || in.Date.IsZero() {
		return nil, fmt.Errorf("%w: name, date and a positive distance are required", ErrInvalidRace)
	}
	if in.GoalTime != nil && *in.GoalTime <= 0 {
		return nil, fmt.Errorf("%w: goal time must be positive", ErrInvalidRace)
	}
	race := &domain.Race{
		RunnerID:   runnerID,
		Name:       name,
		Date:       planning.Day(in.Date),
		DistanceKm: in.DistanceKm,
		GoalTime:   in.GoalTime,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	id, err := s.races.Create(ctx, race)
	if err != nil {
		return nil, err
	}
	race.ID = id
	return race, nil
}

func (s *runnerService) RecordRaceResult(ctx context.Context, runnerID, raceID primitive.ObjectID, finish time.Duration, notes string) (*domain.Race, error) {
	now := s.clock.Now()
	race, err := s.races.GetByID(ctx, raceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRaceNotFound
		}
		return nil, err
	}
	if race.RunnerID != runnerID {
		return nil, ErrRaceNotFound
	}
	if planning.Day(now).Before(planning.Day(race.Date)) {
		return nil, ErrRaceNotFinished
	}
	if finish <= 0 {
		return nil, fmt.Errorf("%w: finish time must be positive", ErrInvalidRace)
	}
	result := domain.RaceResult{FinishTime: finish, Notes: notes, RecordedAt: now}
	if err := s.races.SetResult(ctx, raceID, result, now); err != nil {
		return nil, err
	}
	race.Result = &result
	race.UpdatedAt = now
	return race, nil
}
