package service

import (
	"context"
	"errors"
	"time"

	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// casAttempts is one write plus one retry after a lost race.
const casAttempts = 2

// recalcTransition computes the next recalculation state from a freshly
// read plan. It must not have side effects: it may run twice.
type recalcTransition func(plan *domain.TrainingPlan) (domain.RecalcState, error)

// updateRecalc runs read -> transition -> conditional write against the plan
// row, retrying once when another writer bumped the version in between.
func updateRecalc(ctx context.Context, plans repository.TrainingPlanRepository, planID primitive.ObjectID, now time.Time, fn recalcTransition) (*domain.TrainingPlan, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		plan, err := plans.GetByID(ctx, planID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrPlanNotFound
			}
			return nil, err
		}
		next, err := fn(plan)
		if err != nil {
			return nil, mapDomainErr(err)
		}
		err = plans.UpdateRecalcState(ctx, plan.ID, plan.Version, next, now)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		plan.Recalc = next
		plan.Version++
		plan.UpdatedAt = now
		return plan, nil
	}
	return nil, ErrConcurrentUpdate
}

// ownedPlan loads a plan and hides plans of other runners.
func ownedPlan(ctx context.Context, plans repository.TrainingPlanRepository, runnerID, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
	plan, err := plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if plan.RunnerID != runnerID {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

// ownedBy wraps fn with an ownership check so a retried read re-verifies it.
func ownedBy(runnerID primitive.ObjectID, fn recalcTransition) recalcTransition {
	return func(plan *domain.TrainingPlan) (domain.RecalcState, error) {
		if plan.RunnerID != runnerID {
			return plan.Recalc, ErrPlanNotFound
		}
		return fn(plan)
	}
}
