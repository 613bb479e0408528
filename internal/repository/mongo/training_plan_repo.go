package mongo

import (
	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	trainingPlanCollectionName = "training_plans"
	activePlanIndexName        = "one_active_plan_per_runner"
)

// mongoTrainingPlanRepository implements repository.TrainingPlanRepository
type mongoTrainingPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoTrainingPlanRepository creates a new TrainingPlan repository.
func NewMongoTrainingPlanRepository(db *mongo.Database) repository.TrainingPlanRepository {
	return &mongoTrainingPlanRepository{
		collection: db.Collection(trainingPlanCollectionName),
	}
}

// Create inserts a new training plan.
func (r *mongoTrainingPlanRepository) Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error) {
	if plan.RunnerID == primitive.NilObjectID || plan.RaceID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("plan requires runnerId and raceId")
	}
	plan.ID = primitive.NewObjectID()

	result, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted plan ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single training plan by its ID.
func (r *mongoTrainingPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoTrainingPlanRepository) GetActiveByRunner(ctx context.Context, runnerID primitive.ObjectID) (*domain.TrainingPlan, error) {
	return r.findOne(ctx, bson.M{"runnerId": runnerID, "status": domain.PlanActive})
}

// GetLatestByRace returns the newest non-draft plan the runner built for race.
func (r *mongoTrainingPlanRepository) GetLatestByRace(ctx context.Context, runnerID, raceID primitive.ObjectID) (*domain.TrainingPlan, error) {
	filter := bson.M{
		"runnerId": runnerID,
		"raceId":   raceID,
		"status":   bson.M{"$ne": domain.PlanDraft},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.findOne(ctx, filter, opts)
}

func (r *mongoTrainingPlanRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*domain.TrainingPlan, error) {
	var plan domain.TrainingPlan
	err := r.collection.FindOne(ctx, filter, opts...).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// ListByRunner returns every plan of the runner, newest first.
func (r *mongoTrainingPlanRepository) ListByRunner(ctx context.Context, runnerID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, bson.M{"runnerId": runnerID}, findOptions)
}

func (r *mongoTrainingPlanRepository) ListActiveEndingBefore(ctx context.Context, day time.Time) ([]domain.TrainingPlan, error) {
	return r.find(ctx, bson.M{"status": domain.PlanActive, "endDate": bson.M{"$lt": day}})
}

func (r *mongoTrainingPlanRepository) ListDispatched(ctx context.Context) ([]domain.TrainingPlan, error) {
	return r.find(ctx, bson.M{"recalc.lastJobRef": bson.M{"$exists": true}})
}

func (r *mongoTrainingPlanRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]domain.TrainingPlan, error) {
	cursor, err := r.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	plans := []domain.TrainingPlan{}
	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return plans, nil
}

// Transition writes the new status when the stored version still matches.
// The partial unique index on active plans turns a second activation for the
// same runner into a duplicate-key error.
func (r *mongoTrainingPlanRepository) Transition(ctx context.Context, id primitive.ObjectID, expectedVersion int64, status domain.PlanStatus, at time.Time) error {
	set := bson.M{"status": status, "updatedAt": at}
	switch status {
	case domain.PlanCompleted:
		set["completedAt"] = at
	case domain.PlanArchived:
		set["archivedAt"] = at
	}
	if status != domain.PlanActive {
		set["recalc.pendingConfirmation"] = false
		set["recalc.pendingReason"] = ""
		set["recalc.pendingSince"] = nil
	}
	err := r.conditionalUpdate(ctx, id, expectedVersion, set)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

func (r *mongoTrainingPlanRepository) UpdateRecalcState(ctx context.Context, id primitive.ObjectID, expectedVersion int64, state domain.RecalcState, at time.Time) error {
	return r.conditionalUpdate(ctx, id, expectedVersion, bson.M{"recalc": state, "updatedAt": at})
}

// conditionalUpdate applies set if the plan is still at expectedVersion and
// bumps the version. No match means either a missing plan or a lost race.
func (r *mongoTrainingPlanRepository) conditionalUpdate(ctx context.Context, id primitive.ObjectID, expectedVersion int64, set bson.M) error {
	filter := bson.M{"_id": id, "version": expectedVersion}
	update := bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if count == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrVersionConflict
	}
	return nil
}

// EnsureTrainingPlanIndexes creates necessary indexes. Call during startup.
func EnsureTrainingPlanIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// At most one active plan per runner.
			Keys: bson.D{{Key: "runnerId", Value: 1}},
			Options: options.Index().
				SetName(activePlanIndexName).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": domain.PlanActive}),
		},
		{
			Keys:    bson.D{{Key: "runnerId", Value: 1}, {Key: "raceId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "endDate", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "recalc.lastJobRef", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
