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
)

const runnerCollectionName = "runners"

// mongoRunnerRepository implements the repository.RunnerRepository interface using MongoDB.
type mongoRunnerRepository struct {
	collection *mongo.Collection
}

// NewMongoRunnerRepository creates a new instance of mongoRunnerRepository.
// It expects a connected *mongo.Database instance.
func NewMongoRunnerRepository(db *mongo.Database) repository.RunnerRepository {
	return &mongoRunnerRepository{
		collection: db.Collection(runnerCollectionName),
	}
}

// Create inserts a new runner. A zero ID is replaced with a fresh one so the
// identity issued upstream can be reused when present.
func (r *mongoRunnerRepository) Create(ctx context.Context, runner *domain.Runner) (primitive.ObjectID, error) {
	if runner.ID.IsZero() {
		runner.ID = primitive.NewObjectID()
	}

	result, err := r.collection.InsertOne(ctx, runner)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves a runner by their MongoDB ObjectID.
func (r *mongoRunnerRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Runner, error) {
	var runner domain.Runner
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&runner)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &runner, nil
}

// UpdateCycleProfile replaces the cycle inputs. Nil values unset the field.
func (r *mongoRunnerRepository) UpdateCycleProfile(ctx context.Context, id primitive.ObjectID, anchor *time.Time, length *int, regularity domain.CycleRegularity, at time.Time) error {
	set := bson.M{"regularity": regularity, "updatedAt": at}
	unset := bson.M{}
	if anchor != nil {
		set["cycleAnchor"] = *anchor
	} else {
		unset["cycleAnchor"] = ""
	}
	if length != nil {
		set["cycleLength"] = *length
	} else {
		unset["cycleLength"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureRunnerIndexes creates necessary indexes for the runners collection.
// Runners are only ever looked up by _id, which Mongo indexes already.
func EnsureRunnerIndexes(ctx context.Context, collection *mongo.Collection) error {
	return nil
}
