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

const raceCollectionName = "races"

// mongoRaceRepository implements repository.RaceRepository
type mongoRaceRepository struct {
	collection *mongo.Collection
}

// NewMongoRaceRepository creates a new Race repository backed by MongoDB.
func NewMongoRaceRepository(db *mongo.Database) repository.RaceRepository {
	return &mongoRaceRepository{
		collection: db.Collection(raceCollectionName),
	}
}

// Create inserts a new race into the database.
func (r *mongoRaceRepository) Create(ctx context.Context, race *domain.Race) (primitive.ObjectID, error) {
	if race.Name == "" || race.RunnerID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("race name and runner ID are required")
	}
	race.ID = primitive.NewObjectID()

	result, err := r.collection.InsertOne(ctx, race)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves a race by its ID.
func (r *mongoRaceRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Race, error) {
	var race domain.Race
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&race)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &race, nil
}

// SetResult records the post-race outcome. It is the only mutation a race
// accepts once created.
func (r *mongoRaceRepository) SetResult(ctx context.Context, id primitive.ObjectID, result domain.RaceResult, at time.Time) error {
	update := bson.M{"$set": bson.M{"result": result, "updatedAt": at}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureRaceIndexes creates necessary indexes for the races collection.
func EnsureRaceIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "runnerId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
