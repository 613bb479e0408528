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

const historyCollectionName = "plan_adaptation_history"

// mongoHistoryRepository implements repository.AdaptationHistoryRepository
type mongoHistoryRepository struct {
	collection *mongo.Collection
}

// NewMongoHistoryRepository creates a new adaptation history repository backed by MongoDB.
func NewMongoHistoryRepository(db *mongo.Database) repository.AdaptationHistoryRepository {
	return &mongoHistoryRepository{
		collection: db.Collection(historyCollectionName),
	}
}

// Create appends an entry. The unique jobToken index rejects a second entry
// for the same job with ErrDuplicate.
func (r *mongoHistoryRepository) Create(ctx context.Context, entry *domain.PlanAdaptationHistory) (primitive.ObjectID, error) {
	if entry.JobToken == "" || entry.PlanID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("history entry requires planId and jobToken")
	}
	entry.ID = primitive.NewObjectID()
	if entry.Changes == nil {
		entry.Changes = []domain.SessionChange{}
	}

	result, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted history ID")
	}
	return insertedID, nil
}

func (r *mongoHistoryRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanAdaptationHistory, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoHistoryRepository) GetByJobToken(ctx context.Context, token string) (*domain.PlanAdaptationHistory, error) {
	return r.findOne(ctx, bson.M{"jobToken": token})
}

func (r *mongoHistoryRepository) findOne(ctx context.Context, filter bson.M) (*domain.PlanAdaptationHistory, error) {
	var entry domain.PlanAdaptationHistory
	err := r.collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// ListByPlanID returns a plan's history, newest first.
func (r *mongoHistoryRepository) ListByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanAdaptationHistory, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "recordedAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"planId": planID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []domain.PlanAdaptationHistory{}
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkViewed sets viewedAt once. Later calls are no-ops.
func (r *mongoHistoryRepository) MarkViewed(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	filter := bson.M{"_id": id, "viewedAt": bson.M{"$exists": false}}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"viewedAt": at}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// EnsureHistoryIndexes creates necessary indexes. Call during startup.
func EnsureHistoryIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "jobToken", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "recordedAt", Value: -1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
