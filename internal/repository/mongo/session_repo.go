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

const sessionCollectionName = "training_sessions"

// mongoSessionRepository implements repository.TrainingSessionRepository
type mongoSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoSessionRepository creates a new TrainingSession repository.
func NewMongoSessionRepository(db *mongo.Database) repository.TrainingSessionRepository {
	return &mongoSessionRepository{
		collection: db.Collection(sessionCollectionName),
	}
}

// CreateMany inserts the generated sessions of a plan in one round trip.
func (r *mongoSessionRepository) CreateMany(ctx context.Context, sessions []domain.TrainingSession) error {
	if len(sessions) == 0 {
		return nil
	}
	docs := make([]interface{}, len(sessions))
	for i := range sessions {
		if sessions[i].ID.IsZero() {
			sessions[i].ID = primitive.NewObjectID()
		}
		docs[i] = sessions[i]
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

// GetByID retrieves a single session by its ID.
func (r *mongoSessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingSession, error) {
	var session domain.TrainingSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// GetByPlanID retrieves all sessions of a plan in calendar order.
func (r *mongoSessionRepository) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.TrainingSession, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "scheduledDate", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{"planId": planID}, findOptions)
}

func (r *mongoSessionRepository) RecentReported(ctx context.Context, planID primitive.ObjectID, day time.Time, limit int) ([]domain.TrainingSession, error) {
	filter := bson.M{
		"planId":        planID,
		"scheduledDate": bson.M{"$lte": day},
		"$or": bson.A{
			bson.M{"completedAt": bson.M{"$exists": true}},
			bson.M{"skipped": true},
		},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "scheduledDate", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, findOptions)
}

func (r *mongoSessionRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]domain.TrainingSession, error) {
	cursor, err := r.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	sessions := []domain.TrainingSession{}
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// RecordOutcome stores what the runner reported. Targets are left alone.
func (r *mongoSessionRepository) RecordOutcome(ctx context.Context, session *domain.TrainingSession) error {
	set := bson.M{
		"skipped":    session.Skipped,
		"skipReason": session.SkipReason,
		"actual":     session.Actual,
		"updatedAt":  session.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if session.CompletedAt != nil {
		set["completedAt"] = *session.CompletedAt
	} else {
		update["$unset"] = bson.M{"completedAt": ""}
	}
	return r.updateOne(ctx, session.ID, update)
}

func (r *mongoSessionRepository) UpdateTargets(ctx context.Context, id primitive.ObjectID, targets domain.SessionTargets, at time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"workoutType":       targets.WorkoutType,
			"title":             targets.Title,
			"description":       targets.Description,
			"targetDistanceKm":  targets.TargetDistanceKm,
			"targetDurationMin": targets.TargetDurationMin,
			"targetIntensity":   targets.TargetIntensity,
			"wasModified":       true,
			"updatedAt":         at,
		},
	}
	return r.updateOne(ctx, id, update)
}

func (r *mongoSessionRepository) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureSessionIndexes creates necessary indexes. Call during startup.
func EnsureSessionIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "scheduledDate", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "runnerId", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
