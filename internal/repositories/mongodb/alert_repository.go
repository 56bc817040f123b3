package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"safecircle/internal/models"
	"safecircle/internal/repositories/interfaces"
	"safecircle/pkg/database"
)

type alertRepository struct {
	collection *mongo.Collection
	cache      *readThrough
}

func NewAlertRepository(db *mongo.Database, cache *readThrough) interfaces.AlertRepository {
	return &alertRepository{
		collection: db.Collection(database.CollectionAlerts),
		cache:      cache,
	}
}

func alertCacheKey(id string) string {
	return "alert:" + id
}

func (r *alertRepository) Create(ctx context.Context, alert *models.Alert) error {
	if _, err := r.collection.InsertOne(ctx, alert); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	r.cache.set(ctx, alertCacheKey(alert.ID), alert)
	return nil
}

func (r *alertRepository) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	var alert models.Alert
	if r.cache.get(ctx, alertCacheKey(id), &alert) {
		return &alert, nil
	}

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&alert)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	r.cache.set(ctx, alertCacheKey(id), &alert)
	return &alert, nil
}

func (r *alertRepository) UpdateMaxDuration(ctx context.Context, id string, maxDurationSec int) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"max_duration_sec": maxDurationSec}},
	)
	if err != nil {
		return fmt.Errorf("failed to extend alert: %w", err)
	}
	r.cache.invalidate(ctx, alertCacheKey(id))
	if result.MatchedCount == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func (r *alertRepository) End(ctx context.Context, id string, at time.Time) (*models.Alert, error) {
	return r.finish(ctx, id, at, bson.M{"status": models.AlertStatusEnded})
}

func (r *alertRepository) MarkRevoked(ctx context.Context, id string, at time.Time) (*models.Alert, error) {
	return r.finish(ctx, id, at, bson.M{
		"status":     models.AlertStatusEnded,
		"revoked_at": bson.M{"$ifNull": bson.A{"$revoked_at", at}},
	})
}

// finish applies set and fills ended_at only when it is still null, using an
// update pipeline so the check and write are one statement.
func (r *alertRepository) finish(ctx context.Context, id string, at time.Time, set bson.M) (*models.Alert, error) {
	set["ended_at"] = bson.M{"$ifNull": bson.A{"$ended_at", at}}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: set}}}

	var alert models.Alert
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&alert)
	r.cache.invalidate(ctx, alertCacheKey(id))

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to end alert: %w", err)
	}
	return &alert, nil
}
