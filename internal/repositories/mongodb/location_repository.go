package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"safecircle/internal/models"
	"safecircle/internal/repositories/interfaces"
	"safecircle/pkg/database"
)

type locationRepository struct {
	collection *mongo.Collection
}

func NewLocationRepository(db *mongo.Database) interfaces.LocationRepository {
	return &locationRepository{collection: db.Collection(database.CollectionLocations)}
}

func (r *locationRepository) Create(ctx context.Context, location *models.Location) error {
	if _, err := r.collection.InsertOne(ctx, location); err != nil {
		return fmt.Errorf("failed to record location: %w", err)
	}
	return nil
}

func (r *locationRepository) GetLatest(ctx context.Context, alertID string) (*models.Location, error) {
	var location models.Location
	err := r.collection.FindOne(ctx,
		bson.M{"alert_id": alertID},
		options.FindOne().SetSort(bson.D{{Key: "captured_at", Value: -1}}),
	).Decode(&location)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest location: %w", err)
	}
	return &location, nil
}

func (r *locationRepository) List(ctx context.Context, alertID string, limit int, order models.SortOrder) ([]*models.Location, error) {
	direction := 1
	if order == models.SortDesc {
		direction = -1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "captured_at", Value: direction}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"alert_id": alertID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer cursor.Close(ctx)

	locations := make([]*models.Location, 0)
	if err := cursor.All(ctx, &locations); err != nil {
		return nil, fmt.Errorf("failed to decode locations: %w", err)
	}
	return locations, nil
}
