package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"safecircle/internal/models"
	"safecircle/internal/repositories/interfaces"
	"safecircle/pkg/database"
)

// revokedForever is how long a positive marker stays cached. Markers are
// never deleted.
const revokedForever = 24 * time.Hour

type revocationRepository struct {
	collection *mongo.Collection
	cache      *readThrough
}

func NewRevocationRepository(db *mongo.Database, cache *readThrough) interfaces.RevocationRepository {
	return &revocationRepository{
		collection: db.Collection(database.CollectionRevocations),
		cache:      cache,
	}
}

func revocationCacheKey(alertID string) string {
	return "revoked:" + alertID
}

func (r *revocationRepository) Insert(ctx context.Context, alertID string, at time.Time) error {
	_, err := r.collection.InsertOne(ctx, &models.Revocation{AlertID: alertID, CreatedAt: at})
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to record revocation: %w", err)
	}
	r.cache.setFor(ctx, revocationCacheKey(alertID), true, revokedForever)
	return nil
}

func (r *revocationRepository) Exists(ctx context.Context, alertID string) (bool, error) {
	var revoked bool
	if r.cache.get(ctx, revocationCacheKey(alertID), &revoked) {
		return revoked, nil
	}

	err := r.collection.FindOne(ctx, bson.M{"_id": alertID}).Err()
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		r.cache.set(ctx, revocationCacheKey(alertID), false)
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}

	r.cache.setFor(ctx, revocationCacheKey(alertID), true, revokedForever)
	return true, nil
}
