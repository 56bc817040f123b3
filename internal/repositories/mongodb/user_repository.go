package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"safecircle/internal/models"
	"safecircle/internal/repositories/interfaces"
	"safecircle/pkg/database"
)

type userRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) interfaces.UserRepository {
	return &userRepository{collection: db.Collection(database.CollectionUsers)}
}

func (r *userRepository) GetOrCreateBySubject(ctx context.Context, subject string) (*models.User, error) {
	// $setOnInsert keeps the first id when two requests race on a new subject
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	update := bson.M{"$setOnInsert": bson.M{
		"_id":        uuid.NewString(),
		"created_at": time.Now().UTC(),
	}}

	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"subject": subject}, update, opts).Decode(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return &user, nil
}
