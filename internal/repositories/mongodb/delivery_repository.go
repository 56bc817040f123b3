package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"safecircle/internal/models"
	"safecircle/internal/repositories/interfaces"
	"safecircle/pkg/database"
)

type recipientRepository struct {
	collection *mongo.Collection
}

func NewRecipientRepository(db *mongo.Database) interfaces.RecipientRepository {
	return &recipientRepository{collection: db.Collection(database.CollectionRecipients)}
}

func (r *recipientRepository) CreateMany(ctx context.Context, recipients []*models.Recipient) error {
	if len(recipients) == 0 {
		return nil
	}
	docs := make([]interface{}, len(recipients))
	for i, rec := range recipients {
		docs[i] = rec
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to record recipients: %w", err)
	}
	return nil
}

func (r *recipientRepository) ListByAlert(ctx context.Context, alertID string, purpose models.DeliveryPurpose) ([]*models.Recipient, error) {
	recipients := make([]*models.Recipient, 0)
	err := findAll(ctx, r.collection, bson.M{"alert_id": alertID, "purpose": purpose}, &recipients)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	return recipients, nil
}

type deliveryRepository struct {
	collection *mongo.Collection
}

func NewDeliveryRepository(db *mongo.Database) interfaces.DeliveryRepository {
	return &deliveryRepository{collection: db.Collection(database.CollectionDeliveries)}
}

func (r *deliveryRepository) Create(ctx context.Context, delivery *models.Delivery) error {
	if _, err := r.collection.InsertOne(ctx, delivery); err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}

func (r *deliveryRepository) ListByAlert(ctx context.Context, alertID string) ([]*models.Delivery, error) {
	deliveries := make([]*models.Delivery, 0)
	if err := findAll(ctx, r.collection, bson.M{"alert_id": alertID}, &deliveries); err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return deliveries, nil
}

type reactionRepository struct {
	collection *mongo.Collection
}

func NewReactionRepository(db *mongo.Database) interfaces.ReactionRepository {
	return &reactionRepository{collection: db.Collection(database.CollectionReactions)}
}

func (r *reactionRepository) Create(ctx context.Context, reaction *models.Reaction) error {
	if _, err := r.collection.InsertOne(ctx, reaction); err != nil {
		return fmt.Errorf("failed to record reaction: %w", err)
	}
	return nil
}

func (r *reactionRepository) ListByAlert(ctx context.Context, alertID string) ([]*models.Reaction, error) {
	reactions := make([]*models.Reaction, 0)
	if err := findAll(ctx, r.collection, bson.M{"alert_id": alertID}, &reactions); err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", err)
	}
	return reactions, nil
}

func findAll(ctx context.Context, collection *mongo.Collection, filter bson.M, results interface{}) error {
	cursor, err := collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, results)
}
