package mongodb

import (
	"context"
	"errors"
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

type contactRepository struct {
	collection *mongo.Collection
}

func NewContactRepository(db *mongo.Database) interfaces.ContactRepository {
	return &contactRepository{collection: db.Collection(database.CollectionContacts)}
}

func (r *contactRepository) Upsert(ctx context.Context, ownerUserID, email string) (*models.Contact, error) {
	filter := bson.M{"owner_user_id": ownerUserID, "email": email}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":         uuid.NewString(),
		"verified_at": nil,
		"created_at":  time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var contact models.Contact
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&contact); err != nil {
		return nil, fmt.Errorf("failed to upsert contact: %w", err)
	}
	return &contact, nil
}

func (r *contactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	var contact models.Contact
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&contact)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &contact, nil
}

func (r *contactRepository) ListByOwner(ctx context.Context, ownerUserID string) ([]*models.Contact, error) {
	return r.find(ctx, bson.M{"owner_user_id": ownerUserID})
}

func (r *contactRepository) FindByEmails(ctx context.Context, ownerUserID string, emails []string) ([]*models.Contact, error) {
	return r.find(ctx, bson.M{"owner_user_id": ownerUserID, "email": bson.M{"$in": emails}})
}

func (r *contactRepository) find(ctx context.Context, filter bson.M) ([]*models.Contact, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find contacts: %w", err)
	}
	defer cursor.Close(ctx)

	contacts := make([]*models.Contact, 0)
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, fmt.Errorf("failed to decode contacts: %w", err)
	}
	return contacts, nil
}

func (r *contactRepository) MarkVerified(ctx context.Context, id string, at time.Time) (*models.Contact, error) {
	pipeline := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"verified_at": bson.M{"$ifNull": bson.A{"$verified_at", at}},
	}}}}

	var contact models.Contact
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&contact)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify contact: %w", err)
	}
	return &contact, nil
}
