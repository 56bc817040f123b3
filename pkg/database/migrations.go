package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"safecircle/pkg/logger"
)

type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, db *mongo.Database) error
}

type Migrator struct {
	db         *mongo.Database
	migrations []Migration
	logger     *logger.Logger
}

func NewMigrator(db *mongo.Database, log *logger.Logger) *Migrator {
	return &Migrator{
		db:         db,
		migrations: migrations(),
		logger:     log,
	}
}

func (m *Migrator) Up(ctx context.Context) error {
	current, err := m.currentVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if migration.Version <= current {
			continue
		}

		m.logger.WithField("version", migration.Version).Infof("Running migration: %s", migration.Description)
		if err := migration.Up(ctx, m.db); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := m.setVersion(ctx, migration.Version); err != nil {
			return fmt.Errorf("failed to update migration version: %w", err)
		}
	}
	return nil
}

func (m *Migrator) currentVersion(ctx context.Context) (int, error) {
	var result struct {
		Version int `bson:"version"`
	}
	err := m.db.Collection("migrations").FindOne(ctx, bson.D{}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return result.Version, nil
}

func (m *Migrator) setVersion(ctx context.Context, version int) error {
	_, err := m.db.Collection("migrations").ReplaceOne(
		ctx,
		bson.D{},
		bson.D{{Key: "version", Value: version}, {Key: "updated_at", Value: time.Now().UTC()}},
		options.Replace().SetUpsert(true),
	)
	return err
}

func migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Index users and contacts",
			Up: func(ctx context.Context, db *mongo.Database) error {
				if err := createIndexes(ctx, db, CollectionUsers, mongo.IndexModel{
					Keys:    bson.D{{Key: "subject", Value: 1}},
					Options: options.Index().SetUnique(true),
				}); err != nil {
					return err
				}
				return createIndexes(ctx, db, CollectionContacts, mongo.IndexModel{
					Keys:    bson.D{{Key: "owner_user_id", Value: 1}, {Key: "email", Value: 1}},
					Options: options.Index().SetUnique(true),
				})
			},
		},
		{
			Version:     2,
			Description: "Index alerts and location samples",
			Up: func(ctx context.Context, db *mongo.Database) error {
				if err := createIndexes(ctx, db, CollectionAlerts,
					mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "started_at", Value: -1}}},
				); err != nil {
					return err
				}
				return createIndexes(ctx, db, CollectionLocations,
					mongo.IndexModel{Keys: bson.D{{Key: "alert_id", Value: 1}, {Key: "captured_at", Value: 1}}},
				)
			},
		},
		{
			Version:     3,
			Description: "Index recipients, deliveries and reactions",
			Up: func(ctx context.Context, db *mongo.Database) error {
				byAlert := func() mongo.IndexModel {
					return mongo.IndexModel{Keys: bson.D{{Key: "alert_id", Value: 1}, {Key: "created_at", Value: 1}}}
				}
				for _, name := range []string{CollectionRecipients, CollectionDeliveries, CollectionReactions} {
					if err := createIndexes(ctx, db, name, byAlert()); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}

func createIndexes(ctx context.Context, db *mongo.Database, collection string, indexes ...mongo.IndexModel) error {
	if _, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create indexes on %s: %w", collection, err)
	}
	return nil
}
