package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"safecircle/internal/repositories/interfaces"
	"safecircle/pkg/cache"
)

// NewStore wires every repository against db. Alerts and revocation markers
// are read through c.
func NewStore(db *mongo.Database, c cache.Cache, ttl time.Duration, observer CacheObserver) *interfaces.Store {
	return &interfaces.Store{
		Users:       NewUserRepository(db),
		Alerts:      NewAlertRepository(db, &readThrough{cache: c, observer: observer, name: "alert", ttl: ttl}),
		Locations:   NewLocationRepository(db),
		Contacts:    NewContactRepository(db),
		Recipients:  NewRecipientRepository(db),
		Deliveries:  NewDeliveryRepository(db),
		Reactions:   NewReactionRepository(db),
		Revocations: NewRevocationRepository(db, &readThrough{cache: c, observer: observer, name: "revocation", ttl: ttl}),
	}
}
