package interfaces

import (
	"context"
	"errors"
	"time"

	"safecircle/internal/models"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("record not found")

type UserRepository interface {
	// GetOrCreateBySubject returns the user for subject, creating it on
	// first use.
	GetOrCreateBySubject(ctx context.Context, subject string) (*models.User, error)
}

type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	UpdateMaxDuration(ctx context.Context, id string, maxDurationSec int) error
	// End sets status=ended and stamps ended_at unless it is already set.
	End(ctx context.Context, id string, at time.Time) (*models.Alert, error)
	// MarkRevoked ends the alert like End and stamps revoked_at.
	MarkRevoked(ctx context.Context, id string, at time.Time) (*models.Alert, error)
}

type LocationRepository interface {
	Create(ctx context.Context, location *models.Location) error
	// GetLatest returns ErrNotFound when the alert has no samples.
	GetLatest(ctx context.Context, alertID string) (*models.Location, error)
	List(ctx context.Context, alertID string, limit int, order models.SortOrder) ([]*models.Location, error)
}

type ContactRepository interface {
	// Upsert returns the owner's contact for email, creating it unverified
	// when missing.
	Upsert(ctx context.Context, ownerUserID, email string) (*models.Contact, error)
	GetByID(ctx context.Context, id string) (*models.Contact, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]*models.Contact, error)
	FindByEmails(ctx context.Context, ownerUserID string, emails []string) ([]*models.Contact, error)
	// MarkVerified keeps the first verification time on repeated calls.
	MarkVerified(ctx context.Context, id string, at time.Time) (*models.Contact, error)
}

type RecipientRepository interface {
	CreateMany(ctx context.Context, recipients []*models.Recipient) error
	ListByAlert(ctx context.Context, alertID string, purpose models.DeliveryPurpose) ([]*models.Recipient, error)
}

type DeliveryRepository interface {
	Create(ctx context.Context, delivery *models.Delivery) error
	ListByAlert(ctx context.Context, alertID string) ([]*models.Delivery, error)
}

type ReactionRepository interface {
	Create(ctx context.Context, reaction *models.Reaction) error
	ListByAlert(ctx context.Context, alertID string) ([]*models.Reaction, error)
}

type RevocationRepository interface {
	// Insert records the marker; inserting it twice is not an error.
	Insert(ctx context.Context, alertID string, at time.Time) error
	Exists(ctx context.Context, alertID string) (bool, error)
}

// Store groups the repositories the services depend on.
type Store struct {
	Users       UserRepository
	Alerts      AlertRepository
	Locations   LocationRepository
	Contacts    ContactRepository
	Recipients  RecipientRepository
	Deliveries  DeliveryRepository
	Reactions   ReactionRepository
	Revocations RevocationRepository
}
