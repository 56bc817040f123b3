// Package memory keeps every record in process memory. It backs local
// development without MongoDB and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"safecircle/internal/models"
	"safecircle/internal/repositories/interfaces"
)

type db struct {
	mu          sync.RWMutex
	users       map[string]*models.User
	alerts      map[string]*models.Alert
	locations   []*models.Location
	contacts    map[string]*models.Contact
	recipients  []*models.Recipient
	deliveries  []*models.Delivery
	reactions   []*models.Reaction
	revocations map[string]time.Time
}

// NewStore returns an empty store.
func NewStore() *interfaces.Store {
	d := &db{
		users:       make(map[string]*models.User),
		alerts:      make(map[string]*models.Alert),
		contacts:    make(map[string]*models.Contact),
		revocations: make(map[string]time.Time),
	}
	return &interfaces.Store{
		Users:       &userRepository{d},
		Alerts:      &alertRepository{d},
		Locations:   &locationRepository{d},
		Contacts:    &contactRepository{d},
		Recipients:  &recipientRepository{d},
		Deliveries:  &deliveryRepository{d},
		Reactions:   &reactionRepository{d},
		Revocations: &revocationRepository{d},
	}
}

type userRepository struct{ *db }

func (r *userRepository) GetOrCreateBySubject(_ context.Context, subject string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Subject == subject {
			copied := *u
			return &copied, nil
		}
	}
	u := &models.User{ID: uuid.NewString(), Subject: subject, CreatedAt: time.Now().UTC()}
	r.users[u.ID] = u
	copied := *u
	return &copied, nil
}

type alertRepository struct{ *db }

func (r *alertRepository) Create(_ context.Context, alert *models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *alert
	r.alerts[alert.ID] = &copied
	return nil
}

func (r *alertRepository) GetByID(_ context.Context, id string) (*models.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *alertRepository) UpdateMaxDuration(_ context.Context, id string, maxDurationSec int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	a.MaxDurationSec = maxDurationSec
	return nil
}

func (r *alertRepository) End(_ context.Context, id string, at time.Time) (*models.Alert, error) {
	return r.finish(id, at, false)
}

func (r *alertRepository) MarkRevoked(_ context.Context, id string, at time.Time) (*models.Alert, error) {
	return r.finish(id, at, true)
}

func (r *alertRepository) finish(id string, at time.Time, revoke bool) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	a.Status = models.AlertStatusEnded
	if a.EndedAt == nil {
		ended := at
		a.EndedAt = &ended
	}
	if revoke && a.RevokedAt == nil {
		revoked := at
		a.RevokedAt = &revoked
	}
	copied := *a
	return &copied, nil
}

type locationRepository struct{ *db }

func (r *locationRepository) Create(_ context.Context, location *models.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *location
	r.locations = append(r.locations, &copied)
	return nil
}

func (r *locationRepository) GetLatest(_ context.Context, alertID string) (*models.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *models.Location
	for _, l := range r.locations {
		if l.AlertID == alertID && (latest == nil || !l.CapturedAt.Before(latest.CapturedAt)) {
			latest = l
		}
	}
	if latest == nil {
		return nil, interfaces.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *locationRepository) List(_ context.Context, alertID string, limit int, order models.SortOrder) ([]*models.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Location, 0)
	for _, l := range r.locations {
		if l.AlertID == alertID {
			copied := *l
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if order == models.SortDesc {
			return out[i].CapturedAt.After(out[j].CapturedAt)
		}
		return out[i].CapturedAt.Before(out[j].CapturedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type contactRepository struct{ *db }

func (r *contactRepository) Upsert(_ context.Context, ownerUserID, email string) (*models.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.OwnerUserID == ownerUserID && c.Email == email {
			copied := *c
			return &copied, nil
		}
	}
	c := &models.Contact{ID: uuid.NewString(), OwnerUserID: ownerUserID, Email: email, CreatedAt: time.Now().UTC()}
	r.contacts[c.ID] = c
	copied := *c
	return &copied, nil
}

func (r *contactRepository) GetByID(_ context.Context, id string) (*models.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contacts[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *contactRepository) ListByOwner(_ context.Context, ownerUserID string) ([]*models.Contact, error) {
	return r.filter(func(c *models.Contact) bool { return c.OwnerUserID == ownerUserID }), nil
}

func (r *contactRepository) FindByEmails(_ context.Context, ownerUserID string, emails []string) ([]*models.Contact, error) {
	wanted := make(map[string]bool, len(emails))
	for _, e := range emails {
		wanted[e] = true
	}
	return r.filter(func(c *models.Contact) bool { return c.OwnerUserID == ownerUserID && wanted[c.Email] }), nil
}

func (r *contactRepository) filter(keep func(*models.Contact) bool) []*models.Contact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Contact, 0)
	for _, c := range r.contacts {
		if keep(c) {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *contactRepository) MarkVerified(_ context.Context, id string, at time.Time) (*models.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	if c.VerifiedAt == nil {
		verified := at
		c.VerifiedAt = &verified
	}
	copied := *c
	return &copied, nil
}

type recipientRepository struct{ *db }

func (r *recipientRepository) CreateMany(_ context.Context, recipients []*models.Recipient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range recipients {
		copied := *rec
		r.recipients = append(r.recipients, &copied)
	}
	return nil
}

func (r *recipientRepository) ListByAlert(_ context.Context, alertID string, purpose models.DeliveryPurpose) ([]*models.Recipient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Recipient, 0)
	for _, rec := range r.recipients {
		if rec.AlertID == alertID && rec.Purpose == purpose {
			copied := *rec
			out = append(out, &copied)
		}
	}
	return out, nil
}

type deliveryRepository struct{ *db }

func (r *deliveryRepository) Create(_ context.Context, delivery *models.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *delivery
	r.deliveries = append(r.deliveries, &copied)
	return nil
}

func (r *deliveryRepository) ListByAlert(_ context.Context, alertID string) ([]*models.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Delivery, 0)
	for _, d := range r.deliveries {
		if d.AlertID == alertID {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

type reactionRepository struct{ *db }

func (r *reactionRepository) Create(_ context.Context, reaction *models.Reaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *reaction
	r.reactions = append(r.reactions, &copied)
	return nil
}

func (r *reactionRepository) ListByAlert(_ context.Context, alertID string) ([]*models.Reaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Reaction, 0)
	for _, reaction := range r.reactions {
		if reaction.AlertID == alertID {
			copied := *reaction
			out = append(out, &copied)
		}
	}
	return out, nil
}

type revocationRepository struct{ *db }

func (r *revocationRepository) Insert(_ context.Context, alertID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.revocations[alertID]; !ok {
		r.revocations[alertID] = at
	}
	return nil
}

func (r *revocationRepository) Exists(_ context.Context, alertID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.revocations[alertID]
	return ok, nil
}
