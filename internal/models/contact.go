package models

import (
	"time"
)

type Contact struct {
	ID          string     `json:"id" bson:"_id"`
	OwnerUserID string     `json:"owner_user_id" bson:"owner_user_id"`
	Email       string     `json:"email" bson:"email"`
	VerifiedAt  *time.Time `json:"verified_at" bson:"verified_at"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
}

func (c *Contact) IsVerified() bool {
	return c.VerifiedAt != nil
}

type DeliveryPurpose string
type DeliveryStatus string

const (
	PurposeStart   DeliveryPurpose = "start"
	PurposeArrival DeliveryPurpose = "arrival"
	PurposeVerify  DeliveryPurpose = "verify"

	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// Recipient records that a contact was invited to an alert.
type Recipient struct {
	ID        string          `json:"id" bson:"_id"`
	AlertID   string          `json:"alert_id" bson:"alert_id"`
	ContactID string          `json:"contact_id" bson:"contact_id"`
	Email     string          `json:"email" bson:"email"`
	Purpose   DeliveryPurpose `json:"purpose" bson:"purpose"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
}

// Delivery is the outcome of one outbound email.
type Delivery struct {
	ID        string          `json:"id" bson:"_id"`
	AlertID   string          `json:"alert_id,omitempty" bson:"alert_id,omitempty"`
	ContactID string          `json:"contact_id" bson:"contact_id"`
	Email     string          `json:"email" bson:"email"`
	Purpose   DeliveryPurpose `json:"purpose" bson:"purpose"`
	Status    DeliveryStatus  `json:"status" bson:"status"`
	Error     string          `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
}

type Reaction struct {
	ID        string    `json:"id" bson:"_id"`
	AlertID   string    `json:"alert_id" bson:"alert_id"`
	ContactID string    `json:"contact_id" bson:"contact_id"`
	Preset    string    `json:"preset" bson:"preset"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Revocation marks every share token of an alert invalid, regardless of expiry.
type Revocation struct {
	AlertID   string    `json:"alert_id" bson:"_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
