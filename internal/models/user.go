package models

import (
	"time"
)

// User is the owner of alerts and contacts. It is keyed by the identity
// provider subject, or DefaultSubject for anonymous sessions.
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Subject   string    `json:"subject" bson:"subject"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

const DefaultSubject = "default"
