package models

import (
	"time"
)

type Location struct {
	ID         string    `json:"-" bson:"_id"`
	AlertID    string    `json:"-" bson:"alert_id"`
	Lat        float64   `json:"lat" bson:"lat"`
	Lng        float64   `json:"lng" bson:"lng"`
	AccuracyM  *float64  `json:"accuracy_m" bson:"accuracy_m"`
	BatteryPct *int      `json:"battery_pct" bson:"battery_pct"`
	CapturedAt time.Time `json:"captured_at" bson:"captured_at"`
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const (
	DefaultLocationLimit = 100
	MaxLocationLimit     = 500
)
