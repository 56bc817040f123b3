package models

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventLocation  EventType = "location"
	EventStatus    EventType = "status"
	EventExtended  EventType = "extended"
	EventReaction  EventType = "reaction"
	EventHello     EventType = "hello"
	EventKeepalive EventType = "keepalive"
)

// Event is the payload fanned out to every viewer of an alert.
type Event struct {
	Type      EventType `json:"type"`
	AlertID   string    `json:"alert_id"`
	Timestamp int64     `json:"ts"`

	// location
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
	AccuracyM  *float64 `json:"accuracy_m,omitempty"`
	BatteryPct *int     `json:"battery_pct,omitempty"`

	// status
	Status AlertStatus `json:"status,omitempty"`

	// extended
	MaxDurationSec *int `json:"max_duration_sec,omitempty"`
	RemainingSec   *int `json:"remaining_sec,omitempty"`
	AddedSec       *int `json:"added_sec,omitempty"`

	// reaction
	Preset    string `json:"preset,omitempty"`
	ContactID string `json:"contact_id,omitempty"`
}

func NewLocationEvent(loc *Location) Event {
	lat, lng := loc.Lat, loc.Lng
	return Event{
		Type:       EventLocation,
		AlertID:    loc.AlertID,
		Timestamp:  loc.CapturedAt.UnixMilli(),
		Lat:        &lat,
		Lng:        &lng,
		AccuracyM:  loc.AccuracyM,
		BatteryPct: loc.BatteryPct,
	}
}

func NewStatusEvent(alertID string, status AlertStatus, at time.Time) Event {
	return Event{Type: EventStatus, AlertID: alertID, Timestamp: at.UnixMilli(), Status: status}
}

func NewExtendedEvent(alertID string, maxDurationSec, remainingSec, addedSec int, at time.Time) Event {
	return Event{
		Type:           EventExtended,
		AlertID:        alertID,
		Timestamp:      at.UnixMilli(),
		MaxDurationSec: &maxDurationSec,
		RemainingSec:   &remainingSec,
		AddedSec:       &addedSec,
	}
}

func NewReactionEvent(r *Reaction) Event {
	return Event{
		Type:      EventReaction,
		AlertID:   r.AlertID,
		Timestamp: r.CreatedAt.UnixMilli(),
		Preset:    r.Preset,
		ContactID: r.ContactID,
	}
}

func (e Event) Bytes() []byte {
	data, _ := json.Marshal(e)
	return data
}

func NewHelloEvent(alertID string, at time.Time) Event {
	return Event{Type: EventHello, AlertID: alertID, Timestamp: at.UnixMilli()}
}

func NewKeepaliveEvent(alertID string, at time.Time) Event {
	return Event{Type: EventKeepalive, AlertID: alertID, Timestamp: at.UnixMilli()}
}
