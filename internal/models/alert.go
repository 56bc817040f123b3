package models

import (
	"time"
)

type AlertType string
type AlertStatus string

const (
	AlertTypeEmergency AlertType = "emergency"
	AlertTypeGoingHome AlertType = "going_home"

	AlertStatusActive AlertStatus = "active"
	AlertStatusEnded  AlertStatus = "ended"

	// AlertStatusTimeout is a view only. It is never persisted: an alert is
	// timed out when it is still active and its remaining time is zero.
	// Do not add a sweeper that writes this value.
	AlertStatusTimeout AlertStatus = "timeout"
)

const (
	MinAlertDurationSec  = 300
	MaxAlertDurationSec  = 21600
	MinExtensionSec      = 60
	MaxExtensionSec      = 21600
	DefaultAlertDuration = 3600
)

type Alert struct {
	ID             string      `json:"id" bson:"_id"`
	UserID         string      `json:"user_id" bson:"user_id"`
	Type           AlertType   `json:"type" bson:"type"`
	Status         AlertStatus `json:"status" bson:"status"`
	StartedAt      time.Time   `json:"started_at" bson:"started_at"`
	EndedAt        *time.Time  `json:"ended_at" bson:"ended_at"`
	MaxDurationSec int         `json:"max_duration_sec" bson:"max_duration_sec"`
	RevokedAt      *time.Time  `json:"revoked_at,omitempty" bson:"revoked_at"`
	SenderName     string      `json:"-" bson:"sender_name,omitempty"`
}

func (t AlertType) Valid() bool {
	return t == AlertTypeEmergency || t == AlertTypeGoingHome
}

func (a *Alert) IsGoingHome() bool {
	return a.Type == AlertTypeGoingHome
}

func (a *Alert) IsActive() bool {
	return a.Status == AlertStatusActive
}

// RemainingSec is the single remaining-time computation shared by every
// surface that reports it.
func (a *Alert) RemainingSec(now time.Time) int {
	return RemainingSec(a.StartedAt, a.MaxDurationSec, a.EndedAt, now)
}

// ViewStatus reports active, ended or the derived timeout state.
func (a *Alert) ViewStatus(now time.Time) AlertStatus {
	if a.Status == AlertStatusActive && a.RemainingSec(now) == 0 {
		return AlertStatusTimeout
	}
	return a.Status
}

// RemainingSec returns max(0, maxDurationSec - elapsed) where elapsed is the
// whole seconds between startedAt and endedAt (or now when still running).
func RemainingSec(startedAt time.Time, maxDurationSec int, endedAt *time.Time, now time.Time) int {
	end := now
	if endedAt != nil {
		end = *endedAt
	}
	elapsed := int(end.Sub(startedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := maxDurationSec - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ClampStartDuration bounds a requested alert duration to [300, 21600].
func ClampStartDuration(requested int) int {
	return clamp(requested, MinAlertDurationSec, MaxAlertDurationSec)
}

// ClampExtension bounds a single extension to [60, 21600].
func ClampExtension(requested int) int {
	return clamp(requested, MinExtensionSec, MaxExtensionSec)
}

// ExtendDuration adds a clamped increment to current and caps the sum at
// MaxAlertDurationSec. It returns the new ceiling and the seconds actually
// added, which is zero when the alert is already at the cap.
func ExtendDuration(current, increment int) (newMax int, added int) {
	newMax = current + ClampExtension(increment)
	if newMax > MaxAlertDurationSec {
		newMax = MaxAlertDurationSec
	}
	if newMax < current {
		newMax = current
	}
	return newMax, newMax - current
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
