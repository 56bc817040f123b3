package models

import (
	"time"
)

// AlertView is the sender-facing shape of an alert.
type AlertView struct {
	ID             string      `json:"id"`
	Type           AlertType   `json:"type"`
	Status         AlertStatus `json:"status"`
	StartedAt      time.Time   `json:"started_at"`
	EndedAt        *time.Time  `json:"ended_at,omitempty"`
	MaxDurationSec int         `json:"max_duration_sec"`
	RemainingSec   int         `json:"remaining_sec"`
	Latest         *Location   `json:"latest"`
	ShareToken     string      `json:"shareToken,omitempty"`
}

func NewAlertView(a *Alert, latest *Location, now time.Time) *AlertView {
	return &AlertView{
		ID:             a.ID,
		Type:           a.Type,
		Status:         a.ViewStatus(now),
		StartedAt:      a.StartedAt,
		EndedAt:        a.EndedAt,
		MaxDurationSec: a.MaxDurationSec,
		RemainingSec:   a.RemainingSec(now),
		Latest:         latest,
	}
}

type Permissions struct {
	CanReply bool `json:"can_reply"`
}

// PublicAlert is what a share token holder sees. Latest is always nil for
// going-home alerts.
type PublicAlert struct {
	ID             string      `json:"id"`
	Type           AlertType   `json:"type"`
	Status         AlertStatus `json:"status"`
	StartedAt      time.Time   `json:"started_at"`
	EndedAt        *time.Time  `json:"ended_at"`
	MaxDurationSec int         `json:"max_duration_sec"`
	RemainingSec   int         `json:"remaining_sec"`
	Latest         *Location   `json:"latest"`
	Permissions    Permissions `json:"permissions"`
}

type UpdateResult struct {
	OK      bool `json:"ok"`
	Ignored bool `json:"ignored,omitempty"`
}

type ExtendResult struct {
	OK             bool `json:"ok"`
	MaxDurationSec int  `json:"max_duration_sec"`
	RemainingSec   int  `json:"remaining_sec"`
	AddedSec       int  `json:"added_sec"`
}
