package validators

import (
	"safecircle/internal/models"
	"safecircle/internal/utils"
)

type StartAlertRequest struct {
	Lat            *float64         `json:"lat" validate:"required,latitude"`
	Lng            *float64         `json:"lng" validate:"required,longitude"`
	AccuracyM      *float64         `json:"accuracy_m" validate:"omitempty,gte=0"`
	BatteryPct     *int             `json:"battery_pct" validate:"omitempty,gte=0,lte=100"`
	Type           models.AlertType `json:"type" validate:"omitempty,oneof=emergency going_home"`
	MaxDurationSec *int             `json:"max_duration_sec"`
	SenderName     string           `json:"sender_name" validate:"omitempty,max=64"`
	Recipients     []string         `json:"recipients"`
	// RecipientEmails is accepted as an alias of Recipients.
	RecipientEmails []string `json:"recipient_emails"`
}

// RecipientList merges both recipient fields.
func (r *StartAlertRequest) RecipientList() []string {
	out := make([]string, 0, len(r.Recipients)+len(r.RecipientEmails))
	out = append(out, r.Recipients...)
	return append(out, r.RecipientEmails...)
}

type UpdateAlertRequest struct {
	Lat        *float64 `json:"lat" validate:"required,latitude"`
	Lng        *float64 `json:"lng" validate:"required,longitude"`
	AccuracyM  *float64 `json:"accuracy_m" validate:"omitempty,gte=0"`
	BatteryPct *int     `json:"battery_pct" validate:"omitempty,gte=0,lte=100"`
}

type ExtendAlertRequest struct {
	ExtendSec *int `json:"extend_sec"`
	ExtendMin *int `json:"extend_min"`
}

// Seconds returns the requested increment, preferring extend_sec.
func (r *ExtendAlertRequest) Seconds() int {
	if r.ExtendSec != nil {
		return *r.ExtendSec
	}
	if r.ExtendMin != nil {
		return *r.ExtendMin * 60
	}
	return 0
}

type ReactRequest struct {
	Preset string `json:"preset" validate:"required,preset"`
}

type LocationsQuery struct {
	Limit *int   `form:"limit" json:"limit" validate:"omitempty,min=1,max=500"`
	Order string `form:"order" json:"order" validate:"sort_order"`
}

// Normalize applies the defaults for omitted parameters.
func (q *LocationsQuery) Normalize() (int, models.SortOrder) {
	limit := models.DefaultLocationLimit
	if q.Limit != nil {
		limit = *q.Limit
	}
	order := models.SortAsc
	if q.Order == string(models.SortDesc) {
		order = models.SortDesc
	}
	return limit, order
}

type ContactRequest struct {
	Email string `json:"email" validate:"required,contact_email"`
}

type VerifyContactRequest struct {
	Token string `json:"token" validate:"required"`
}

func ValidateStartAlert(req *StartAlertRequest) error {
	return AsAppError(ValidateStruct(req))
}

func ValidateUpdateAlert(req *UpdateAlertRequest) error {
	return AsAppError(ValidateStruct(req))
}

// ValidateExtendAlert requires a positive increment in either unit.
func ValidateExtendAlert(req *ExtendAlertRequest) error {
	if req.Seconds() <= 0 {
		return utils.NewValidationError(utils.ErrInvalidExtension)
	}
	return nil
}

func ValidateReact(req *ReactRequest) error {
	return AsAppError(ValidateStruct(req))
}

func ValidateLocationsQuery(q *LocationsQuery) error {
	return AsAppError(ValidateStruct(q))
}

func ValidateContact(req *ContactRequest) error {
	return AsAppError(ValidateStruct(req))
}
