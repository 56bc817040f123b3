package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"safecircle/internal/config"
	"safecircle/internal/models"
	"safecircle/internal/repositories/interfaces"
	"safecircle/internal/utils"
	"safecircle/internal/validators"
	"safecircle/pkg/email"
	"safecircle/pkg/logger"
	"safecircle/pkg/websocket"
)

const defaultSenderLabel = "Your contact"

type AlertService interface {
	// Sender operations
	Start(ctx context.Context, subject string, request *validators.StartAlertRequest) (*models.AlertView, error)
	Update(ctx context.Context, subject, alertID string, request *validators.UpdateAlertRequest) (*models.UpdateResult, error)
	Extend(ctx context.Context, subject, alertID string, request *validators.ExtendAlertRequest) (*models.ExtendResult, error)
	Stop(ctx context.Context, subject, alertID string) (*models.Alert, error)
	Revoke(ctx context.Context, subject, alertID string) error
	Diag(ctx context.Context, subject, alertID string) (websocket.Diagnostics, error)

	// Share token holder operations
	AuthorizeViewer(ctx context.Context, token string) (*utils.ShareClaims, *models.Alert, error)
	PublicAlert(ctx context.Context, token string) (*models.PublicAlert, error)
	Locations(ctx context.Context, token string, query *validators.LocationsQuery) ([]*models.Location, error)
	React(ctx context.Context, token string, request *validators.ReactRequest) error
}

type alertService struct {
	store     *interfaces.Store
	tokens    *utils.TokenAuthority
	publisher Publisher
	notifier  *notifier
	recorder  Recorder
	shareTTL  time.Duration
	viewerURL string
	logger    *logger.Logger
	now       func() time.Time
}

func NewAlertService(
	cfg *config.Config,
	store *interfaces.Store,
	tokens *utils.TokenAuthority,
	publisher Publisher,
	dispatcher Dispatcher,
	mailer email.Sender,
	recorder Recorder,
	log *logger.Logger,
) AlertService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	shareTTL := cfg.Security.ShareTokenTTL
	if shareTTL <= 0 {
		shareTTL = utils.ShareTokenTTL
	}

	s := &alertService{
		store:     store,
		tokens:    tokens,
		publisher: publisher,
		recorder:  recorder,
		shareTTL:  shareTTL,
		viewerURL: cfg.App.ViewerURL,
		logger:    log,
		now:       time.Now,
	}
	s.notifier = &notifier{
		dispatcher: dispatcher,
		mailer:     mailer,
		deliveries: store.Deliveries,
		recorder:   recorder,
		logger:     log,
		now:        func() time.Time { return s.now() },
	}
	return s
}

func (s *alertService) Start(ctx context.Context, subject string, request *validators.StartAlertRequest) (*models.AlertView, error) {
	if request.Lat == nil || request.Lng == nil {
		return nil, utils.NewValidationError(utils.ErrMissingLocation)
	}
	if err := validators.ValidateStartAlert(request); err != nil {
		return nil, err
	}
	requested := request.RecipientList()
	if len(requested) == 0 {
		return nil, utils.NewValidationError(utils.ErrMissingRecipients)
	}
	if len(requested) > utils.MaxRecipients {
		return nil, utils.NewValidationError(fmt.Sprintf("at most %d recipients are allowed", utils.MaxRecipients))
	}

	alertType := request.Type
	if alertType == "" {
		alertType = models.AlertTypeEmergency
	}
	duration := models.DefaultAlertDuration
	if request.MaxDurationSec != nil {
		duration = *request.MaxDurationSec
	}

	owner, err := resolveSender(ctx, s.store.Users, subject)
	if err != nil {
		return nil, err
	}

	// recipients are resolved before anything is written, so a rejected
	// start leaves no alert behind and issues no tokens
	contacts, err := s.resolveRecipients(ctx, owner.ID, requested)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	alert := &models.Alert{
		ID:             uuid.NewString(),
		UserID:         owner.ID,
		Type:           alertType,
		Status:         models.AlertStatusActive,
		StartedAt:      now,
		MaxDurationSec: models.ClampStartDuration(duration),
		SenderName:     strings.TrimSpace(request.SenderName),
	}
	if err := s.store.Alerts.Create(ctx, alert); err != nil {
		return nil, utils.NewDependencyError("create alert", err)
	}

	log := s.logger.WithContext(ctx).WithAlertID(alert.ID)

	// the start point is recorded for every type; only later updates of a
	// going-home alert are suppressed
	first := &models.Location{
		ID:         uuid.NewString(),
		AlertID:    alert.ID,
		Lat:        *request.Lat,
		Lng:        *request.Lng,
		AccuracyM:  request.AccuracyM,
		BatteryPct: request.BatteryPct,
		CapturedAt: now,
	}
	if err := s.store.Locations.Create(ctx, first); err != nil {
		log.WithError(err).Error("Failed to record start location")
		first = nil
	}

	s.invite(ctx, alert, contacts, log)

	preview, err := s.tokens.MintShareToken(alert.ID, "", s.shareTTL)
	if err != nil {
		return nil, utils.NewDependencyError("mint preview token", err)
	}

	s.recorder.AlertStarted(string(alert.Type))
	log.LogAlertEvent(alert.ID, "started", map[string]interface{}{
		"alert_type":       alert.Type,
		"max_duration_sec": alert.MaxDurationSec,
		"recipients":       len(contacts),
	})

	view := models.NewAlertView(alert, first, now)
	if alert.IsGoingHome() {
		view.Latest = nil
	}
	view.ShareToken = preview
	return view, nil
}

// resolveRecipients returns the verified contacts for every requested
// address, or a validation error naming each address that is not one.
func (s *alertService) resolveRecipients(ctx context.Context, ownerID string, requested []string) ([]*models.Contact, error) {
	seen := make(map[string]bool, len(requested))
	var emails, invalid []string
	for _, raw := range requested {
		address := utils.NormalizeEmail(raw)
		if seen[address] {
			continue
		}
		seen[address] = true
		if !utils.IsValidEmail(address) {
			invalid = append(invalid, address)
			continue
		}
		emails = append(emails, address)
	}

	byEmail := make(map[string]*models.Contact)
	if len(emails) > 0 {
		found, err := s.store.Contacts.FindByEmails(ctx, ownerID, emails)
		if err != nil {
			return nil, utils.NewDependencyError("resolve recipients", err)
		}
		for _, c := range found {
			byEmail[c.Email] = c
		}
	}

	contacts := make([]*models.Contact, 0, len(emails))
	for _, address := range emails {
		c, ok := byEmail[address]
		if !ok || !c.IsVerified() {
			invalid = append(invalid, address)
			continue
		}
		contacts = append(contacts, c)
	}

	if len(invalid) > 0 {
		sort.Strings(invalid)
		detail := utils.ErrInvalidRecipients + ": " + strings.Join(invalid, ", ")
		if len(contacts) > 0 {
			notified := make([]string, 0, len(contacts))
			for _, c := range contacts {
				notified = append(notified, c.Email)
			}
			sort.Strings(notified)
			detail += "; nobody was notified, including " + strings.Join(notified, ", ")
		}
		return nil, utils.NewValidationError(detail)
	}
	return contacts, nil
}

// invite mints one contact-bound token per recipient, records the recipient
// rows and queues the invitation emails.
func (s *alertService) invite(ctx context.Context, alert *models.Alert, contacts []*models.Contact, log *logger.Logger) {
	now := s.now().UTC()
	recipients := make([]*models.Recipient, 0, len(contacts))
	notices := make([]notice, 0, len(contacts))

	for _, c := range contacts {
		token, err := s.tokens.MintShareToken(alert.ID, c.ID, s.shareTTL)
		if err != nil {
			log.WithError(err).WithField("contact_id", c.ID).Error("Failed to mint share token")
			continue
		}
		recipients = append(recipients, &models.Recipient{
			ID:        uuid.NewString(),
			AlertID:   alert.ID,
			ContactID: c.ID,
			Email:     c.Email,
			Purpose:   models.PurposeStart,
			CreatedAt: now,
		})
		notices = append(notices, notice{
			alertID:   alert.ID,
			contactID: c.ID,
			purpose:   models.PurposeStart,
			message:   email.InvitationMessage(c.Email, senderLabel(alert), utils.CreateViewerLink(s.viewerURL, token), alert.IsGoingHome()),
		})
	}

	if err := s.store.Recipients.CreateMany(ctx, recipients); err != nil {
		log.WithError(err).Error("Failed to record recipients")
	}
	s.notifier.dispatch(ctx, notices)
}

func senderLabel(alert *models.Alert) string {
	if alert.SenderName != "" {
		return alert.SenderName
	}
	return defaultSenderLabel
}

// ownedAlert loads an alert and checks that the sender owns it.
func (s *alertService) ownedAlert(ctx context.Context, subject, alertID string) (*models.Alert, error) {
	owner, err := resolveSender(ctx, s.store.Users, subject)
	if err != nil {
		return nil, err
	}
	alert, err := s.store.Alerts.GetByID(ctx, alertID)
	if err != nil {
		return nil, storeError("get alert", err, utils.ErrAlertNotFound)
	}
	if alert.UserID != owner.ID {
		return nil, utils.NewForbiddenError(utils.ErrNotAlertOwner)
	}
	return alert, nil
}

func (s *alertService) Update(ctx context.Context, subject, alertID string, request *validators.UpdateAlertRequest) (*models.UpdateResult, error) {
	if request.Lat == nil || request.Lng == nil {
		return nil, utils.NewValidationError(utils.ErrMissingLocation)
	}
	if err := validators.ValidateUpdateAlert(request); err != nil {
		return nil, err
	}

	alert, err := s.ownedAlert(ctx, subject, alertID)
	if err != nil {
		return nil, err
	}
	if alert.IsGoingHome() {
		return &models.UpdateResult{OK: true, Ignored: true}, nil
	}
	if !alert.IsActive() {
		return nil, utils.NewStateConflictError(utils.ErrAlertNotActive)
	}

	location := &models.Location{
		ID:         uuid.NewString(),
		AlertID:    alert.ID,
		Lat:        *request.Lat,
		Lng:        *request.Lng,
		AccuracyM:  request.AccuracyM,
		BatteryPct: request.BatteryPct,
		CapturedAt: s.now().UTC(),
	}
	if err := s.store.Locations.Create(ctx, location); err != nil {
		return nil, utils.NewDependencyError("record location", err)
	}

	s.publisher.Publish(alert.ID, models.NewLocationEvent(location).Bytes())
	return &models.UpdateResult{OK: true}, nil
}

func (s *alertService) Extend(ctx context.Context, subject, alertID string, request *validators.ExtendAlertRequest) (*models.ExtendResult, error) {
	if err := validators.ValidateExtendAlert(request); err != nil {
		return nil, err
	}

	alert, err := s.ownedAlert(ctx, subject, alertID)
	if err != nil {
		return nil, err
	}
	if !alert.IsActive() {
		return nil, utils.NewStateConflictError(utils.ErrAlertNotActive)
	}

	newMax, added := models.ExtendDuration(alert.MaxDurationSec, request.Seconds())
	if added > 0 {
		if err := s.store.Alerts.UpdateMaxDuration(ctx, alert.ID, newMax); err != nil {
			return nil, storeError("extend alert", err, utils.ErrAlertNotFound)
		}
	}
	alert.MaxDurationSec = newMax

	now := s.now().UTC()
	remaining := alert.RemainingSec(now)
	s.publisher.Publish(alert.ID, models.NewExtendedEvent(alert.ID, newMax, remaining, added, now).Bytes())
	s.recorder.AlertTransition("extend")

	return &models.ExtendResult{
		OK:             true,
		MaxDurationSec: newMax,
		RemainingSec:   remaining,
		AddedSec:       added,
	}, nil
}

func (s *alertService) Stop(ctx context.Context, subject, alertID string) (*models.Alert, error) {
	alert, err := s.ownedAlert(ctx, subject, alertID)
	if err != nil {
		return nil, err
	}
	// stopping twice must not send a second round of arrival notices
	if !alert.IsActive() {
		return alert, nil
	}

	now := s.now().UTC()
	ended, err := s.store.Alerts.End(ctx, alert.ID, now)
	if err != nil {
		return nil, storeError("stop alert", err, utils.ErrAlertNotFound)
	}

	s.publisher.Publish(alert.ID, models.NewStatusEvent(alert.ID, models.AlertStatusEnded, now).Bytes())
	s.recorder.AlertTransition("stop")

	log := s.logger.WithContext(ctx).WithAlertID(alert.ID)
	if ended.IsGoingHome() {
		s.notifyArrival(ctx, ended, log)
	}
	log.LogAlertEvent(alert.ID, "stopped", nil)
	return ended, nil
}

func (s *alertService) notifyArrival(ctx context.Context, alert *models.Alert, log *logger.Logger) {
	recipients, err := s.store.Recipients.ListByAlert(ctx, alert.ID, models.PurposeStart)
	if err != nil {
		log.WithError(err).Error("Failed to load recipients for arrival notice")
		return
	}

	notices := make([]notice, 0, len(recipients))
	for _, r := range recipients {
		notices = append(notices, notice{
			alertID:   alert.ID,
			contactID: r.ContactID,
			purpose:   models.PurposeArrival,
			message:   email.ArrivalMessage(r.Email, senderLabel(alert)),
		})
	}
	s.notifier.dispatch(ctx, notices)
}

func (s *alertService) Revoke(ctx context.Context, subject, alertID string) error {
	alert, err := s.ownedAlert(ctx, subject, alertID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	// the marker goes first: once it exists every share token is refused,
	// even if ending the alert below fails
	if err := s.store.Revocations.Insert(ctx, alert.ID, now); err != nil {
		return utils.NewDependencyError("revoke alert", err)
	}
	if _, err := s.store.Alerts.MarkRevoked(ctx, alert.ID, now); err != nil {
		return storeError("revoke alert", err, utils.ErrAlertNotFound)
	}

	s.publisher.Publish(alert.ID, models.NewStatusEvent(alert.ID, models.AlertStatusEnded, now).Bytes())
	s.recorder.AlertTransition("revoke")
	s.logger.WithContext(ctx).LogAlertEvent(alert.ID, "revoked", nil)
	return nil
}

func (s *alertService) Diag(ctx context.Context, subject, alertID string) (websocket.Diagnostics, error) {
	alert, err := s.ownedAlert(ctx, subject, alertID)
	if err != nil {
		return websocket.Diagnostics{}, err
	}
	return s.publisher.Diag(alert.ID), nil
}

// AuthorizeViewer checks a share token: valid signature and expiry, no
// revocation marker for its alert, and an existing alert.
func (s *alertService) AuthorizeViewer(ctx context.Context, token string) (*utils.ShareClaims, *models.Alert, error) {
	claims, err := s.tokens.ParseShareToken(token)
	if err != nil {
		s.logger.WithContext(ctx).LogSecurityEvent("share_token_rejected", logger.SeverityLow, map[string]interface{}{
			"reason": err.Error(),
		})
		return nil, nil, utils.NewUnauthorizedError(utils.ErrInvalidToken)
	}

	revoked, err := s.store.Revocations.Exists(ctx, claims.AlertID)
	if err != nil {
		return nil, nil, utils.NewDependencyError("check revocation", err)
	}
	if revoked {
		s.logger.WithContext(ctx).LogSecurityEvent("revoked_token_presented", logger.SeverityHigh, map[string]interface{}{
			"alert_id": claims.AlertID,
		})
		return nil, nil, utils.NewUnauthorizedError(utils.ErrTokenRevoked)
	}

	alert, err := s.store.Alerts.GetByID(ctx, claims.AlertID)
	if err != nil {
		return nil, nil, storeError("get alert", err, utils.ErrAlertNotFound)
	}
	return claims, alert, nil
}

func (s *alertService) PublicAlert(ctx context.Context, token string) (*models.PublicAlert, error) {
	claims, alert, err := s.AuthorizeViewer(ctx, token)
	if err != nil {
		return nil, err
	}

	var latest *models.Location
	if !alert.IsGoingHome() {
		latest, err = s.store.Locations.GetLatest(ctx, alert.ID)
		if errors.Is(err, interfaces.ErrNotFound) {
			latest, err = nil, nil
		}
		if err != nil {
			return nil, utils.NewDependencyError("get latest location", err)
		}
	}

	now := s.now()
	return &models.PublicAlert{
		ID:             alert.ID,
		Type:           alert.Type,
		Status:         alert.ViewStatus(now),
		StartedAt:      alert.StartedAt,
		EndedAt:        alert.EndedAt,
		MaxDurationSec: alert.MaxDurationSec,
		RemainingSec:   alert.RemainingSec(now),
		Latest:         latest,
		Permissions:    models.Permissions{CanReply: claims.CanReact()},
	}, nil
}

func (s *alertService) Locations(ctx context.Context, token string, query *validators.LocationsQuery) ([]*models.Location, error) {
	_, alert, err := s.AuthorizeViewer(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := validators.ValidateLocationsQuery(query); err != nil {
		return nil, err
	}
	if alert.IsGoingHome() {
		return []*models.Location{}, nil
	}

	limit, order := query.Normalize()
	locations, err := s.store.Locations.List(ctx, alert.ID, limit, order)
	if err != nil {
		return nil, utils.NewDependencyError("list locations", err)
	}
	return locations, nil
}

func (s *alertService) React(ctx context.Context, token string, request *validators.ReactRequest) error {
	claims, alert, err := s.AuthorizeViewer(ctx, token)
	if err != nil {
		return err
	}
	if !claims.CanReact() {
		return utils.NewForbiddenError(utils.ErrReadOnlyToken)
	}
	if err := validators.ValidateReact(request); err != nil {
		return err
	}

	reaction := &models.Reaction{
		ID:        uuid.NewString(),
		AlertID:   alert.ID,
		ContactID: claims.ContactID,
		Preset:    strings.ToLower(request.Preset),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Reactions.Create(ctx, reaction); err != nil {
		return utils.NewDependencyError("record reaction", err)
	}

	s.publisher.Publish(alert.ID, models.NewReactionEvent(reaction).Bytes())
	s.recorder.ReactionRecorded()
	return nil
}
