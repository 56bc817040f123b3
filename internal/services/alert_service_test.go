package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safecircle/internal/config"
	"safecircle/internal/models"
	"safecircle/internal/repositories/interfaces"
	"safecircle/internal/repositories/memory"
	"safecircle/internal/utils"
	"safecircle/internal/validators"
	"safecircle/pkg/email"
	"safecircle/pkg/logger"
	"safecircle/pkg/websocket"
	"safecircle/pkg/worker"
)

type published struct {
	alertID string
	event   models.Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(alertID string, message []byte) {
	var event models.Event
	_ = json.Unmarshal(message, &event)
	p.mu.Lock()
	p.events = append(p.events, published{alertID: alertID, event: event})
	p.mu.Unlock()
}

func (p *fakePublisher) Diag(string) websocket.Diagnostics {
	return websocket.Diagnostics{ConnectedCount: 2, Accepts: 3, Broadcasts: uint64(len(p.events))}
}

func (p *fakePublisher) ofType(t models.EventType) []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Event
	for _, e := range p.events {
		if e.event.Type == t {
			out = append(out, e.event)
		}
	}
	return out
}

// inlineDispatcher runs tasks on the caller's goroutine.
type inlineDispatcher struct {
	names []string
}

func (d *inlineDispatcher) Submit(name string, run func(ctx context.Context) error) error {
	d.names = append(d.names, name)
	_ = run(context.Background())
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []*email.Message
	fail map[string]bool
}

func (m *fakeMailer) SendEmail(_ context.Context, message *email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[message.To] {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, message)
	return nil
}

type countingAlerts struct {
	interfaces.AlertRepository
	creates int
}

func (c *countingAlerts) Create(ctx context.Context, alert *models.Alert) error {
	c.creates++
	return c.AlertRepository.Create(ctx, alert)
}

type failingLocationCreate struct {
	interfaces.LocationRepository
}

func (failingLocationCreate) Create(context.Context, *models.Location) error {
	return errors.New("write concern timeout")
}

type alertFixture struct {
	t          *testing.T
	svc        *alertService
	store      *interfaces.Store
	alerts     *countingAlerts
	publisher  *fakePublisher
	dispatcher *inlineDispatcher
	mailer     *fakeMailer
	tokens     *utils.TokenAuthority
	now        time.Time
}

func testConfig() *config.Config {
	return &config.Config{
		App: &config.AppConfig{ViewerURL: "https://view.test/v", BaseURL: "https://api.test"},
		Security: &config.SecurityConfig{
			ShareTokenSecret: "test-secret",
			ShareTokenTTL:    24 * time.Hour,
			VerifyTokenTTL:   72 * time.Hour,
		},
	}
}

func newAlertFixture(t *testing.T) *alertFixture {
	f := &alertFixture{
		t:          t,
		store:      memory.NewStore(),
		publisher:  &fakePublisher{},
		dispatcher: &inlineDispatcher{},
		mailer:     &fakeMailer{fail: map[string]bool{}},
		now:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.alerts = &countingAlerts{AlertRepository: f.store.Alerts}
	f.store.Alerts = f.alerts

	clock := func() time.Time { return f.now }
	f.tokens = utils.NewTokenAuthority("test-secret").WithClock(clock)
	f.svc = NewAlertService(testConfig(), f.store, f.tokens, f.publisher, f.dispatcher, f.mailer, nil, logger.Discard()).(*alertService)
	f.svc.now = clock
	return f
}

func (f *alertFixture) contact(subject, address string, verified bool) *models.Contact {
	ctx := context.Background()
	owner, err := resolveSender(ctx, f.store.Users, subject)
	require.NoError(f.t, err)
	c, err := f.store.Contacts.Upsert(ctx, owner.ID, address)
	require.NoError(f.t, err)
	if verified {
		c, err = f.store.Contacts.MarkVerified(ctx, c.ID, f.now)
		require.NoError(f.t, err)
	}
	return c
}

func (f *alertFixture) start(alertType models.AlertType, recipients ...string) *models.AlertView {
	lat, lng := 51.5, -0.12
	view, err := f.svc.Start(context.Background(), "", &validators.StartAlertRequest{
		Lat:        &lat,
		Lng:        &lng,
		Type:       alertType,
		Recipients: recipients,
	})
	require.NoError(f.t, err)
	return view
}

// contactToken extracts the share token from the invitation sent to address.
func (f *alertFixture) contactToken(address string) string {
	f.mailer.mu.Lock()
	defer f.mailer.mu.Unlock()
	for _, m := range f.mailer.sent {
		if m.To != address {
			continue
		}
		for _, line := range strings.Split(m.TextBody, "\n") {
			if strings.HasPrefix(line, "https://view.test/v/") {
				return strings.TrimPrefix(line, "https://view.test/v/")
			}
		}
	}
	f.t.Fatalf("no invitation sent to %s", address)
	return ""
}

func intPtr(v int) *int { return &v }

func TestStartRejectsUnverifiedRecipientsWithoutSideEffects(t *testing.T) {
	f := newAlertFixture(t)
	f.contact("", "verified@a.com", true)
	f.contact("", "unverified@b.com", false)

	lat, lng := 1.0, 2.0
	_, err := f.svc.Start(context.Background(), "", &validators.StartAlertRequest{
		Lat:        &lat,
		Lng:        &lng,
		Recipients: []string{"Verified@A.com", "unverified@b.com"},
	})

	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.KindValidation))
	assert.Contains(t, err.Error(), "unverified@b.com")
	assert.Contains(t, err.Error(), "verified@a.com")

	// rejected before any write: no alert row, no share token minted or mailed
	assert.Equal(t, 0, f.alerts.creates)
	assert.Empty(t, f.dispatcher.names)
	assert.Empty(t, f.mailer.sent)
}

func TestStartRejectsUnknownAndMalformedRecipients(t *testing.T) {
	f := newAlertFixture(t)

	lat, lng := 1.0, 2.0
	_, err := f.svc.Start(context.Background(), "", &validators.StartAlertRequest{
		Lat:        &lat,
		Lng:        &lng,
		Recipients: []string{"stranger@c.com", "not-an-address"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stranger@c.com")
	assert.Contains(t, err.Error(), "not-an-address")

	_, err = f.svc.Start(context.Background(), "", &validators.StartAlertRequest{Lat: &lat, Lng: &lng})
	assert.True(t, utils.IsKind(err, utils.KindValidation))

	_, err = f.svc.Start(context.Background(), "", &validators.StartAlertRequest{Lng: &lng, Recipients: []string{"x@y.com"}})
	assert.True(t, utils.IsKind(err, utils.KindValidation))
	assert.Equal(t, 0, f.alerts.creates)
}

func TestStartInvitesEachRecipient(t *testing.T) {
	f := newAlertFixture(t)
	mum := f.contact("", "mum@example.com", true)
	f.contact("", "dad@example.com", true)
	f.mailer.fail["dad@example.com"] = true

	view := f.start(models.AlertTypeEmergency, "mum@example.com", "dad@example.com")

	assert.Equal(t, models.AlertStatusActive, view.Status)
	assert.Equal(t, models.DefaultAlertDuration, view.MaxDurationSec)
	require.NotNil(t, view.Latest)
	assert.Equal(t, 51.5, view.Latest.Lat)

	preview, err := f.tokens.ParseShareToken(view.ShareToken)
	require.NoError(t, err)
	assert.Equal(t, view.ID, preview.AlertID)
	assert.False(t, preview.CanReact(), "preview token is not bound to a contact")

	claims, err := f.tokens.ParseShareToken(f.contactToken("mum@example.com"))
	require.NoError(t, err)
	assert.Equal(t, mum.ID, claims.ContactID)
	assert.Equal(t, f.now.Add(24*time.Hour).Unix(), claims.ExpiresAt.Unix())

	recipients, err := f.store.Recipients.ListByAlert(context.Background(), view.ID, models.PurposeStart)
	require.NoError(t, err)
	assert.Len(t, recipients, 2)

	deliveries, err := f.store.Deliveries.ListByAlert(context.Background(), view.ID)
	require.NoError(t, err)
	statuses := map[string]models.DeliveryStatus{}
	for _, d := range deliveries {
		statuses[d.Email] = d.Status
	}
	assert.Equal(t, models.DeliveryStatusSent, statuses["mum@example.com"])
	assert.Equal(t, models.DeliveryStatusFailed, statuses["dad@example.com"], "failure is recorded, not surfaced")
}

func TestStartClampsRequestedDuration(t *testing.T) {
	f := newAlertFixture(t)
	f.contact("", "mum@example.com", true)

	for requested, want := range map[int]int{10: 300, 1800: 1800, 999999: 21600} {
		lat, lng := 1.0, 2.0
		view, err := f.svc.Start(context.Background(), "", &validators.StartAlertRequest{
			Lat:            &lat,
			Lng:            &lng,
			MaxDurationSec: intPtr(requested),
			Recipients:     []string{"mum@example.com"},
		})
		require.NoError(t, err)
		assert.Equal(t, want, view.MaxDurationSec, "requested %d", requested)
	}
}

func TestGoingHomeNeverExposesLocations(t *testing.T) {
	f := newAlertFixture(t)
	f.contact("", "mum@example.com", true)
	view := f.start(models.AlertTypeGoingHome, "mum@example.com")
	assert.Nil(t, view.Latest)

	ctx := context.Background()
	lat, lng := 10.0, 20.0
	result, err := f.svc.Update(ctx, "", view.ID, &validators.UpdateAlertRequest{Lat: &lat, Lng: &lng})
	require.NoError(t, err)
	assert.True(t, result.Ignored)

	stored, err := f.store.Locations.List(ctx, view.ID, 500, models.SortAsc)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "only the start point exists")
	assert.Empty(t, f.publisher.ofType(models.EventLocation))

	token := f.contactToken("mum@example.com")
	public, err := f.svc.PublicAlert(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, public.Latest)

	items, err := f.svc.Locations(ctx, token, &validators.LocationsQuery{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestUpdateAppendsAndPublishes(t *testing.T) {
	f := newAlertFixture(t)
	f.contact("", "mum@example.com", true)
	view := f.start(models.AlertTypeEmergency, "mum@example.com")

	ctx := context.Background()
	f.now = f.now.Add(30 * time.Second)
	lat, lng, battery := 52.0, 1.0, 40
	_, err := f.svc.Update(ctx, "", view.ID, &validators.UpdateAlertRequest{Lat: &lat, Lng: &lng, BatteryPct: &battery})
	require.NoError(t, err)

	events := f.publisher.ofType(models.EventLocation)
	require.Len(t, events, 1)
	assert.Equal(t, 52.0, *events[0].Lat)
	assert.Equal(t, 40, *events[0].BatteryPct)

	public, err := f.svc.PublicAlert(ctx, view.ShareToken)
	require.NoError(t, err)
	require.NotNil(t, public.Latest)
	assert.Equal(t, 52.0, public.Latest.Lat)
	assert.Equal(t, 3600-30, public.RemainingSec)

	desc, err := f.svc.Locations(ctx, view.ShareToken, &validators.LocationsQuery{Order: "desc", Limit: intPtr(1)})
	require.NoError(t, err)
	require.Len(t, desc, 1)
	assert.Equal(t, 52.0, desc[0].Lat)
}

func TestExtend(t *testing.T) {
	f := newAlertFixture(t)
	f.contact("", "mum@example.com", true)
	view := f.start(models.AlertTypeEmergency, "mum@example.com")
	ctx := context.Background()

	result, err := f.svc.Extend(ctx, "", view.ID, &validators.ExtendAlertRequest{ExtendMin: intPtr(10)})
	require.NoError(t, err)
	assert.Equal(t, 4200, result.MaxDurationSec)
	assert.Equal(t, 600, result.AddedSec)

	// a too-small increment is raised to the minimum
	result, err = f.svc.Extend(ctx, "", view.ID, &validators.ExtendAlertRequest{ExtendSec: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, 60, result.AddedSec)

	result, err = f.svc.Extend(ctx, "", view.ID, &validators.ExtendAlertRequest{ExtendSec: intPtr(100000)})
	require.NoError(t, err)
	assert.Equal(t, models.MaxAlertDurationSec, result.MaxDurationSec)

	result, err = f.svc.Extend(ctx, "", view.ID, &validators.ExtendAlertRequest{ExtendSec: intPtr(600)})
	require.NoError(t, err)
	assert.Equal(t, 0, result.AddedSec, "already at the ceiling")

	events := f.publisher.ofType(models.EventExtended)
	require.Len(t, events, 4)
	assert.Equal(t, 600, *events[0].AddedSec)
	assert.Equal(t, 4200, *events[0].MaxDurationSec)

	_, err = f.svc.Extend(ctx, "", "missing", &validators.ExtendAlertRequest{ExtendSec: intPtr(60)})
	assert.True(t, utils.IsKind(err, utils.KindNotFound))

	_, err = f.svc.Extend(ctx, "", view.ID, &validators.ExtendAlertRequest{})
	assert.True(t, utils.IsKind(err, utils.KindValidation))

	_, err = f.svc.Stop(ctx, "", view.ID)
	require.NoError(t, err)
	_, err = f.svc.Extend(ctx, "", view.ID, &validators.ExtendAlertRequest{ExtendSec: intPtr(60)})
	assert.True(t, utils.IsKind(err, utils.KindStateConflict))
}

func TestStopGoingHomeSendsArrivalOnce(t *testing.T) {
	f := newAlertFixture(t)
	f.contact("", "mum@example.com", true)
	f.contact("", "dad@example.com", true)
	view := f.start(models.AlertTypeGoingHome, "mum@example.com", "dad@example.com")
	ctx := context.Background()

	f.now = f.now.Add(20 * time.Minute)
	ended, err := f.svc.Stop(ctx, "", view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusEnded, ended.Status)
	require.NotNil(t, ended.EndedAt)
	assert.Equal(t, f.now, *ended.EndedAt)

	_, err = f.svc.Stop(ctx, "", view.ID)
	require.NoError(t, err)

	deliveries, err := f.store.Deliveries.ListByAlert(ctx, view.ID)
	require.NoError(t, err)
	arrivals := 0
	for _, d := range deliveries {
		if d.Purpose == models.PurposeArrival {
			arrivals++
		}
	}
	assert.Equal(t, 2, arrivals)

	statuses := f.publisher.ofType(models.EventStatus)
	require.Len(t, statuses, 1)
	assert.Equal(t, models.AlertStatusEnded, statuses[0].Status)

	_, err = f.svc.Stop(ctx, "", "missing")
	assert.True(t, utils.IsKind(err, utils.KindNotFound))
}

func TestRevocationOverridesValidTokens(t *testing.T) {
	f := newAlertFixture(t)
	f.contact("", "mum@example.com", true)
	view := f.start(models.AlertTypeEmergency, "mum@example.com")
	ctx := context.Background()
	token := f.contactToken("mum@example.com")

	_, err := f.svc.PublicAlert(ctx, token)
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, "", view.ID))
	revokedAt := f.now
	f.now = f.now.Add(10 * time.Minute)
	require.NoError(t, f.svc.Revoke(ctx, "", view.ID), "revoking twice is fine")

	for _, tok := range []string{token, view.ShareToken} {
		_, err = f.svc.PublicAlert(ctx, tok)
		assert.True(t, utils.IsKind(err, utils.KindUnauthorized))
		_, err = f.svc.Locations(ctx, tok, &validators.LocationsQuery{})
		assert.True(t, utils.IsKind(err, utils.KindUnauthorized))
		_, err = f.svc.Locations(ctx, tok, &validators.LocationsQuery{Limit: intPtr(0)})
		assert.True(t, utils.IsKind(err, utils.KindUnauthorized), "token is checked before the query")
	}

	alert, err := f.store.Alerts.GetByID(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusEnded, alert.Status)
	require.NotNil(t, alert.RevokedAt)
	assert.True(t, revokedAt.Equal(*alert.RevokedAt), "second revoke keeps the first timestamp")
	assert.NotEmpty(t, f.publisher.ofType(models.EventStatus))
}

func TestPublicAlertTokenChecks(t *testing.T) {
	f := newAlertFixture(t)
	f.contact("", "mum@example.com", true)
	view := f.start(models.AlertTypeEmergency, "mum@example.com")
	ctx := context.Background()

	public, err := f.svc.PublicAlert(ctx, f.contactToken("mum@example.com"))
	require.NoError(t, err)
	assert.True(t, public.Permissions.CanReply)

	public, err = f.svc.PublicAlert(ctx, view.ShareToken)
	require.NoError(t, err)
	assert.False(t, public.Permissions.CanReply)

	_, err = f.svc.PublicAlert(ctx, "garbage")
	assert.True(t, utils.IsKind(err, utils.KindUnauthorized))

	orphan, err := f.tokens.MintShareToken("no-such-alert", "", time.Hour)
	require.NoError(t, err)
	_, err = f.svc.PublicAlert(ctx, orphan)
	assert.True(t, utils.IsKind(err, utils.KindNotFound))

	f.now = f.now.Add(25 * time.Hour)
	_, err = f.svc.PublicAlert(ctx, view.ShareToken)
	assert.True(t, utils.IsKind(err, utils.KindUnauthorized), "expired")
}

func TestPublicAlertReportsTimeout(t *testing.T) {
	f := newAlertFixture(t)
	f.contact("", "mum@example.com", true)
	view := f.start(models.AlertTypeEmergency, "mum@example.com")

	f.now = f.now.Add(time.Duration(view.MaxDurationSec) * time.Second)
	public, err := f.svc.PublicAlert(context.Background(), view.ShareToken)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusTimeout, public.Status)
	assert.Equal(t, 0, public.RemainingSec)
}

func TestReactRequiresContactBinding(t *testing.T) {
	f := newAlertFixture(t)
	f.contact("", "mum@example.com", true)
	view := f.start(models.AlertTypeEmergency, "mum@example.com")
	ctx := context.Background()

	err := f.svc.React(ctx, view.ShareToken, &validators.ReactRequest{Preset: "ok"})
	assert.True(t, utils.IsKind(err, utils.KindForbidden))
	assert.Empty(t, f.publisher.ofType(models.EventReaction))

	token := f.contactToken("mum@example.com")
	err = f.svc.React(ctx, token, &validators.ReactRequest{Preset: "has spaces"})
	assert.True(t, utils.IsKind(err, utils.KindValidation))

	require.NoError(t, f.svc.React(ctx, token, &validators.ReactRequest{Preset: "On_My-Way"}))
	reactions := f.publisher.ofType(models.EventReaction)
	require.Len(t, reactions, 1)
	assert.Equal(t, "on_my-way", reactions[0].Preset)
}

func TestSenderMustOwnAlert(t *testing.T) {
	f := newAlertFixture(t)
	f.contact("", "mum@example.com", true)
	view := f.start(models.AlertTypeEmergency, "mum@example.com")
	ctx := context.Background()

	lat, lng := 1.0, 1.0
	_, err := f.svc.Update(ctx, "someone-else", view.ID, &validators.UpdateAlertRequest{Lat: &lat, Lng: &lng})
	assert.True(t, utils.IsKind(err, utils.KindForbidden))
	_, err = f.svc.Stop(ctx, "someone-else", view.ID)
	assert.True(t, utils.IsKind(err, utils.KindForbidden))
	assert.True(t, utils.IsKind(f.svc.Revoke(ctx, "someone-else", view.ID), utils.KindForbidden))
	_, err = f.svc.Diag(ctx, "someone-else", view.ID)
	assert.True(t, utils.IsKind(err, utils.KindForbidden))

	diag, err := f.svc.Diag(ctx, "", view.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, diag.ConnectedCount)
}

func TestFailedStartLocationLeavesAlertManageable(t *testing.T) {
	f := newAlertFixture(t)
	f.contact("", "mum@example.com", true)
	f.store.Locations = failingLocationCreate{LocationRepository: f.store.Locations}
	f.svc.store = f.store

	view := f.start(models.AlertTypeEmergency, "mum@example.com")
	assert.Nil(t, view.Latest)
	assert.NotEmpty(t, view.ShareToken)

	ctx := context.Background()
	_, err := f.svc.Extend(ctx, "", view.ID, &validators.ExtendAlertRequest{ExtendSec: intPtr(60)})
	require.NoError(t, err)
	_, err = f.svc.Stop(ctx, "", view.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Revoke(ctx, "", view.ID))
}

func TestStartDoesNotWaitOnSaturatedDispatcher(t *testing.T) {
	f := newAlertFixture(t)
	f.contact("", "mum@example.com", true)
	f.contact("", "dad@example.com", true)

	pool := worker.NewPool(worker.Config{Workers: 1, QueueSize: 1, TaskTimeout: 5 * time.Second}, logger.Discard())
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit("smtp.hang", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, pool.Submit("smtp.hang", func(ctx context.Context) error {
		<-release
		return nil
	}))
	defer func() {
		close(release)
		_ = pool.Shutdown(context.Background())
	}()
	f.svc.notifier.dispatcher = pool

	begin := time.Now()
	view := f.start(models.AlertTypeEmergency, "mum@example.com", "dad@example.com")
	assert.Less(t, time.Since(begin), 200*time.Millisecond)
	assert.Empty(t, f.mailer.sent)

	deliveries, err := f.store.Deliveries.ListByAlert(context.Background(), view.ID)
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	for _, d := range deliveries {
		assert.Equal(t, models.DeliveryStatusFailed, d.Status)
		assert.Equal(t, worker.ErrQueueFull.Error(), d.Error)
	}
}

func TestRejectedShareTokensAreLogged(t *testing.T) {
	f := newAlertFixture(t)
	f.contact("", "mum@example.com", true)
	view := f.start(models.AlertTypeEmergency, "mum@example.com")
	ctx := context.Background()
	require.NoError(t, f.svc.Revoke(ctx, "", view.ID))

	log, err := logger.NewLogger(&logger.Config{Level: logger.InfoLevel, Format: "json"})
	require.NoError(t, err)
	var buf bytes.Buffer
	log.SetOutput(&buf)
	f.svc.logger = log

	_, err = f.svc.PublicAlert(ctx, "garbage")
	require.Error(t, err)
	_, err = f.svc.PublicAlert(ctx, view.ShareToken)
	require.Error(t, err)

	var events []map[string]interface{}
	decoder := json.NewDecoder(&buf)
	for decoder.More() {
		var entry map[string]interface{}
		require.NoError(t, decoder.Decode(&entry))
		events = append(events, entry)
	}
	require.Len(t, events, 2)
	assert.Equal(t, "share_token_rejected", events[0]["security_event"])
	assert.Equal(t, "info", events[0]["level"])
	assert.Equal(t, "revoked_token_presented", events[1]["security_event"])
	assert.Equal(t, "warning", events[1]["level"])
	assert.Equal(t, view.ID, events[1]["alert_id"])
	assert.NotContains(t, buf.String(), view.ShareToken)
}
