package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safecircle/internal/models"
	"safecircle/internal/repositories/memory"
	"safecircle/internal/utils"
	"safecircle/internal/validators"
	"safecircle/pkg/logger"
)

func newContactService(t *testing.T, now *time.Time) (*contactService, *fakeMailer, *utils.TokenAuthority) {
	t.Helper()
	clock := func() time.Time { return *now }
	tokens := utils.NewTokenAuthority("test-secret").WithClock(clock)
	mailer := &fakeMailer{fail: map[string]bool{}}
	svc := NewContactService(testConfig(), memory.NewStore(), tokens, &inlineDispatcher{}, mailer, nil, logger.Discard()).(*contactService)
	svc.now = clock
	return svc, mailer, tokens
}

func verificationToken(t *testing.T, mailer *fakeMailer) string {
	t.Helper()
	require.NotEmpty(t, mailer.sent)
	body := mailer.sent[len(mailer.sent)-1].TextBody
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "https://api.test/contacts/verify/") {
			return strings.TrimPrefix(line, "https://api.test/contacts/verify/")
		}
	}
	t.Fatal("no verification link in message")
	return ""
}

func TestAddContactSendsVerification(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, mailer, _ := newContactService(t, &now)
	ctx := context.Background()

	contact, err := svc.Add(ctx, "", &validators.ContactRequest{Email: " Mum@Example.com "})
	require.NoError(t, err)
	assert.Equal(t, "mum@example.com", contact.Email)
	assert.False(t, contact.IsVerified())
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "mum@example.com", mailer.sent[0].To)

	again, err := svc.Add(ctx, "", &validators.ContactRequest{Email: "mum@example.com"})
	require.NoError(t, err)
	assert.Equal(t, contact.ID, again.ID, "upsert keeps one row per address")

	_, err = svc.Add(ctx, "", &validators.ContactRequest{Email: "nope"})
	assert.True(t, utils.IsKind(err, utils.KindValidation))
}

func TestVerifyContact(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, mailer, tokens := newContactService(t, &now)
	ctx := context.Background()

	contact, err := svc.Add(ctx, "", &validators.ContactRequest{Email: "mum@example.com"})
	require.NoError(t, err)
	token := verificationToken(t, mailer)

	verified, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, contact.ID, verified.ID)
	require.NotNil(t, verified.VerifiedAt)
	first := *verified.VerifiedAt

	now = now.Add(time.Hour)
	verified, err = svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, first, *verified.VerifiedAt)

	// verified contacts get no further mail
	sent := len(mailer.sent)
	_, err = svc.Add(ctx, "", &validators.ContactRequest{Email: "mum@example.com"})
	require.NoError(t, err)
	assert.Len(t, mailer.sent, sent)

	share, err := tokens.MintShareToken("alert-1", contact.ID, time.Hour)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, share)
	assert.True(t, utils.IsKind(err, utils.KindUnauthorized), "share tokens cannot verify")

	now = now.Add(73 * time.Hour)
	_, err = svc.Verify(ctx, token)
	assert.True(t, utils.IsKind(err, utils.KindUnauthorized), "expired")

	orphan, err := tokens.MintVerifyToken("missing", time.Hour)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, orphan)
	assert.True(t, utils.IsKind(err, utils.KindNotFound))
}

func TestListContactsIsScopedToSender(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _ := newContactService(t, &now)
	ctx := context.Background()

	_, err := svc.Add(ctx, "alice", &validators.ContactRequest{Email: "a@example.com"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, "bob", &validators.ContactRequest{Email: "b@example.com"})
	require.NoError(t, err)

	contacts, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "a@example.com", contacts[0].Email)

	deliveries, err := svc.store.Deliveries.ListByAlert(ctx, "")
	require.NoError(t, err)
	assert.Len(t, deliveries, 2)
	assert.Equal(t, models.PurposeVerify, deliveries[0].Purpose)
}
