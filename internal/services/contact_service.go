package services

import (
	"context"
	"time"

	"safecircle/internal/config"
	"safecircle/internal/models"
	"safecircle/internal/repositories/interfaces"
	"safecircle/internal/utils"
	"safecircle/internal/validators"
	"safecircle/pkg/email"
	"safecircle/pkg/logger"
)

type ContactService interface {
	// Add upserts a contact for the sender and, while it is unverified,
	// mails a fresh verification link.
	Add(ctx context.Context, subject string, request *validators.ContactRequest) (*models.Contact, error)
	List(ctx context.Context, subject string) ([]*models.Contact, error)
	// Verify consumes a verification token. Verifying twice keeps the
	// first timestamp.
	Verify(ctx context.Context, token string) (*models.Contact, error)
}

type contactService struct {
	store     *interfaces.Store
	tokens    *utils.TokenAuthority
	notifier  *notifier
	verifyTTL time.Duration
	baseURL   string
	logger    *logger.Logger
	now       func() time.Time
}

func NewContactService(
	cfg *config.Config,
	store *interfaces.Store,
	tokens *utils.TokenAuthority,
	dispatcher Dispatcher,
	mailer email.Sender,
	recorder Recorder,
	log *logger.Logger,
) ContactService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	verifyTTL := cfg.Security.VerifyTokenTTL
	if verifyTTL <= 0 {
		verifyTTL = utils.VerifyTokenTTL
	}

	s := &contactService{
		store:     store,
		tokens:    tokens,
		verifyTTL: verifyTTL,
		baseURL:   cfg.App.BaseURL,
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

func (s *contactService) Add(ctx context.Context, subject string, request *validators.ContactRequest) (*models.Contact, error) {
	if err := validators.ValidateContact(request); err != nil {
		return nil, err
	}

	owner, err := resolveSender(ctx, s.store.Users, subject)
	if err != nil {
		return nil, err
	}

	contact, err := s.store.Contacts.Upsert(ctx, owner.ID, utils.NormalizeEmail(request.Email))
	if err != nil {
		return nil, utils.NewDependencyError("save contact", err)
	}
	if contact.IsVerified() {
		return contact, nil
	}

	token, err := s.tokens.MintVerifyToken(contact.ID, s.verifyTTL)
	if err != nil {
		return nil, utils.NewDependencyError("mint verification token", err)
	}
	s.notifier.dispatch(ctx, []notice{{
		contactID: contact.ID,
		purpose:   models.PurposeVerify,
		message:   email.VerificationMessage(contact.Email, utils.CreateContactVerificationLink(s.baseURL, token)),
	}})

	s.logger.WithContext(ctx).WithField("contact", utils.MaskEmail(contact.Email)).Info("Contact verification sent")
	return contact, nil
}

func (s *contactService) List(ctx context.Context, subject string) ([]*models.Contact, error) {
	owner, err := resolveSender(ctx, s.store.Users, subject)
	if err != nil {
		return nil, err
	}
	contacts, err := s.store.Contacts.ListByOwner(ctx, owner.ID)
	if err != nil {
		return nil, utils.NewDependencyError("list contacts", err)
	}
	return contacts, nil
}

func (s *contactService) Verify(ctx context.Context, token string) (*models.Contact, error) {
	contactID, err := s.tokens.ParseVerifyToken(token)
	if err != nil {
		return nil, utils.NewUnauthorizedError(utils.ErrInvalidToken)
	}
	contact, err := s.store.Contacts.MarkVerified(ctx, contactID, s.now().UTC())
	if err != nil {
		return nil, storeError("verify contact", err, utils.ErrContactNotFound)
	}
	return contact, nil
}
