package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"safecircle/internal/models"
	"safecircle/internal/repositories/interfaces"
	"safecircle/pkg/email"
	"safecircle/pkg/logger"
)

// notifier sends outbound mail on the dispatcher and records one delivery
// row per attempt. Failures never reach the caller.
type notifier struct {
	dispatcher Dispatcher
	mailer     email.Sender
	deliveries interfaces.DeliveryRepository
	recorder   Recorder
	logger     *logger.Logger
	now        func() time.Time
}

type notice struct {
	alertID   string
	contactID string
	purpose   models.DeliveryPurpose
	message   *email.Message
}

// dispatch queues one task per notice and returns without waiting. A notice
// the dispatcher rejects is recorded as a failed delivery straight away.
func (n *notifier) dispatch(ctx context.Context, notices []notice) {
	for _, item := range notices {
		item := item
		err := n.dispatcher.Submit("email."+string(item.purpose), func(ctx context.Context) error {
			return n.deliver(ctx, item)
		})
		if err != nil {
			n.logger.WithError(err).WithFields(map[string]interface{}{
				"alert_id": item.alertID,
				"purpose":  item.purpose,
			}).Warn("Email dispatch rejected")
			n.record(ctx, item, err)
		}
	}
}

func (n *notifier) deliver(ctx context.Context, item notice) error {
	sendErr := n.mailer.SendEmail(ctx, item.message)
	n.record(ctx, item, sendErr)
	return sendErr
}

func (n *notifier) record(ctx context.Context, item notice, sendErr error) {
	delivery := &models.Delivery{
		ID:        uuid.NewString(),
		AlertID:   item.alertID,
		ContactID: item.contactID,
		Email:     item.message.To,
		Purpose:   item.purpose,
		Status:    models.DeliveryStatusSent,
		CreatedAt: n.now().UTC(),
	}
	if sendErr != nil {
		delivery.Status = models.DeliveryStatusFailed
		delivery.Error = sendErr.Error()
	}
	n.recorder.EmailDelivery(string(item.purpose), string(delivery.Status))

	if err := n.deliveries.Create(ctx, delivery); err != nil {
		n.logger.WithError(err).WithAlertID(item.alertID).Error("Failed to record delivery")
	}
}
