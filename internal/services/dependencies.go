package services

import (
	"context"
	"errors"

	"safecircle/internal/models"
	"safecircle/internal/repositories/interfaces"
	"safecircle/internal/utils"
	"safecircle/pkg/websocket"
)

// Publisher fans an event out to the alert's live viewers. It never blocks
// on store I/O.
type Publisher interface {
	Publish(alertID string, message []byte)
	Diag(alertID string) websocket.Diagnostics
}

// Dispatcher runs side effects off the request path.
type Dispatcher interface {
	Submit(name string, run func(ctx context.Context) error) error
}

// Recorder receives lifecycle counters. Nil disables reporting.
type Recorder interface {
	AlertStarted(alertType string)
	AlertTransition(operation string)
	EmailDelivery(purpose, status string)
	ReactionRecorded()
}

type nopRecorder struct{}

func (nopRecorder) AlertStarted(string)          {}
func (nopRecorder) AlertTransition(string)       {}
func (nopRecorder) EmailDelivery(string, string) {}
func (nopRecorder) ReactionRecorded()            {}

// resolveSender returns the owning user for subject. An empty subject is an
// anonymous session and maps to the shared default user.
func resolveSender(ctx context.Context, users interfaces.UserRepository, subject string) (*models.User, error) {
	if subject == "" {
		subject = models.DefaultSubject
	}
	user, err := users.GetOrCreateBySubject(ctx, subject)
	if err != nil {
		return nil, utils.NewDependencyError("resolve sender", err)
	}
	return user, nil
}

func storeError(op string, err error, notFound string) error {
	if errors.Is(err, interfaces.ErrNotFound) {
		return utils.NewNotFoundError(notFound)
	}
	return utils.NewDependencyError(op, err)
}
