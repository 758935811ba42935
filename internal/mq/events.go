package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/result-system/apiserver/types"
)

// Event types published on the user events channel.
const (
	EventUserRegistered = "user.registered"
	EventUserDeleted    = "user.deleted"
)

const attrEventType = "event-type"

// UserEvent is the payload of a user lifecycle event.
type UserEvent struct {
	Type       string     `json:"type"`
	UserID     string     `json:"userId"`
	Username   string     `json:"username,omitempty"`
	Role       types.Role `json:"role,omitempty"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// UserEvents publishes user lifecycle events. Publishing is best effort:
// failures are logged and never returned to the caller.
type UserEvents struct {
	mq    *MQ
	topic string
	log   *zap.Logger
	now   func() time.Time
}

func NewUserEvents(mq *MQ, topic string, log *zap.Logger) *UserEvents {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserEvents{mq: mq, topic: topic, log: log, now: time.Now}
}

func (e *UserEvents) UserRegistered(ctx context.Context, user types.User) {
	e.publish(ctx, UserEvent{
		Type:     EventUserRegistered,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
}

func (e *UserEvents) UserDeleted(ctx context.Context, userID string) {
	e.publish(ctx, UserEvent{Type: EventUserDeleted, UserID: userID})
}

// Consume decodes user events from the topic and passes them to fn until ctx
// is done.
func (e *UserEvents) Consume(ctx context.Context, fn func(context.Context, UserEvent) error) error {
	return e.mq.Subscribe(ctx, e.topic, func(ctx context.Context, msg Message) error {
		var event UserEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			// malformed payloads are acked so they are not redelivered forever
			e.log.Warn("dropping malformed user event", zap.String("message_id", msg.ID), zap.Error(err))
			return nil
		}
		return fn(ctx, event)
	})
}

func (e *UserEvents) publish(ctx context.Context, event UserEvent) {
	event.OccurredAt = e.now().UTC()
	id, err := e.mq.PublishJSON(ctx, e.topic, event, map[string]string{attrEventType: event.Type})
	if err != nil {
		e.log.Warn("publish user event",
			zap.String("type", event.Type),
			zap.String("user_id", event.UserID),
			zap.Error(fmt.Errorf("%s: %w", e.topic, err)),
		)
		return
	}
	e.log.Debug("published user event",
		zap.String("type", event.Type),
		zap.String("user_id", event.UserID),
		zap.String("message_id", id),
	)
}
