package event

import (
	"context"
	"log/slog"

	"github.com/authgate/auth-service/pkg/kafka"
	"github.com/authgate/auth-service/pkg/logger"
)

// Kafka topics for auth lifecycle events.
const (
	TopicUserRegistered = "auth.user.registered"
	TopicUserLoggedIn   = "auth.user.logged_in"
	TopicUserLoggedOut  = "auth.user.logged_out"
)

const source = "auth-service"

// Publisher emits auth lifecycle events to Kafka. Publishing is best effort:
// a broker failure is logged and swallowed so it never fails the request
// that triggered it.
type Publisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewPublisher creates an event publisher on top of a Kafka producer.
func NewPublisher(producer *kafka.Producer, logger *slog.Logger) *Publisher {
	return &Publisher{producer: producer, logger: logger}
}

type userEventPayload struct {
	Username string `json:"username"`
}

// UserRegistered emits an event for a newly created account.
func (p *Publisher) UserRegistered(ctx context.Context, username string) {
	p.publish(ctx, TopicUserRegistered, "user.registered", username)
}

// UserLoggedIn emits an event for a successful login.
func (p *Publisher) UserLoggedIn(ctx context.Context, username string) {
	p.publish(ctx, TopicUserLoggedIn, "user.logged_in", username)
}

// UserLoggedOut emits an event for a logout.
func (p *Publisher) UserLoggedOut(ctx context.Context, username string) {
	p.publish(ctx, TopicUserLoggedOut, "user.logged_out", username)
}

func (p *Publisher) publish(ctx context.Context, topic, eventType, username string) {
	evt, err := kafka.NewEvent(eventType, username, "user", source, userEventPayload{Username: username})
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}

	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		evt.WithCorrelationID(cid)
	}

	if err := p.producer.Publish(ctx, topic, evt); err != nil {
		p.logger.WarnContext(ctx, "event publish failed, continuing",
			slog.String("topic", topic),
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}
