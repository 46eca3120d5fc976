package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"provenance-relay/internal/models"
	"provenance-relay/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes relay notifications
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishTopicCreated publishes TopicCreated notification
func (ep *EventPublisher) PublishTopicCreated(ctx context.Context, event *models.TopicCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, event.TopicID, event)
}

// PublishEventSubmitted publishes EventSubmitted notification
func (ep *EventPublisher) PublishEventSubmitted(ctx context.Context, event *models.EventSubmittedEvent) error {
	return ep.producer.PublishEvent(ctx, event.TopicID, event)
}

// EventHandler routes incoming notifications
type EventHandler struct {
	onTopicCreated   func(context.Context, *models.TopicCreatedEvent) error
	onEventSubmitted func(context.Context, *models.EventSubmittedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnTopicCreated registers a handler for TopicCreated notifications
func (eh *EventHandler) OnTopicCreated(handler func(context.Context, *models.TopicCreatedEvent) error) {
	eh.onTopicCreated = handler
}

// OnEventSubmitted registers a handler for EventSubmitted notifications
func (eh *EventHandler) OnEventSubmitted(handler func(context.Context, *models.EventSubmittedEvent) error) {
	eh.onEventSubmitted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling notification",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.NotificationTopicCreated:
		if eh.onTopicCreated != nil {
			var event models.TopicCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TopicCreated event: %w", err)
			}
			return eh.onTopicCreated(ctx, &event)
		}

	case models.NotificationEventSubmitted:
		if eh.onEventSubmitted != nil {
			var event models.EventSubmittedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal EventSubmitted event: %w", err)
			}
			return eh.onEventSubmitted(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled notification type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
