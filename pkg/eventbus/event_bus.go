// Package eventbus provides publish/subscribe for lifecycle events on
// top of watermill.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/agentmatrix/matrix/pkg/events"
)

// Event is anything with a lifecycle event type.
type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

type EventHandler func(ctx context.Context, event any) error

type EventSubscriber interface {
	Subscribe(ctx context.Context, handler EventHandler) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// WatermillEventBus publishes every event on events.Topic, tagging the
// message with the event type so subscribers can decode it.
type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:  pub,
		subscriber: sub,
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

// Subscribe consumes events.Topic and invokes handler with the decoded
// event. Messages with unknown event types are nacked.
func (eb *WatermillEventBus) Subscribe(ctx context.Context, handler EventHandler) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.Topic, err)
	}

	go func() {
		for msg := range messages {
			event := newEvent(events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey)))
			if event == nil {
				msg.Nack()

				continue
			}

			if err := json.Unmarshal(msg.Payload, event); err != nil {
				msg.Nack()

				continue
			}

			if err := handler(ctx, event); err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return fmt.Errorf("failed to close publisher: %w", err)
	}

	return eb.subscriber.Close()
}

// newEvent returns a zero value of the concrete event for the type, or
// nil when the type is unknown.
func newEvent(eventType events.EventType) any {
	switch eventType {
	case events.RunStartRequestedEvent:
		return &events.RunStartRequested{}
	case events.RunStartedEvent:
		return &events.RunStarted{}
	case events.RunPausedEvent:
		return &events.RunPaused{}
	case events.RunResumedEvent:
		return &events.RunResumed{}
	case events.RunCancelledEvent:
		return &events.RunCancelled{}
	case events.RunFinishedEvent:
		return &events.RunFinished{}
	case events.RunWorkflowCompletedEvent:
		return &events.RunWorkflowCompleted{}
	case events.RunWorkflowFailedEvent:
		return &events.RunWorkflowFailed{}
	case events.GateApprovedEvent:
		return &events.GateApproved{}
	case events.GateRejectedEvent:
		return &events.GateRejected{}
	case events.InterventionCreatedEvent:
		return &events.InterventionCreated{}
	default:
		return nil
	}
}
