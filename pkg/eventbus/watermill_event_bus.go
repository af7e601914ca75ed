package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bryan-essi/mobiq/pkg/events"
)

// subscriberBuffer bounds the per-subscriber output channel. A subscriber
// that falls further behind than this loses events instead of blocking the
// engine.
const subscriberBuffer = 256

type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:  pub,
		subscriber: sub,
		logger:     logger.With("module", "eventbus"),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(_ context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.GetType(), err)
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventKeyMetadataKey, event.Key())
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context, filter Filter) (<-chan events.Event, error) {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", events.Topic, err)
	}

	out := make(chan events.Event, subscriberBuffer)

	go func() {
		defer close(out)

		for msg := range messages {
			event, err := decodeEvent(msg)
			if err != nil {
				eb.logger.Warn("Dropping undecodable event", "error", err)
				msg.Ack()

				continue
			}

			if !filter.Matches(event) {
				msg.Ack()

				continue
			}

			select {
			case out <- event:
			default:
				// Slow subscriber: drop rather than stall the bus.
				eb.logger.Warn("Subscriber buffer full, dropping event",
					"event_type", event.GetType(), "key", event.Key())
			}

			msg.Ack()
		}
	}()

	return out, nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}

func decodeEvent(msg *message.Message) (events.Event, error) {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	var event events.Event

	switch eventType {
	case events.ExecutionStartedEvent:
		event = &events.ExecutionStarted{}
	case events.ExecutionProgressEvent:
		event = &events.ExecutionProgress{}
	case events.ExecutionFinishedEvent:
		event = &events.ExecutionFinished{}
	case events.StepStartedEvent:
		event = &events.StepStarted{}
	case events.StepFinishedEvent:
		event = &events.StepFinished{}
	case events.DeviceFlowFinishedEvent:
		event = &events.DeviceFlowFinished{}
	case events.DeviceConnectedEvent:
		event = &events.DeviceConnected{}
	case events.DeviceDisconnectedEvent:
		event = &events.DeviceDisconnected{}
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	err := json.Unmarshal(msg.Payload, event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", eventType, err)
	}

	return event, nil
}
