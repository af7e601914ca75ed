// Package eventbus provides the pub/sub layer that streams execution
// progress to any number of live observers.
package eventbus

import (
	"context"

	"github.com/bryan-essi/mobiq/pkg/events"
)

// Filter selects the events a subscriber wants. Zero-value fields match
// everything.
type Filter struct {
	ExecutionID string
	DeviceID    string
	Types       []events.EventType
}

// Matches reports whether the event passes the filter.
func (f Filter) Matches(event events.Event) bool {
	if len(f.Types) > 0 {
		found := false

		for _, t := range f.Types {
			if t == event.GetType() {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	if f.ExecutionID == "" && f.DeviceID == "" {
		return true
	}

	return matchKey(event.Key(), f.ExecutionID, f.DeviceID)
}

func matchKey(key, executionID, deviceID string) bool {
	// Key format is "<execution_id>/<device_id>".
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			gotExecution, gotDevice := key[:i], key[i+1:]

			if executionID != "" && executionID != gotExecution {
				return false
			}

			if deviceID != "" && deviceID != gotDevice {
				return false
			}

			return true
		}
	}

	return false
}

type EventPublisher interface {
	// Publish is fire-and-forget: it never blocks on slow subscribers and a
	// failed delivery never fails the producer.
	Publish(ctx context.Context, event events.Event) error
}

type EventSubscriber interface {
	// Subscribe returns a stream of matching events. The stream is closed
	// when ctx is cancelled; cancelling is the only way to unsubscribe and
	// is safe concurrently with in-flight publishes. A subscriber that stops
	// draining loses events rather than stalling producers.
	Subscribe(ctx context.Context, filter Filter) (<-chan events.Event, error)
}

type EventBus interface {
	EventPublisher
	EventSubscriber

	GenerateID() string
	Close() error
}
