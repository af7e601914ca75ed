package eventbus

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/bryan-essi/mobiq/pkg/channels/gochannel"
	"github.com/bryan-essi/mobiq/pkg/events"
	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *WatermillEventBus {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub, logger)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func collect(t *testing.T, stream <-chan events.Event, n int) []events.Event {
	t.Helper()

	collected := make([]events.Event, 0, n)

	for len(collected) < n {
		select {
		case event, ok := <-stream:
			if !ok {
				t.Fatalf("stream closed after %d of %d events", len(collected), n)
			}

			collected = append(collected, event)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d events", len(collected), n)
		}
	}

	return collected
}

func TestPublishSubscribe_RoundTrip(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := bus.Subscribe(ctx, Filter{})
	require.NoError(t, err)

	published := events.StepFinished{
		BaseEvent: events.NewBaseEvent(events.StepFinishedEvent, "exec-1", "d1"),
		StepIndex: 3,
		ModuleID:  "shell",
		Status:    models.StepStatusCompleted,
	}
	require.NoError(t, bus.Publish(ctx, published))

	got := collect(t, stream, 1)

	received, ok := got[0].(*events.StepFinished)
	require.True(t, ok, "expected *events.StepFinished, got %T", got[0])
	assert.Equal(t, 3, received.StepIndex)
	assert.Equal(t, "shell", received.ModuleID)
	assert.Equal(t, models.StepStatusCompleted, received.Status)
	assert.Equal(t, "exec-1/d1", received.Key())
}

func TestSubscribe_OrderingPerDevice(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := bus.Subscribe(ctx, Filter{ExecutionID: "exec-1", DeviceID: "d1"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		event := events.StepFinished{
			BaseEvent: events.NewBaseEvent(events.StepFinishedEvent, "exec-1", "d1"),
			StepIndex: i,
		}
		require.NoError(t, bus.Publish(ctx, event))
	}

	got := collect(t, stream, 5)
	for i, event := range got {
		step := event.(*events.StepFinished)
		assert.Equal(t, i, step.StepIndex, "events for one device must arrive in publish order")
	}
}

func TestSubscribe_FilterByExecution(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := bus.Subscribe(ctx, Filter{ExecutionID: "exec-a"})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, events.StepStarted{
		BaseEvent: events.NewBaseEvent(events.StepStartedEvent, "exec-b", "d1"),
	}))
	require.NoError(t, bus.Publish(ctx, events.StepStarted{
		BaseEvent: events.NewBaseEvent(events.StepStartedEvent, "exec-a", "d1"),
	}))

	got := collect(t, stream, 1)
	assert.Equal(t, "exec-a/d1", got[0].Key())

	select {
	case extra := <-stream:
		t.Fatalf("unexpected extra event: %v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribe_FilterByType(t *testing.T) {
	filter := Filter{Types: []events.EventType{events.ExecutionFinishedEvent}}

	finished := events.ExecutionFinished{
		BaseEvent: events.NewBaseEvent(events.ExecutionFinishedEvent, "exec-1", ""),
	}
	started := events.ExecutionStarted{
		BaseEvent: events.NewBaseEvent(events.ExecutionStartedEvent, "exec-1", ""),
	}

	assert.True(t, filter.Matches(finished))
	assert.False(t, filter.Matches(started))
}

func TestUnsubscribe_ViaContextCancel(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())

	stream, err := bus.Subscribe(ctx, Filter{})
	require.NoError(t, err)

	cancel()

	// Publishing after unsubscribe must not block or fail.
	require.NoError(t, bus.Publish(context.Background(), events.ExecutionProgress{
		BaseEvent: events.NewBaseEvent(events.ExecutionProgressEvent, "exec-1", ""),
	}))

	select {
	case _, ok := <-stream:
		if ok {
			// A buffered event may still be delivered; the channel must
			// close shortly after.
			select {
			case _, stillOpen := <-stream:
				assert.False(t, stillOpen)
			case <-time.After(2 * time.Second):
				t.Fatal("stream not closed after context cancel")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed after context cancel")
	}
}
