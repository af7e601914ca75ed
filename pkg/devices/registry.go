package devices

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bryan-essi/mobiq/pkg/eventbus"
	"github.com/bryan-essi/mobiq/pkg/events"
	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/protocol"
)

// Registry owns the live set of device handles. Its mutex guards only the
// map; per-device state is guarded by each handle.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle

	bridge    protocol.Bridge
	publisher eventbus.EventPublisher
	logger    *slog.Logger

	pollInterval time.Duration
	gracePeriod  time.Duration
}

type RegistryOption func(*Registry)

// WithPollInterval sets how often the bridge is polled for connected
// devices.
func WithPollInterval(interval time.Duration) RegistryOption {
	return func(r *Registry) {
		r.pollInterval = interval
	}
}

// WithGracePeriod sets how long an absent device is kept (as disconnected)
// before removal from the live set.
func WithGracePeriod(grace time.Duration) RegistryOption {
	return func(r *Registry) {
		r.gracePeriod = grace
	}
}

func NewRegistry(bridge protocol.Bridge, publisher eventbus.EventPublisher, logger *slog.Logger, opts ...RegistryOption) *Registry {
	registry := &Registry{
		handles:      make(map[string]*Handle),
		bridge:       bridge,
		publisher:    publisher,
		logger:       logger.With("module", "devices"),
		pollInterval: 2 * time.Second,
		gracePeriod:  6 * time.Second,
	}

	for _, opt := range opts {
		opt(registry)
	}

	return registry
}

// Handle returns the gate for the given device id.
func (r *Registry) Handle(deviceID string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handle, ok := r.handles[deviceID]

	return handle, ok
}

// ListDevices returns a snapshot of every known device.
func (r *Registry) ListDevices() []models.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.Device, 0, len(r.handles))
	for _, handle := range r.handles {
		list = append(list, handle.Snapshot())
	}

	return list
}

// Run polls the bridge until ctx is cancelled. Each poll refreshes known
// devices, registers new ones, disconnects absent ones, and drops devices
// absent longer than the grace period.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

// Refresh performs one discovery poll against the bridge.
func (r *Registry) Refresh(ctx context.Context) {
	ids, err := r.bridge.ListConnectedDeviceIDs(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Device discovery poll failed", "error", err)

		return
	}

	now := time.Now().UTC()
	reported := make(map[string]bool, len(ids))

	for _, id := range ids {
		reported[id] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		handle, known := r.handles[id]
		if !known {
			r.handles[id] = NewHandle(id, now)
			r.logger.InfoContext(ctx, "Device connected", "device_id", id)
			r.publish(ctx, events.DeviceConnected{
				BaseEvent: events.NewBaseEvent(events.DeviceConnectedEvent, "", id),
			})

			continue
		}

		wasDisconnected := !handle.Connected()
		handle.markSeen(now)

		if wasDisconnected {
			r.logger.InfoContext(ctx, "Device reconnected", "device_id", id)
			r.publish(ctx, events.DeviceConnected{
				BaseEvent: events.NewBaseEvent(events.DeviceConnectedEvent, "", id),
			})
		}
	}

	for id, handle := range r.handles {
		if reported[id] {
			continue
		}

		if handle.Connected() {
			handle.MarkDisconnected()
			r.logger.WarnContext(ctx, "Device disconnected", "device_id", id)
			r.publish(ctx, events.DeviceDisconnected{
				BaseEvent: events.NewBaseEvent(events.DeviceDisconnectedEvent, "", id),
			})

			continue
		}

		if now.Sub(handle.lastSeen()) > r.gracePeriod {
			delete(r.handles, id)
			r.logger.InfoContext(ctx, "Device removed after grace period", "device_id", id)
		}
	}
}

func (r *Registry) publish(ctx context.Context, event events.Event) {
	if r.publisher == nil {
		return
	}

	err := r.publisher.Publish(ctx, event)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to publish device event", "error", err)
	}
}
