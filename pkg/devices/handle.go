// Package devices tracks connected device identity and state and gates all
// exclusive access to each device.
package devices

import (
	"fmt"
	"sync"
	"time"

	"github.com/bryan-essi/mobiq/pkg/models"
)

// NotHolderError is returned by Release when the caller does not hold the
// claim. It indicates a coordination bug in the caller and is logged, never
// fatal.
type NotHolderError struct {
	DeviceID string
	CallerID string
	HolderID string
}

func (e *NotHolderError) Error() string {
	if e.HolderID == "" {
		return fmt.Sprintf("release of device %s by %s: device is not held", e.DeviceID, e.CallerID)
	}

	return fmt.Sprintf("release of device %s by %s: held by %s", e.DeviceID, e.CallerID, e.HolderID)
}

// Handle is the exclusive-access gate and status holder for exactly one
// device. All busy/free mutation of the device goes through the handle; the
// mutex is per device so unrelated devices never serialize on each other.
type Handle struct {
	mu       sync.Mutex
	device   models.Device
	holderID string
}

func NewHandle(deviceID string, lastSeen time.Time) *Handle {
	return &Handle{
		device: models.Device{
			ID:       deviceID,
			Status:   models.DeviceStatusConnected,
			LastSeen: lastSeen,
		},
	}
}

// TryAcquire claims the device for the given execution device. It never
// blocks: it succeeds iff the device is connected and either free or already
// held by the same caller (re-entrant for one holder, so the coordinator can
// reserve at admission and the flow engine re-acquire the same claim).
func (h *Handle) TryAcquire(executionDeviceID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.holderID == executionDeviceID && h.holderID != "" {
		return true
	}

	if h.holderID != "" || h.device.Status != models.DeviceStatusConnected {
		return false
	}

	h.holderID = executionDeviceID
	h.device.Status = models.DeviceStatusBusy

	return true
}

// Release frees the claim. The device reverts to connected unless it
// vanished while held, in which case it stays disconnected.
func (h *Handle) Release(executionDeviceID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.holderID != executionDeviceID {
		return &NotHolderError{
			DeviceID: h.device.ID,
			CallerID: executionDeviceID,
			HolderID: h.holderID,
		}
	}

	h.holderID = ""

	if h.device.Status == models.DeviceStatusBusy {
		h.device.Status = models.DeviceStatusConnected
	}

	return nil
}

// MarkDisconnected forcibly clears any holder and marks the device gone.
// In-flight module runs observe this on their next interaction and fail the
// current step as DEVICE_LOST.
func (h *Handle) MarkDisconnected() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.holderID = ""
	h.device.Status = models.DeviceStatusDisconnected
}

// markSeen refreshes the device from a discovery poll. It revives a
// disconnected device but never clears a live claim.
func (h *Handle) markSeen(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.device.LastSeen = now

	if h.device.Status == models.DeviceStatusDisconnected || h.device.Status == models.DeviceStatusError {
		h.device.Status = models.DeviceStatusConnected
	}
}

// Connected reports whether the device is still reported by the bridge.
func (h *Handle) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.device.Status != models.DeviceStatusDisconnected
}

// Snapshot returns a copy of the current device state.
func (h *Handle) Snapshot() models.Device {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.device
}

func (h *Handle) lastSeen() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.device.LastSeen
}
