// Package models defines the core domain models for multi-device test execution.
package models

import "time"

// DeviceStatus represents the live state of a connected device.
type DeviceStatus string

const (
	DeviceStatusConnected    DeviceStatus = "connected"    // Reported by the bridge, free to claim
	DeviceStatusBusy         DeviceStatus = "busy"         // Claimed by exactly one execution device
	DeviceStatusDisconnected DeviceStatus = "disconnected" // Stopped reporting, pending removal
	DeviceStatusError        DeviceStatus = "error"
)

// Device is the in-memory view of one physically attached target. The id is
// the stable serial assigned by the bridge.
type Device struct {
	ID       string       `json:"id"`
	Status   DeviceStatus `json:"status"`
	LastSeen time.Time    `json:"last_seen"`
}

// Claimable reports whether the device can be acquired by an execution.
func (d *Device) Claimable() bool {
	return d.Status == DeviceStatusConnected
}
