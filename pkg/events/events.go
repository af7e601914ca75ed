// Package events defines the typed progress and lifecycle events published
// by the execution engine.
package events

import (
	"time"

	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic is the single pub/sub topic all engine events are published to.
const Topic = "mobiq.executions"

const EventKeyMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionStartedEvent  EventType = "execution.started"
	ExecutionProgressEvent EventType = "execution.progress"
	ExecutionFinishedEvent EventType = "execution.finished"

	// Per-device events.
	StepStartedEvent        EventType = "execution.step.started"
	StepFinishedEvent       EventType = "execution.step.finished"
	DeviceFlowFinishedEvent EventType = "execution.device.finished"

	// Device registry events.
	DeviceConnectedEvent    EventType = "device.connected"
	DeviceDisconnectedEvent EventType = "device.disconnected"
)

// Event is implemented by every published event.
type Event interface {
	GetType() EventType
	Key() string
}

// BaseEvent carries the fields shared by all engine events. DeviceID is
// empty for execution-level and registry-level events.
type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	ExecutionID string    `json:"execution_id,omitempty"`
	DeviceID    string    `json:"device_id,omitempty"`
}

func (b BaseEvent) GetType() EventType {
	return b.Type
}

// Key identifies the (execution, device) pair; events sharing a key are
// delivered to each subscriber in publish order.
func (b BaseEvent) Key() string {
	return b.ExecutionID + "/" + b.DeviceID
}

func NewBaseEvent(eventType EventType, executionID, deviceID string) BaseEvent {
	return BaseEvent{
		ID:          "evt-" + uuid.New().String()[:8],
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ExecutionID: executionID,
		DeviceID:    deviceID,
	}
}

type ExecutionStarted struct {
	BaseEvent

	FlowID    string   `json:"flow_id"`
	DeviceIDs []string `json:"device_ids"`
}

type ExecutionProgress struct {
	BaseEvent

	ProgressPercentage int `json:"progress_percentage"`
}

type ExecutionFinished struct {
	BaseEvent

	Status   models.ExecutionStatus `json:"status"`
	Duration time.Duration          `json:"duration"`
}

type StepStarted struct {
	BaseEvent

	StepIndex    int    `json:"step_index"`
	ModuleID     string `json:"module_id"`
	RetryAttempt int    `json:"retry_attempt"`
}

type StepFinished struct {
	BaseEvent

	StepIndex    int               `json:"step_index"`
	ModuleID     string            `json:"module_id"`
	Status       models.StepStatus `json:"status"`
	RetryAttempt int               `json:"retry_attempt"`
	ErrorCode    string            `json:"error_code,omitempty"`
}

type DeviceFlowFinished struct {
	BaseEvent

	Status models.ExecutionDeviceStatus `json:"status"`
}

type DeviceConnected struct {
	BaseEvent
}

type DeviceDisconnected struct {
	BaseEvent
}
