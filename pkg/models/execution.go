package models

import "time"

// ExecutionStatus is the lifecycle state of one flow run. Transitions are
// forward-only: a terminal status is never rewritten.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// ExecutionDeviceStatus is the per-device slice state of an execution.
type ExecutionDeviceStatus string

const (
	ExecutionDeviceAssigned  ExecutionDeviceStatus = "assigned"
	ExecutionDeviceRunning   ExecutionDeviceStatus = "running"
	ExecutionDeviceCompleted ExecutionDeviceStatus = "completed"
	ExecutionDeviceFailed    ExecutionDeviceStatus = "failed"
	ExecutionDeviceCancelled ExecutionDeviceStatus = "cancelled"
)

// Terminal reports whether the per-device status is final.
func (s ExecutionDeviceStatus) Terminal() bool {
	return s == ExecutionDeviceCompleted || s == ExecutionDeviceFailed || s == ExecutionDeviceCancelled
}

// StepStatus is the recorded state of one flow step on one device.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// Terminal reports whether the step status is final.
func (s StepStatus) Terminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed || s == StepStatusSkipped
}

// Step error codes captured on failed ExecutionSteps. These are recorded,
// never raised.
const (
	ErrorCodeModuleTimeout     = "MODULE_TIMEOUT"
	ErrorCodeTransportError    = "TRANSPORT_ERROR"
	ErrorCodeDeviceLost        = "DEVICE_LOST"
	ErrorCodeDeviceUnavailable = "DEVICE_UNAVAILABLE"
	ErrorCodeCommandFailed     = "COMMAND_FAILED"
	ErrorCodeUnknownModule     = "UNKNOWN_MODULE"
)

// Execution is one run of a flow against a set of target devices. The
// coordinator owns the live set; Flow is a snapshot taken at admission.
type Execution struct {
	ID                 string             `json:"id"`
	FlowID             string             `json:"flow_id"`
	Flow               *Flow              `json:"flow,omitempty"`
	Status             ExecutionStatus    `json:"status"`
	Devices            []*ExecutionDevice `json:"devices"`
	ProgressPercentage int                `json:"progress_percentage"`
	StartTime          time.Time          `json:"start_time"`
	EndTime            *time.Time         `json:"end_time,omitempty"`
}

// DeviceByID returns the per-device slice for the given device id.
func (e *Execution) DeviceByID(deviceID string) *ExecutionDevice {
	for _, device := range e.Devices {
		if device.DeviceID == deviceID {
			return device
		}
	}

	return nil
}

// ExecutionDevice is the per-device slice of an execution; it is destroyed
// with its parent execution.
type ExecutionDevice struct {
	ID       string                `json:"id"`
	DeviceID string                `json:"device_id"`
	Status   ExecutionDeviceStatus `json:"status"`
	Steps    []*ExecutionStep      `json:"steps"`

	// ErrorCode is set for device-level failures that prevent any step from
	// running, such as DEVICE_UNAVAILABLE.
	ErrorCode string `json:"error_code,omitempty"`
}

// ExecutionStep is the recorded outcome of running one flow step on one
// device. Retries update RetryAttempt in place rather than appending new
// records. The record is immutable once Status is terminal.
type ExecutionStep struct {
	StepIndex       int        `json:"step_index"`
	ModuleID        string     `json:"module_id"`
	Status          StepStatus `json:"status"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	RetryAttempt    int        `json:"retry_attempt"`
	ErrorCode       string     `json:"error_code,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	Stdout          string     `json:"stdout,omitempty"`
	Stderr          string     `json:"stderr,omitempty"`
	OutputTruncated bool       `json:"output_truncated,omitempty"`
	StateConfirmed  bool       `json:"state_confirmed,omitempty"`
}
