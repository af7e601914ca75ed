package coordinator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrExecutionNotRunning indicates a cancel or lookup against an execution
// the coordinator is not tracking.
var ErrExecutionNotRunning = errors.New("execution not running")

// InvalidFlowError rejects admission when the flow cannot be resolved or
// fails validation against the module catalog.
type InvalidFlowError struct {
	FlowID string
	Err    error
}

func (e *InvalidFlowError) Error() string {
	return fmt.Sprintf("invalid flow %s: %v", e.FlowID, e.Err)
}

func (e *InvalidFlowError) Unwrap() error {
	return e.Err
}

// NoDevicesError rejects admission when the request names no target devices.
type NoDevicesError struct {
	FlowID string
}

func (e *NoDevicesError) Error() string {
	return fmt.Sprintf("flow %s: no target devices given", e.FlowID)
}

// DeviceBusyError rejects admission when any requested device is claimed,
// disconnected, or unknown. It enumerates every conflicting device so the
// caller can correct the whole request at once instead of guessing.
type DeviceBusyError struct {
	DeviceIDs []string
}

func (e *DeviceBusyError) Error() string {
	return "devices unavailable: " + strings.Join(e.DeviceIDs, ", ")
}

// IsAdmissionError reports whether the error is a synchronous admission
// rejection rather than an internal failure.
func IsAdmissionError(err error) bool {
	var invalidFlow *InvalidFlowError

	var noDevices *NoDevicesError

	var busy *DeviceBusyError

	return errors.As(err, &invalidFlow) || errors.As(err, &noDevices) || errors.As(err, &busy)
}
