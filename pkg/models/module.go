package models

import "time"

// ModuleDefinition describes a catalog-registered unit of device automation.
// Definitions are immutable at runtime; the registry owns them.
type ModuleDefinition struct {
	ID             string `json:"id"              validate:"required"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	TimeoutSeconds int    `json:"timeout_seconds" validate:"gte=0"`
	MaxRetries     int    `json:"max_retries"     validate:"gte=0"` // default retry budget for steps without retry_count
	RequiresDevice bool   `json:"requires_device"`
}

// Timeout returns the default wall-clock bound for one attempt of this module.
func (m *ModuleDefinition) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// CommandResult is the outcome of one bridge command invocation.
type CommandResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`

	// StateConfirmed is set by modules that read the device state back after
	// acting on it. A module reporting success without confirmation is
	// recorded with a warning, never silently trusted.
	StateConfirmed bool `json:"state_confirmed,omitempty"`
}
