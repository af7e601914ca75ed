// Package runner executes one module against one already-claimed device,
// enforcing the per-attempt timeout and the per-step retry policy.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bryan-essi/mobiq/pkg/devices"
	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/protocol"
	"github.com/bryan-essi/mobiq/pkg/registry"
)

const (
	// OutputLimit bounds each captured output stream per step. Chatty
	// commands are truncated and flagged, never buffered without bound.
	OutputLimit = 64 * 1024

	defaultRetryBackoff = time.Second
)

// ModuleRunner runs single steps. Exclusivity is the caller's problem: the
// flow engine holds the device claim for the whole flow, the runner only
// observes disconnection through the handle.
type ModuleRunner struct {
	catalog *registry.Registry
	bridge  protocol.Bridge
	logger  *slog.Logger
	backoff time.Duration
}

type Option func(*ModuleRunner)

// WithRetryBackoff overrides the fixed delay between retry attempts.
func WithRetryBackoff(backoff time.Duration) Option {
	return func(r *ModuleRunner) {
		r.backoff = backoff
	}
}

func NewModuleRunner(catalog *registry.Registry, bridge protocol.Bridge, logger *slog.Logger, opts ...Option) *ModuleRunner {
	runner := &ModuleRunner{
		catalog: catalog,
		bridge:  bridge,
		logger:  logger.With("module", "runner"),
		backoff: defaultRetryBackoff,
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Run executes one flow step and returns its record; it never returns an
// error, failures are captured on the step. Retries update the same record
// in place and reset its timing window. The handle may be nil for modules
// that do not require a device.
func (r *ModuleRunner) Run(ctx context.Context, executionID string, handle *devices.Handle, stepIndex int, step *models.FlowStep) *models.ExecutionStep {
	record := &models.ExecutionStep{
		StepIndex: stepIndex,
		ModuleID:  step.ModuleID,
		Status:    models.StepStatusRunning,
		StartTime: time.Now(),
	}

	logger := r.logger.With("execution_id", executionID, "step_index", stepIndex, "module_id", step.ModuleID)

	definition, err := r.catalog.ResolveModule(step.ModuleID)
	if err != nil {
		// Unknown modules fail immediately, retrying cannot help.
		logger.ErrorContext(ctx, "Module not in catalog", "error", err)
		finalize(record, models.ErrorCodeUnknownModule, err.Error())

		return record
	}

	deviceID := ""
	if definition.RequiresDevice && handle != nil {
		deviceID = handle.Snapshot().ID
	}

	retries := step.StepRetries(definition)

	for attempt := 0; ; attempt++ {
		record.RetryAttempt = attempt
		record.StartTime = time.Now()
		record.EndTime = nil

		code, message := r.runAttempt(ctx, logger, record, executionID, deviceID, handle, definition, step)
		if code == "" {
			now := time.Now()
			record.Status = models.StepStatusCompleted
			record.EndTime = &now

			return record
		}

		if attempt >= retries || code == models.ErrorCodeDeviceLost {
			finalize(record, code, message)

			return record
		}

		logger.WarnContext(ctx, "Step attempt failed, retrying",
			"attempt", attempt, "error_code", code, "backoff", r.backoff)

		select {
		case <-ctx.Done():
			finalize(record, code, message)

			return record
		case <-time.After(r.backoff):
		}
	}
}

// runAttempt performs a single bounded attempt. It returns an empty error
// code on success; on failure the record's outputs are already captured.
func (r *ModuleRunner) runAttempt(
	ctx context.Context,
	logger *slog.Logger,
	record *models.ExecutionStep,
	executionID, deviceID string,
	handle *devices.Handle,
	definition *models.ModuleDefinition,
	step *models.FlowStep,
) (string, string) {
	if definition.RequiresDevice && handle != nil && !handle.Connected() {
		return models.ErrorCodeDeviceLost, "device disconnected before attempt"
	}

	module, err := r.catalog.CreateModule(step.ModuleID)
	if err != nil {
		return models.ErrorCodeUnknownModule, err.Error()
	}

	timeout := step.StepTimeout(definition)

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type attemptOutcome struct {
		result *models.CommandResult
		err    error
	}

	done := make(chan attemptOutcome, 1)

	go func() {
		// Modules are third-party code, some loaded from .so plugins. A panic
		// in one must surface as a failed attempt, not kill the process with
		// the device claim still held.
		defer func() {
			if p := recover(); p != nil {
				done <- attemptOutcome{err: fmt.Errorf("module panicked: %v", p)}
			}
		}()

		result, err := module.Execute(attemptCtx, protocol.ModuleContext{
			ExecutionID: executionID,
			DeviceID:    deviceID,
			Params:      step.InputParameters,
			Bridge:      r.bridge,
		}, logger)

		done <- attemptOutcome{result: result, err: err}
	}()

	var outcome attemptOutcome

	// The select enforces the wall-clock bound even when the module ignores
	// its context; the abandoned goroutine is left to drain into the
	// buffered channel.
	select {
	case outcome = <-done:
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return models.ErrorCodeModuleTimeout, "attempt exceeded " + timeout.String()
		}

		return models.ErrorCodeTransportError, attemptCtx.Err().Error()
	}

	if outcome.err != nil {
		if errors.Is(outcome.err, context.DeadlineExceeded) {
			return models.ErrorCodeModuleTimeout, "attempt exceeded " + timeout.String()
		}

		if definition.RequiresDevice && handle != nil && !handle.Connected() {
			return models.ErrorCodeDeviceLost, outcome.err.Error()
		}

		return models.ErrorCodeTransportError, outcome.err.Error()
	}

	captureOutput(record, outcome.result)

	if outcome.result.ExitCode != 0 {
		return models.ErrorCodeCommandFailed, fmt.Sprintf("command exited with code %d", outcome.result.ExitCode)
	}

	return "", ""
}

func captureOutput(record *models.ExecutionStep, result *models.CommandResult) {
	record.OutputTruncated = false
	record.Stdout, record.OutputTruncated = truncate(result.Stdout, record.OutputTruncated)
	record.Stderr, record.OutputTruncated = truncate(result.Stderr, record.OutputTruncated)
	record.StateConfirmed = result.StateConfirmed
}

func truncate(s string, alreadyTruncated bool) (string, bool) {
	if len(s) <= OutputLimit {
		return s, alreadyTruncated
	}

	return s[:OutputLimit], true
}

func finalize(record *models.ExecutionStep, code, message string) {
	now := time.Now()
	record.Status = models.StepStatusFailed
	record.EndTime = &now
	record.ErrorCode = code
	record.ErrorMessage = message
}
