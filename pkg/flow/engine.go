// Package flow walks an ordered flow against a single device, applying
// continue-on-failure policy step by step. It is the state machine at the
// center of the engine; running multiple devices in parallel is the
// coordinator's job, one engine run per device.
package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/bryan-essi/mobiq/pkg/devices"
	"github.com/bryan-essi/mobiq/pkg/eventbus"
	"github.com/bryan-essi/mobiq/pkg/events"
	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/runner"
)

// Request describes one per-device flow run. Cancelled is polled between
// steps only; an in-flight module attempt finishes or times out naturally.
type Request struct {
	ExecutionID       string
	ExecutionDeviceID string
	DeviceID          string
	Flow              *models.Flow
	Handle            *devices.Handle

	Cancelled func() bool

	// OnStepFinished is invoked after each step reaches a terminal state,
	// from the engine's goroutine. May be nil.
	OnStepFinished func(stepIndex int, step *models.ExecutionStep)
}

// Result is the terminal outcome of one per-device run. Steps always has one
// record per flow step; steps that never ran are Skipped.
type Result struct {
	Status    models.ExecutionDeviceStatus
	ErrorCode string
	Steps     []*models.ExecutionStep
}

type Engine struct {
	runner    *runner.ModuleRunner
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewEngine(moduleRunner *runner.ModuleRunner, publisher eventbus.EventPublisher, logger *slog.Logger) *Engine {
	return &Engine{
		runner:    moduleRunner,
		publisher: publisher,
		logger:    logger.With("module", "flow"),
	}
}

// Run executes the flow's steps in sequence on one device and returns the
// terminal result. The device claim is released unconditionally on the way
// out, whatever state the run ended in.
func (e *Engine) Run(ctx context.Context, req Request) Result {
	logger := e.logger.With("execution_id", req.ExecutionID, "device_id", req.DeviceID)

	if req.Handle != nil && !req.Handle.TryAcquire(req.ExecutionDeviceID) {
		logger.WarnContext(ctx, "Device claim unavailable, failing device run")

		result := Result{
			Status:    models.ExecutionDeviceFailed,
			ErrorCode: models.ErrorCodeDeviceUnavailable,
			Steps:     skippedSteps(req.Flow, 0),
		}
		e.publishFinished(ctx, req, result.Status)

		return result
	}

	if req.Handle != nil {
		defer func() {
			if err := req.Handle.Release(req.ExecutionDeviceID); err != nil {
				// A lost device clears its own holder; anything else is a
				// coordination bug worth surfacing in the logs.
				logger.WarnContext(ctx, "Device claim release failed", "error", err)
			}
		}()
	}

	result := e.runSteps(ctx, logger, req)
	e.publishFinished(ctx, req, result.Status)

	return result
}

func (e *Engine) runSteps(ctx context.Context, logger *slog.Logger, req Request) Result {
	steps := make([]*models.ExecutionStep, 0, len(req.Flow.Steps))
	failed := false

	for i, flowStep := range req.Flow.Steps {
		if req.Cancelled != nil && req.Cancelled() {
			logger.InfoContext(ctx, "Cancellation observed, stopping before step", "step_index", i)

			return Result{
				Status: models.ExecutionDeviceCancelled,
				Steps:  append(steps, skippedSteps(req.Flow, i)...),
			}
		}

		e.publish(ctx, &events.StepStarted{
			BaseEvent: events.NewBaseEvent(events.StepStartedEvent, req.ExecutionID, req.DeviceID),
			StepIndex: i,
			ModuleID:  flowStep.ModuleID,
		})

		record := e.runner.Run(ctx, req.ExecutionID, req.Handle, i, flowStep)
		steps = append(steps, record)

		e.publish(ctx, &events.StepFinished{
			BaseEvent:    events.NewBaseEvent(events.StepFinishedEvent, req.ExecutionID, req.DeviceID),
			StepIndex:    i,
			ModuleID:     flowStep.ModuleID,
			Status:       record.Status,
			RetryAttempt: record.RetryAttempt,
			ErrorCode:    record.ErrorCode,
		})

		if req.OnStepFinished != nil {
			req.OnStepFinished(i, record)
		}

		if record.Status == models.StepStatusFailed {
			// Failure is sticky: a later success never rewrites it.
			failed = true

			if !flowStep.ContinueOnFailure {
				logger.InfoContext(ctx, "Step failed, skipping remaining steps",
					"step_index", i, "error_code", record.ErrorCode)

				return Result{
					Status: models.ExecutionDeviceFailed,
					Steps:  append(steps, skippedSteps(req.Flow, i+1)...),
				}
			}

			logger.InfoContext(ctx, "Step failed, continuing per step policy",
				"step_index", i, "error_code", record.ErrorCode)
		}
	}

	status := models.ExecutionDeviceCompleted
	if failed {
		status = models.ExecutionDeviceFailed
	}

	return Result{Status: status, Steps: steps}
}

// skippedSteps builds terminal Skipped records for every flow step from the
// given index on.
func skippedSteps(flow *models.Flow, from int) []*models.ExecutionStep {
	now := time.Now()
	skipped := make([]*models.ExecutionStep, 0, len(flow.Steps)-from)

	for i := from; i < len(flow.Steps); i++ {
		skipped = append(skipped, &models.ExecutionStep{
			StepIndex: i,
			ModuleID:  flow.Steps[i].ModuleID,
			Status:    models.StepStatusSkipped,
			StartTime: now,
			EndTime:   &now,
		})
	}

	return skipped
}

func (e *Engine) publishFinished(ctx context.Context, req Request, status models.ExecutionDeviceStatus) {
	e.publish(ctx, &events.DeviceFlowFinished{
		BaseEvent: events.NewBaseEvent(events.DeviceFlowFinishedEvent, req.ExecutionID, req.DeviceID),
		Status:    status,
	})
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
