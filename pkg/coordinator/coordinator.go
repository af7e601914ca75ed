// Package coordinator performs admission control for executions and owns
// their lifecycle: it reserves the full device set atomically, fans one flow
// engine run out per device, aggregates the terminal status, and hands the
// finished record to storage.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryan-essi/mobiq/pkg/devices"
	"github.com/bryan-essi/mobiq/pkg/eventbus"
	"github.com/bryan-essi/mobiq/pkg/events"
	"github.com/bryan-essi/mobiq/pkg/flow"
	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/otelhelper"
	"github.com/bryan-essi/mobiq/pkg/persistence"
	"github.com/bryan-essi/mobiq/pkg/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// defaultRetention bounds how long a terminal execution stays queryable in
// memory. After eviction Get serves it from storage.
const defaultRetention = time.Hour

type Coordinator struct {
	devices     *devices.Registry
	catalog     *registry.Registry
	engine      *flow.Engine
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
	retention   time.Duration

	// mu guards admission and the live execution table. Reservation of the
	// whole device set happens under it, so two concurrent starts can never
	// interleave their claims.
	mu         sync.Mutex
	executions map[string]*executionState
}

// executionState is the live, mutable side of one execution. The canonical
// record is mutated only under mu; Get hands out deep copies.
type executionState struct {
	mu        sync.Mutex
	execution *models.Execution
	cancelled atomic.Bool
	done      chan struct{}
}

type Option func(*Coordinator)

// WithTracer attaches a tracer for per-execution spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

// WithRetention overrides how long terminal executions remain in the live
// table before being evicted to storage-only access.
func WithRetention(retention time.Duration) Option {
	return func(c *Coordinator) {
		c.retention = retention
	}
}

func NewCoordinator(
	deviceRegistry *devices.Registry,
	catalog *registry.Registry,
	engine *flow.Engine,
	store persistence.Persistence,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	opts ...Option,
) *Coordinator {
	coordinator := &Coordinator{
		devices:     deviceRegistry,
		catalog:     catalog,
		engine:      engine,
		persistence: store,
		publisher:   publisher,
		logger:      logger.With("module", "coordinator"),
		tracer:      noop.NewTracerProvider().Tracer("coordinator"),
		retention:   defaultRetention,
		executions:  make(map[string]*executionState),
	}

	for _, opt := range opts {
		opt(coordinator)
	}

	return coordinator
}

// Start admits one run of the given flow on the given devices. Admission is
// all-or-nothing: either every requested device is free and all are reserved
// before Start returns, or none are and the call fails. On success the
// per-device runs are already spawned and the returned execution is a
// snapshot of the admitted state.
func (c *Coordinator) Start(ctx context.Context, flowID string, deviceIDs []string) (*models.Execution, error) {
	targetFlow, err := c.admitFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if len(deviceIDs) == 0 {
		return nil, &NoDevicesError{FlowID: flowID}
	}

	execution := &models.Execution{
		ID:        "exec-" + uuid.New().String()[:8],
		FlowID:    flowID,
		Flow:      targetFlow.Snapshot(),
		Status:    models.ExecutionStatusPending,
		StartTime: time.Now().UTC(),
	}

	handles, err := c.reserveDevices(execution, deviceIDs)
	if err != nil {
		return nil, err
	}

	state := &executionState{execution: execution, done: make(chan struct{})}

	c.mu.Lock()
	c.evictExpiredLocked(time.Now())
	c.executions[execution.ID] = state
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Execution admitted",
		"execution_id", execution.ID, "flow_id", flowID, "devices", deviceIDs)

	c.publish(ctx, &events.ExecutionStarted{
		BaseEvent: events.NewBaseEvent(events.ExecutionStartedEvent, execution.ID, ""),
		FlowID:    flowID,
		DeviceIDs: deviceIDs,
	})

	go c.run(context.WithoutCancel(ctx), state, handles)

	return snapshotExecution(execution), nil
}

// Cancel requests cooperative cancellation of every in-flight per-device run
// of the execution. It returns false when the execution is unknown or
// already terminal. Devices mid-step finish their current step first.
func (c *Coordinator) Cancel(ctx context.Context, executionID string) bool {
	c.mu.Lock()
	state, ok := c.executions[executionID]
	c.mu.Unlock()

	if !ok {
		return false
	}

	state.mu.Lock()
	terminal := state.execution.Status.Terminal()
	state.mu.Unlock()

	if terminal {
		return false
	}

	state.cancelled.Store(true)
	c.logger.InfoContext(ctx, "Execution cancellation requested", "execution_id", executionID)

	return true
}

// Get returns a snapshot of the execution, live or already persisted.
func (c *Coordinator) Get(ctx context.Context, executionID string) (*models.Execution, error) {
	c.mu.Lock()
	state, ok := c.executions[executionID]
	c.mu.Unlock()

	if ok {
		state.mu.Lock()
		defer state.mu.Unlock()

		return snapshotExecution(state.execution), nil
	}

	return c.persistence.ExecutionByID(ctx, executionID)
}

// Executions returns snapshots of every execution the coordinator is
// tracking in memory.
func (c *Coordinator) Executions() []*models.Execution {
	c.mu.Lock()
	states := make([]*executionState, 0, len(c.executions))

	for _, state := range c.executions {
		states = append(states, state)
	}
	c.mu.Unlock()

	list := make([]*models.Execution, 0, len(states))

	for _, state := range states {
		state.mu.Lock()
		list = append(list, snapshotExecution(state.execution))
		state.mu.Unlock()
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].StartTime.Before(list[j].StartTime)
	})

	return list
}

// Wait blocks until the execution reaches a terminal state or ctx expires.
func (c *Coordinator) Wait(ctx context.Context, executionID string) error {
	c.mu.Lock()
	state, ok := c.executions[executionID]
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("execution %s: %w", executionID, ErrExecutionNotRunning)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-state.done:
		return nil
	}
}

// evictExpiredLocked drops terminal executions whose retention has lapsed,
// so the live table does not grow for the life of the process. Callers hold
// c.mu.
func (c *Coordinator) evictExpiredLocked(now time.Time) {
	for id, state := range c.executions {
		state.mu.Lock()
		terminal := state.execution.Status.Terminal()
		end := state.execution.EndTime
		state.mu.Unlock()

		if terminal && end != nil && now.Sub(*end) >= c.retention {
			delete(c.executions, id)
		}
	}
}

// admitFlow resolves and validates the flow against the module catalog.
func (c *Coordinator) admitFlow(ctx context.Context, flowID string) (*models.Flow, error) {
	targetFlow, err := c.persistence.FlowByID(ctx, flowID)
	if err != nil {
		return nil, &InvalidFlowError{FlowID: flowID, Err: err}
	}

	if len(targetFlow.Steps) == 0 {
		return nil, &InvalidFlowError{FlowID: flowID, Err: fmt.Errorf("flow has no steps")}
	}

	if !targetFlow.ValidateStepOrder() {
		return nil, &InvalidFlowError{FlowID: flowID, Err: fmt.Errorf("step sequence numbers are not strictly increasing")}
	}

	for _, step := range targetFlow.Steps {
		if _, err := c.catalog.ResolveModule(step.ModuleID); err != nil {
			return nil, &InvalidFlowError{FlowID: flowID, Err: err}
		}

		if err := c.catalog.ValidateParameters(step.ModuleID, step.InputParameters); err != nil {
			return nil, &InvalidFlowError{FlowID: flowID, Err: err}
		}
	}

	return targetFlow, nil
}

// reserveDevices claims every requested device for the execution, or none.
// The conflict list names every device that could not be claimed, not just
// the first.
func (c *Coordinator) reserveDevices(execution *models.Execution, deviceIDs []string) (map[string]*devices.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	handles := make(map[string]*devices.Handle, len(deviceIDs))
	acquired := make([]*models.ExecutionDevice, 0, len(deviceIDs))

	var conflicts []string

	for _, deviceID := range deviceIDs {
		executionDevice := &models.ExecutionDevice{
			ID:       "ed-" + uuid.New().String()[:8],
			DeviceID: deviceID,
			Status:   models.ExecutionDeviceAssigned,
			Steps:    pendingSteps(execution.Flow),
		}

		handle, known := c.devices.Handle(deviceID)
		if !known || !handle.TryAcquire(executionDevice.ID) {
			conflicts = append(conflicts, deviceID)

			continue
		}

		handles[deviceID] = handle

		execution.Devices = append(execution.Devices, executionDevice)
		acquired = append(acquired, executionDevice)
	}

	if len(conflicts) > 0 {
		for _, executionDevice := range acquired {
			if handle, ok := handles[executionDevice.DeviceID]; ok {
				_ = handle.Release(executionDevice.ID)
			}
		}

		execution.Devices = nil

		return nil, &DeviceBusyError{DeviceIDs: conflicts}
	}

	return handles, nil
}

// run drives the whole execution to a terminal state. It is the only writer
// of the execution's aggregate fields after admission.
func (c *Coordinator) run(ctx context.Context, state *executionState, handles map[string]*devices.Handle) {
	execution := state.execution

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "execution.run",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.FlowIDKey, execution.FlowID),
	)
	defer span.End()

	state.mu.Lock()
	execution.Status = models.ExecutionStatusRunning

	for _, executionDevice := range execution.Devices {
		executionDevice.Status = models.ExecutionDeviceRunning
	}
	state.mu.Unlock()

	var wg sync.WaitGroup

	for _, executionDevice := range execution.Devices {
		wg.Add(1)

		go func(executionDevice *models.ExecutionDevice) {
			defer wg.Done()
			c.runDevice(ctx, state, executionDevice, handles[executionDevice.DeviceID])
		}(executionDevice)
	}

	wg.Wait()

	record := c.finalize(ctx, state)
	if record.Status == models.ExecutionStatusFailed {
		otelhelper.SetError(span, fmt.Errorf("execution %s failed", record.ID),
			attribute.String(otelhelper.ExecutionIDKey, record.ID))
	}

	close(state.done)
}

func (c *Coordinator) runDevice(ctx context.Context, state *executionState, executionDevice *models.ExecutionDevice, handle *devices.Handle) {
	execution := state.execution

	result := c.engine.Run(ctx, flow.Request{
		ExecutionID:       execution.ID,
		ExecutionDeviceID: executionDevice.ID,
		DeviceID:          executionDevice.DeviceID,
		Flow:              execution.Flow,
		Handle:            handle,
		Cancelled:         state.cancelled.Load,
		OnStepFinished: func(stepIndex int, step *models.ExecutionStep) {
			c.applyStep(ctx, state, executionDevice, stepIndex, step)
		},
	})

	state.mu.Lock()
	executionDevice.Status = result.Status
	executionDevice.ErrorCode = result.ErrorCode
	executionDevice.Steps = result.Steps
	c.refreshProgressLocked(ctx, execution)
	state.mu.Unlock()
}

// applyStep copies one terminal step record into the canonical execution and
// republishes aggregate progress.
func (c *Coordinator) applyStep(ctx context.Context, state *executionState, executionDevice *models.ExecutionDevice, stepIndex int, step *models.ExecutionStep) {
	state.mu.Lock()
	defer state.mu.Unlock()

	if stepIndex >= 0 && stepIndex < len(executionDevice.Steps) {
		copied := *step
		executionDevice.Steps[stepIndex] = &copied
	}

	c.refreshProgressLocked(ctx, state.execution)
}

// refreshProgressLocked recomputes the aggregate progress percentage. It is
// monotonic: a recomputation never lowers the published value.
func (c *Coordinator) refreshProgressLocked(ctx context.Context, execution *models.Execution) {
	total := 0
	terminal := 0

	for _, executionDevice := range execution.Devices {
		for _, step := range executionDevice.Steps {
			total++

			if step.Status.Terminal() {
				terminal++
			}
		}
	}

	if total == 0 {
		return
	}

	progress := 100 * terminal / total
	if progress <= execution.ProgressPercentage {
		return
	}

	execution.ProgressPercentage = progress

	c.publish(ctx, &events.ExecutionProgress{
		BaseEvent:          events.NewBaseEvent(events.ExecutionProgressEvent, execution.ID, ""),
		ProgressPercentage: progress,
	})
}

// finalize computes the aggregate terminal status once every device is done:
// Completed only when all devices completed, Failed when any device failed,
// Cancelled when cancellation stopped devices and none failed on its own.
func (c *Coordinator) finalize(ctx context.Context, state *executionState) *models.Execution {
	execution := state.execution

	state.mu.Lock()

	anyFailed := false
	anyCancelled := false

	for _, executionDevice := range execution.Devices {
		switch executionDevice.Status {
		case models.ExecutionDeviceFailed:
			anyFailed = true
		case models.ExecutionDeviceCancelled:
			anyCancelled = true
		}
	}

	switch {
	case anyFailed:
		execution.Status = models.ExecutionStatusFailed
	case anyCancelled:
		execution.Status = models.ExecutionStatusCancelled
	default:
		execution.Status = models.ExecutionStatusCompleted
	}

	now := time.Now().UTC()
	execution.EndTime = &now

	record := snapshotExecution(execution)
	state.mu.Unlock()

	c.logger.InfoContext(ctx, "Execution finished",
		"execution_id", execution.ID, "status", record.Status,
		"duration", now.Sub(record.StartTime))

	c.publish(ctx, &events.ExecutionFinished{
		BaseEvent: events.NewBaseEvent(events.ExecutionFinishedEvent, execution.ID, ""),
		Status:    record.Status,
		Duration:  now.Sub(record.StartTime),
	})

	// Storage is best-effort: the run already happened, a write failure must
	// not disturb in-memory state.
	if err := c.persistence.SaveExecutionRecord(ctx, record); err != nil {
		c.logger.ErrorContext(ctx, "Failed to persist execution record",
			"execution_id", execution.ID, "error", err)
	}

	return record
}

func (c *Coordinator) publish(ctx context.Context, event events.Event) {
	if c.publisher == nil {
		return
	}

	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func pendingSteps(targetFlow *models.Flow) []*models.ExecutionStep {
	steps := make([]*models.ExecutionStep, 0, len(targetFlow.Steps))
	for i, step := range targetFlow.Steps {
		steps = append(steps, &models.ExecutionStep{
			StepIndex: i,
			ModuleID:  step.ModuleID,
			Status:    models.StepStatusPending,
		})
	}

	return steps
}

// snapshotExecution deep-copies an execution so callers can read it without
// racing the engine goroutines.
func snapshotExecution(execution *models.Execution) *models.Execution {
	copied := *execution

	if execution.Flow != nil {
		copied.Flow = execution.Flow.Snapshot()
	}

	if execution.EndTime != nil {
		end := *execution.EndTime
		copied.EndTime = &end
	}

	copied.Devices = make([]*models.ExecutionDevice, len(execution.Devices))

	for i, executionDevice := range execution.Devices {
		deviceCopy := *executionDevice
		deviceCopy.Steps = make([]*models.ExecutionStep, len(executionDevice.Steps))

		for j, step := range executionDevice.Steps {
			stepCopy := *step

			if step.EndTime != nil {
				end := *step.EndTime
				stepCopy.EndTime = &end
			}

			deviceCopy.Steps[j] = &stepCopy
		}

		copied.Devices[i] = &deviceCopy
	}

	return &copied
}
