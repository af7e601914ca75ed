package events

import (
	"testing"

	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestNewBaseEvent(t *testing.T) {
	base := NewBaseEvent(StepStartedEvent, "exec-1", "emulator-5554")

	assert.NotEmpty(t, base.ID)
	assert.Contains(t, base.ID, "evt-")
	assert.Equal(t, StepStartedEvent, base.GetType())
	assert.Equal(t, "exec-1", base.ExecutionID)
	assert.Equal(t, "emulator-5554", base.DeviceID)
	assert.False(t, base.Timestamp.IsZero())
}

func TestEventKey_PerExecutionDevicePair(t *testing.T) {
	a := NewBaseEvent(StepStartedEvent, "exec-1", "d1")
	b := NewBaseEvent(StepFinishedEvent, "exec-1", "d1")
	c := NewBaseEvent(StepStartedEvent, "exec-1", "d2")

	assert.Equal(t, a.Key(), b.Key(), "events for the same pair share a key")
	assert.NotEqual(t, a.Key(), c.Key(), "different devices order independently")
}

func TestTypedEvents(t *testing.T) {
	finished := ExecutionFinished{
		BaseEvent: NewBaseEvent(ExecutionFinishedEvent, "exec-1", ""),
		Status:    models.ExecutionStatusCompleted,
	}
	assert.Equal(t, ExecutionFinishedEvent, finished.GetType())

	step := StepFinished{
		BaseEvent: NewBaseEvent(StepFinishedEvent, "exec-1", "d1"),
		StepIndex: 2,
		Status:    models.StepStatusFailed,
		ErrorCode: models.ErrorCodeModuleTimeout,
	}
	assert.Equal(t, "exec-1/d1", step.Key())
}
