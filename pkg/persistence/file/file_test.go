package file

import (
	"context"
	"testing"
	"time"

	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func sampleFlow(id string) *models.Flow {
	return &models.Flow{
		ID:   id,
		Name: "Airplane Mode Cycle",
		Steps: []*models.FlowStep{
			{Sequence: 0, ModuleID: "airplanemode", InputParameters: map[string]any{"enabled": true}},
			{Sequence: 1, ModuleID: "airplanemode", InputParameters: map[string]any{"enabled": false}, RetryCount: 2},
		},
	}
}

func TestFlowRoundTrip(t *testing.T) {
	ctx := context.Background()
	fp := newTestPersistence(t)

	require.NoError(t, fp.SaveFlow(ctx, sampleFlow("flow-1")))

	flow, err := fp.FlowByID(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "Airplane Mode Cycle", flow.Name)
	require.Len(t, flow.Steps, 2)
	assert.Equal(t, 2, flow.Steps[1].RetryCount)
	assert.False(t, flow.CreatedAt.IsZero())
}

func TestFlowByID_NotFound(t *testing.T) {
	ctx := context.Background()
	fp := newTestPersistence(t)

	_, err := fp.FlowByID(ctx, "missing")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestDeleteFlow_SoftDelete(t *testing.T) {
	ctx := context.Background()
	fp := newTestPersistence(t)

	require.NoError(t, fp.SaveFlow(ctx, sampleFlow("flow-1")))
	require.NoError(t, fp.DeleteFlow(ctx, "flow-1"))

	_, err := fp.FlowByID(ctx, "flow-1")
	assert.True(t, persistence.IsFlowNotFound(err))

	flows, err := fp.Flows(ctx)
	require.NoError(t, err)
	assert.Empty(t, flows)
}

func TestExecutionRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	fp := newTestPersistence(t)

	end := time.Now().UTC()
	execution := &models.Execution{
		ID:                 "exec-1",
		FlowID:             "flow-1",
		Status:             models.ExecutionStatusFailed,
		ProgressPercentage: 100,
		StartTime:          end.Add(-time.Minute),
		EndTime:            &end,
		Devices: []*models.ExecutionDevice{
			{
				ID:       "ed-1",
				DeviceID: "emulator-5554",
				Status:   models.ExecutionDeviceFailed,
				Steps: []*models.ExecutionStep{
					{
						StepIndex:    0,
						ModuleID:     "shell",
						Status:       models.StepStatusFailed,
						RetryAttempt: 2,
						ErrorCode:    models.ErrorCodeModuleTimeout,
					},
				},
			},
		},
	}

	require.NoError(t, fp.SaveExecutionRecord(ctx, execution))

	loaded, err := fp.ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, loaded.Status)
	require.Len(t, loaded.Devices, 1)
	assert.Equal(t, models.ErrorCodeModuleTimeout, loaded.Devices[0].Steps[0].ErrorCode)

	records, err := fp.Executions(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()

	fp := newTestPersistence(t)
	assert.NoError(t, fp.HealthCheck(ctx))

	missing := NewPersistence("/nonexistent/mobiq-test")
	assert.Error(t, missing.HealthCheck(ctx))
}
