package postgresql

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests in this file need a reachable PostgreSQL instance; set
// TEST_DATABASE_URL to run them.
func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	p, err := NewPersistence(context.Background(), logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = p.Close(context.Background())
	})

	return p
}

func TestPostgresFlowRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	id := "flow-" + uuid.New().String()
	flow := &models.Flow{
		ID:   id,
		Name: "SIM Registration Check",
		Steps: []*models.FlowStep{
			{Sequence: 0, ModuleID: "shell", InputParameters: map[string]any{"argv": []any{"getprop", "gsm.sim.state"}}},
		},
	}

	require.NoError(t, p.SaveFlow(ctx, flow))

	loaded, err := p.FlowByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "SIM Registration Check", loaded.Name)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, "shell", loaded.Steps[0].ModuleID)

	require.NoError(t, p.DeleteFlow(ctx, id))

	_, err = p.FlowByID(ctx, id)
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestPostgresExecutionRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	id := "exec-" + uuid.New().String()
	end := time.Now().UTC().Truncate(time.Millisecond)
	execution := &models.Execution{
		ID:                 id,
		FlowID:             "flow-1",
		Status:             models.ExecutionStatusCompleted,
		ProgressPercentage: 100,
		StartTime:          end.Add(-30 * time.Second),
		EndTime:            &end,
		Devices: []*models.ExecutionDevice{
			{ID: "ed-1", DeviceID: "emulator-5554", Status: models.ExecutionDeviceCompleted},
		},
	}

	require.NoError(t, p.SaveExecutionRecord(ctx, execution))

	loaded, err := p.ExecutionByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	require.NotNil(t, loaded.EndTime)
	require.Len(t, loaded.Devices, 1)
	assert.Equal(t, "emulator-5554", loaded.Devices[0].DeviceID)
}

func TestPostgresExecutionByID_NotFound(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	_, err := p.ExecutionByID(ctx, "exec-missing")
	assert.True(t, persistence.IsExecutionNotFound(err))
}
