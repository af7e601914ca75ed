package wait

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bryan-essi/mobiq/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestExecute(t *testing.T) {
	module, err := NewModuleFactory().Create()
	require.NoError(t, err)

	start := time.Now()

	result, err := module.Execute(context.Background(), protocol.ModuleContext{
		Params: map[string]any{"seconds": 0.05},
	}, testLogger())

	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestExecute_ContextCancelled(t *testing.T) {
	module, err := NewModuleFactory().Create()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = module.Execute(ctx, protocol.ModuleContext{
		Params: map[string]any{"seconds": 10},
	}, testLogger())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecute_BadParameter(t *testing.T) {
	module, err := NewModuleFactory().Create()
	require.NoError(t, err)

	_, err = module.Execute(context.Background(), protocol.ModuleContext{
		Params: map[string]any{"seconds": "three"},
	}, testLogger())

	assert.Error(t, err)
}

func TestDefinition_Deviceless(t *testing.T) {
	assert.False(t, NewModuleFactory().Definition().RequiresDevice)
}
