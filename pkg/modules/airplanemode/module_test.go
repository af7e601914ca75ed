package airplanemode

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/bryan-essi/mobiq/pkg/mocks"
	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func runModule(t *testing.T, bridge *mocks.MockBridge, enabled bool) (*models.CommandResult, error) {
	t.Helper()

	module, err := NewModuleFactory().Create()
	require.NoError(t, err)

	return module.Execute(context.Background(), protocol.ModuleContext{
		DeviceID: "emulator-5554",
		Params:   map[string]any{"enabled": enabled},
		Bridge:   bridge,
	}, testLogger())
}

func TestExecute_ConfirmedToggle(t *testing.T) {
	bridge := &mocks.MockBridge{}
	bridge.On("RunCommand", mock.Anything, "emulator-5554",
		[]string{"settings", "put", "global", "airplane_mode_on", "1"}).
		Return(&models.CommandResult{ExitCode: 0}, nil).Once()
	bridge.On("RunCommand", mock.Anything, "emulator-5554",
		[]string{"am", "broadcast", "-a", "android.intent.action.AIRPLANE_MODE", "--ez", "state", "true"}).
		Return(&models.CommandResult{ExitCode: 0}, nil).Once()
	bridge.On("RunCommand", mock.Anything, "emulator-5554",
		[]string{"settings", "get", "global", "airplane_mode_on"}).
		Return(&models.CommandResult{ExitCode: 0, Stdout: "1\n"}, nil).Once()

	result, err := runModule(t, bridge, true)

	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.True(t, result.StateConfirmed)
	bridge.AssertExpectations(t)
}

func TestExecute_ReadBackMismatch(t *testing.T) {
	bridge := &mocks.MockBridge{}
	bridge.On("RunCommand", mock.Anything, "emulator-5554",
		[]string{"settings", "put", "global", "airplane_mode_on", "0"}).
		Return(&models.CommandResult{ExitCode: 0}, nil).Once()
	bridge.On("RunCommand", mock.Anything, "emulator-5554",
		[]string{"am", "broadcast", "-a", "android.intent.action.AIRPLANE_MODE", "--ez", "state", "false"}).
		Return(&models.CommandResult{ExitCode: 0}, nil).Once()
	bridge.On("RunCommand", mock.Anything, "emulator-5554",
		[]string{"settings", "get", "global", "airplane_mode_on"}).
		Return(&models.CommandResult{ExitCode: 0, Stdout: "1\n"}, nil).Once()

	result, err := runModule(t, bridge, false)

	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
	assert.False(t, result.StateConfirmed)
	assert.Contains(t, result.Stderr, "read-back mismatch")
}

func TestExecute_ReadBackUnavailable(t *testing.T) {
	bridge := &mocks.MockBridge{}
	bridge.On("RunCommand", mock.Anything, "emulator-5554",
		[]string{"settings", "put", "global", "airplane_mode_on", "1"}).
		Return(&models.CommandResult{ExitCode: 0}, nil).Once()
	bridge.On("RunCommand", mock.Anything, "emulator-5554",
		[]string{"am", "broadcast", "-a", "android.intent.action.AIRPLANE_MODE", "--ez", "state", "true"}).
		Return(&models.CommandResult{ExitCode: 0}, nil).Once()
	bridge.On("RunCommand", mock.Anything, "emulator-5554",
		[]string{"settings", "get", "global", "airplane_mode_on"}).
		Return(&models.CommandResult{ExitCode: 1, Stderr: "permission denied"}, nil).Once()

	result, err := runModule(t, bridge, true)

	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.False(t, result.StateConfirmed, "unconfirmed toggle must not claim confirmation")
}

func TestExecute_PutFails(t *testing.T) {
	bridge := &mocks.MockBridge{}
	bridge.On("RunCommand", mock.Anything, "emulator-5554",
		[]string{"settings", "put", "global", "airplane_mode_on", "1"}).
		Return(&models.CommandResult{ExitCode: 1, Stderr: "denied"}, nil).Once()

	result, err := runModule(t, bridge, true)

	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
	bridge.AssertExpectations(t)
}

func TestExecute_MissingParameter(t *testing.T) {
	module, err := NewModuleFactory().Create()
	require.NoError(t, err)

	_, err = module.Execute(context.Background(), protocol.ModuleContext{
		DeviceID: "emulator-5554",
		Params:   map[string]any{},
		Bridge:   &mocks.MockBridge{},
	}, testLogger())

	assert.Error(t, err)
}
