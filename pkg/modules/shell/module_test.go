package shell

import (
	"context"
	"errors"
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

func TestExecute(t *testing.T) {
	bridge := &mocks.MockBridge{}
	bridge.On("RunCommand", mock.Anything, "emulator-5554", []string{"getprop", "ro.build.version.sdk"}).
		Return(&models.CommandResult{ExitCode: 0, Stdout: "34\n"}, nil).Once()

	module, err := NewModuleFactory().Create()
	require.NoError(t, err)

	result, err := module.Execute(context.Background(), protocol.ModuleContext{
		DeviceID: "emulator-5554",
		Params:   map[string]any{"argv": []any{"getprop", "ro.build.version.sdk"}},
		Bridge:   bridge,
	}, testLogger())

	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "34\n", result.Stdout)
	bridge.AssertExpectations(t)
}

func TestExecute_TransportError(t *testing.T) {
	bridge := &mocks.MockBridge{}
	bridge.On("RunCommand", mock.Anything, "emulator-5554", []string{"true"}).
		Return(nil, errors.New("device offline")).Once()

	module, err := NewModuleFactory().Create()
	require.NoError(t, err)

	_, err = module.Execute(context.Background(), protocol.ModuleContext{
		DeviceID: "emulator-5554",
		Params:   map[string]any{"argv": []string{"true"}},
		Bridge:   bridge,
	}, testLogger())

	assert.Error(t, err)
}

func TestExecute_BadArgv(t *testing.T) {
	module, err := NewModuleFactory().Create()
	require.NoError(t, err)

	cases := map[string]map[string]any{
		"missing":        {},
		"not an array":   {"argv": "ls"},
		"mixed elements": {"argv": []any{"ls", 7}},
	}

	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := module.Execute(context.Background(), protocol.ModuleContext{
				DeviceID: "emulator-5554",
				Params:   params,
				Bridge:   &mocks.MockBridge{},
			}, testLogger())

			assert.Error(t, err)
		})
	}
}
