package adb

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdb writes a shell script that mimics the adb invocations the bridge
// makes, so the tests need no device or adb server.
func fakeAdb(t *testing.T) string {
	t.Helper()

	script := `#!/bin/sh
if [ "$1" = "devices" ]; then
	printf 'List of devices attached\n'
	printf 'emulator-5554\tdevice\n'
	printf 'emulator-5556\toffline\n'
	printf 'emulator-5558\tunauthorized\n'
	exit 0
fi
# -s <device> shell <argv...>
shift 3
exec "$@"
`

	path := filepath.Join(t.TempDir(), "adb")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestListConnectedDeviceIDs(t *testing.T) {
	bridge := NewBridge(testLogger(), WithBinary(fakeAdb(t)))

	ids, err := bridge.ListConnectedDeviceIDs(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"emulator-5554"}, ids, "offline and unauthorized devices are not connected")
}

func TestRunCommand(t *testing.T) {
	bridge := NewBridge(testLogger(), WithBinary(fakeAdb(t)))

	result, err := bridge.RunCommand(context.Background(), "emulator-5554", []string{"echo", "hi"})
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hi\n", result.Stdout)
}

func TestRunCommand_NonZeroExitIsAResult(t *testing.T) {
	bridge := NewBridge(testLogger(), WithBinary(fakeAdb(t)))

	result, err := bridge.RunCommand(context.Background(), "emulator-5554", []string{"sh", "-c", "echo oops >&2; exit 3"})
	require.NoError(t, err, "a device-side failure is a result, not a transport error")

	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "oops\n", result.Stderr)
}

func TestRunCommand_TransportError(t *testing.T) {
	bridge := NewBridge(testLogger(), WithBinary("/nonexistent/adb"))

	_, err := bridge.RunCommand(context.Background(), "emulator-5554", []string{"true"})
	assert.Error(t, err)
}

func TestRunCommand_EmptyArgv(t *testing.T) {
	bridge := NewBridge(testLogger(), WithBinary(fakeAdb(t)))

	_, err := bridge.RunCommand(context.Background(), "emulator-5554", nil)
	assert.Error(t, err)
}
