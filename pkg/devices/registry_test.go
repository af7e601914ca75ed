package devices

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bryan-essi/mobiq/pkg/mocks"
	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(bridge *mocks.MockBridge, opts ...RegistryOption) *Registry {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	return NewRegistry(bridge, nil, logger, opts...)
}

func TestRefresh_RegistersNewDevices(t *testing.T) {
	bridge := &mocks.MockBridge{}
	bridge.On("ListConnectedDeviceIDs", mock.Anything).Return([]string{"d1", "d2"}, nil)

	registry := newTestRegistry(bridge)
	registry.Refresh(context.Background())

	devices := registry.ListDevices()
	require.Len(t, devices, 2)

	handle, ok := registry.Handle("d1")
	require.True(t, ok)
	assert.Equal(t, models.DeviceStatusConnected, handle.Snapshot().Status)
}

func TestRefresh_MarksAbsentDevicesDisconnected(t *testing.T) {
	bridge := &mocks.MockBridge{}
	bridge.On("ListConnectedDeviceIDs", mock.Anything).Return([]string{"d1", "d2"}, nil).Once()
	bridge.On("ListConnectedDeviceIDs", mock.Anything).Return([]string{"d1"}, nil)

	registry := newTestRegistry(bridge)
	ctx := context.Background()

	registry.Refresh(ctx)
	registry.Refresh(ctx)

	handle, ok := registry.Handle("d2")
	require.True(t, ok, "disconnected device stays in the set during grace period")
	assert.Equal(t, models.DeviceStatusDisconnected, handle.Snapshot().Status)
}

func TestRefresh_DisconnectClearsClaim(t *testing.T) {
	bridge := &mocks.MockBridge{}
	bridge.On("ListConnectedDeviceIDs", mock.Anything).Return([]string{"d1"}, nil).Once()
	bridge.On("ListConnectedDeviceIDs", mock.Anything).Return([]string{}, nil)

	registry := newTestRegistry(bridge)
	ctx := context.Background()

	registry.Refresh(ctx)

	handle, _ := registry.Handle("d1")
	require.True(t, handle.TryAcquire("ed-1"))

	registry.Refresh(ctx)

	assert.False(t, handle.Connected())
	assert.False(t, handle.TryAcquire("ed-2"))
}

func TestRefresh_RemovesAfterGracePeriod(t *testing.T) {
	bridge := &mocks.MockBridge{}
	bridge.On("ListConnectedDeviceIDs", mock.Anything).Return([]string{"d1"}, nil).Once()
	bridge.On("ListConnectedDeviceIDs", mock.Anything).Return([]string{}, nil)

	registry := newTestRegistry(bridge, WithGracePeriod(10*time.Millisecond))
	ctx := context.Background()

	registry.Refresh(ctx)
	registry.Refresh(ctx) // marks disconnected

	time.Sleep(20 * time.Millisecond)
	registry.Refresh(ctx) // grace elapsed, removed

	_, ok := registry.Handle("d1")
	assert.False(t, ok)
	assert.Empty(t, registry.ListDevices())
}

func TestRefresh_ReconnectRevivesDevice(t *testing.T) {
	bridge := &mocks.MockBridge{}
	bridge.On("ListConnectedDeviceIDs", mock.Anything).Return([]string{"d1"}, nil).Once()
	bridge.On("ListConnectedDeviceIDs", mock.Anything).Return([]string{}, nil).Once()
	bridge.On("ListConnectedDeviceIDs", mock.Anything).Return([]string{"d1"}, nil)

	registry := newTestRegistry(bridge)
	ctx := context.Background()

	registry.Refresh(ctx)
	registry.Refresh(ctx)
	registry.Refresh(ctx)

	handle, ok := registry.Handle("d1")
	require.True(t, ok)
	assert.Equal(t, models.DeviceStatusConnected, handle.Snapshot().Status)
	assert.True(t, handle.TryAcquire("ed-1"))
}

func TestRefresh_PollErrorKeepsState(t *testing.T) {
	bridge := &mocks.MockBridge{}
	bridge.On("ListConnectedDeviceIDs", mock.Anything).Return([]string{"d1"}, nil).Once()
	bridge.On("ListConnectedDeviceIDs", mock.Anything).Return(nil, assert.AnError)

	registry := newTestRegistry(bridge)
	ctx := context.Background()

	registry.Refresh(ctx)
	registry.Refresh(ctx)

	handle, ok := registry.Handle("d1")
	require.True(t, ok, "a failed poll must not mutate the device set")
	assert.Equal(t, models.DeviceStatusConnected, handle.Snapshot().Status)
}
