// Package mocks provides testify mock implementations of the engine's
// collaborator interfaces.
package mocks

import (
	"context"

	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockBridge is a mock implementation of protocol.Bridge.
type MockBridge struct {
	mock.Mock
}

func (m *MockBridge) ListConnectedDeviceIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)

	ids, _ := args.Get(0).([]string)

	return ids, args.Error(1)
}

func (m *MockBridge) RunCommand(ctx context.Context, deviceID string, argv []string) (*models.CommandResult, error) {
	args := m.Called(ctx, deviceID, argv)

	result, _ := args.Get(0).(*models.CommandResult)

	return result, args.Error(1)
}
