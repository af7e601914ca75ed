package mocks

import (
	"context"

	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Flows(ctx context.Context) ([]*models.Flow, error) {
	args := m.Called(ctx)

	flows, _ := args.Get(0).([]*models.Flow)

	return flows, args.Error(1)
}

func (m *MockPersistence) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	args := m.Called(ctx, id)

	flow, _ := args.Get(0).(*models.Flow)

	return flow, args.Error(1)
}

func (m *MockPersistence) SaveFlow(ctx context.Context, flow *models.Flow) error {
	args := m.Called(ctx, flow)

	return args.Error(0)
}

func (m *MockPersistence) DeleteFlow(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockPersistence) SaveExecutionRecord(ctx context.Context, execution *models.Execution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockPersistence) Executions(ctx context.Context) ([]*models.Execution, error) {
	args := m.Called(ctx)

	records, _ := args.Get(0).([]*models.Execution)

	return records, args.Error(1)
}

func (m *MockPersistence) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	args := m.Called(ctx, id)

	record, _ := args.Get(0).(*models.Execution)

	return record, args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
