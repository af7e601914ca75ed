// Package persistence provides the storage abstraction for flow definitions
// and finished execution records.
package persistence

import (
	"context"

	"github.com/bryan-essi/mobiq/pkg/models"
)

type Persistence interface {
	Flows(ctx context.Context) ([]*models.Flow, error)
	FlowByID(ctx context.Context, id string) (*models.Flow, error)
	SaveFlow(ctx context.Context, flow *models.Flow) error
	DeleteFlow(ctx context.Context, id string) error

	// SaveExecutionRecord persists a finalized execution. Callers treat
	// failures as best-effort: the run already happened, so a storage error
	// is logged and never rolls back in-memory state.
	SaveExecutionRecord(ctx context.Context, execution *models.Execution) error
	Executions(ctx context.Context) ([]*models.Execution, error)
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
