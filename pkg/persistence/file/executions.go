package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/persistence"
)

const executionsDir = "executions"

// SaveExecutionRecord writes a finalized execution document.
func (fp *Persistence) SaveExecutionRecord(_ context.Context, execution *models.Execution) error {
	err := fp.ensureDir(executionsDir)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	err = os.WriteFile(fp.executionPath(execution.ID), data, 0o644)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

// Executions returns every stored execution record.
func (fp *Persistence) Executions(ctx context.Context) ([]*models.Execution, error) {
	root := os.DirFS(path.Join(fp.root, executionsDir))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	records := make([]*models.Execution, 0, len(jsonFiles))

	for _, name := range jsonFiles {
		id := name[:len(name)-len(".json")]

		record, err := fp.ExecutionByID(ctx, id)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}

// ExecutionByID loads one execution record by id.
func (fp *Persistence) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	data, err := os.ReadFile(fp.executionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	var execution models.Execution

	err = json.Unmarshal(data, &execution)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return &execution, nil
}

func (fp *Persistence) executionPath(id string) string {
	return path.Join(fp.root, executionsDir, id+".json")
}
