package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/persistence"
)

const flowsDir = "flows"

// Flows returns every stored flow, excluding soft-deleted ones.
func (fp *Persistence) Flows(ctx context.Context) ([]*models.Flow, error) {
	root := os.DirFS(path.Join(fp.root, flowsDir))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list flow files: %w", err)
	}

	flows := make([]*models.Flow, 0, len(jsonFiles))

	for _, name := range jsonFiles {
		id := name[:len(name)-len(".json")]

		flow, err := fp.FlowByID(ctx, id)
		if err != nil {
			if persistence.IsFlowNotFound(err) {
				continue
			}

			return nil, err
		}

		flows = append(flows, flow)
	}

	return flows, nil
}

// FlowByID loads one flow by id.
func (fp *Persistence) FlowByID(_ context.Context, id string) (*models.Flow, error) {
	data, err := os.ReadFile(fp.flowPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
		}

		return nil, persistence.NewFlowError("GetByID", id, err)
	}

	var flow models.Flow

	err = json.Unmarshal(data, &flow)
	if err != nil {
		return nil, persistence.NewFlowError("GetByID", id, err)
	}

	if flow.DeletedAt != nil {
		return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
	}

	return &flow, nil
}

// SaveFlow writes the flow document, creating or replacing it.
func (fp *Persistence) SaveFlow(_ context.Context, flow *models.Flow) error {
	err := fp.ensureDir(flowsDir)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	now := time.Now().UTC()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	data, err := json.MarshalIndent(flow, "", "  ")
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	err = os.WriteFile(fp.flowPath(flow.ID), data, 0o644)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	return nil
}

// DeleteFlow soft deletes a flow by stamping DeletedAt.
func (fp *Persistence) DeleteFlow(ctx context.Context, id string) error {
	flow, err := fp.FlowByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	flow.DeletedAt = &now

	data, err := json.MarshalIndent(flow, "", "  ")
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	err = os.WriteFile(fp.flowPath(id), data, 0o644)
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	return nil
}

func (fp *Persistence) flowPath(id string) string {
	return path.Join(fp.root, flowsDir, id+".json")
}
