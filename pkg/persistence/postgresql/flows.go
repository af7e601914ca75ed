package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/persistence"
)

// Flows returns all non-deleted flows ordered by creation time.
func (p *Persistence) Flows(ctx context.Context) ([]*models.Flow, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, description, steps, metadata, owner, created_at, updated_at
		FROM flows
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, persistence.NewFlowError("List", "", err)
	}
	defer func() { _ = rows.Close() }()

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, persistence.NewFlowError("List", "", err)
		}

		flows = append(flows, flow)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewFlowError("List", "", err)
	}

	return flows, nil
}

// FlowByID loads one flow by id.
func (p *Persistence) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, description, steps, metadata, owner, created_at, updated_at
		FROM flows
		WHERE id = $1 AND deleted_at IS NULL
	`, id)

	flow, err := scanFlow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
		}

		return nil, persistence.NewFlowError("GetByID", id, err)
	}

	return flow, nil
}

// SaveFlow upserts the flow.
func (p *Persistence) SaveFlow(ctx context.Context, flow *models.Flow) error {
	now := time.Now().UTC()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	steps, err := json.Marshal(flow.Steps)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	metadata, err := json.Marshal(flow.Metadata)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO flows (id, name, description, steps, metadata, owner, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			steps = EXCLUDED.steps,
			metadata = EXCLUDED.metadata,
			owner = EXCLUDED.owner,
			updated_at = EXCLUDED.updated_at
	`, flow.ID, flow.Name, flow.Description, steps, metadata, flow.Owner, flow.CreatedAt, flow.UpdatedAt)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	return nil
}

// DeleteFlow soft deletes the flow.
func (p *Persistence) DeleteFlow(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE flows SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlow(row rowScanner) (*models.Flow, error) {
	var (
		flow     models.Flow
		steps    []byte
		metadata []byte
		owner    sql.NullString
	)

	err := row.Scan(&flow.ID, &flow.Name, &flow.Description, &steps, &metadata, &owner, &flow.CreatedAt, &flow.UpdatedAt)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(steps, &flow.Steps)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		err = json.Unmarshal(metadata, &flow.Metadata)
		if err != nil {
			return nil, err
		}
	}

	flow.Owner = owner.String

	return &flow, nil
}
