package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/persistence"
)

// SaveExecutionRecord upserts a finalized execution. The flow snapshot is
// not stored; the record references the flow by id.
func (p *Persistence) SaveExecutionRecord(ctx context.Context, execution *models.Execution) error {
	devices, err := json.Marshal(execution.Devices)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	var endTime any
	if execution.EndTime != nil {
		endTime = *execution.EndTime
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO executions (id, flow_id, status, devices, progress_percentage, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			devices = EXCLUDED.devices,
			progress_percentage = EXCLUDED.progress_percentage,
			end_time = EXCLUDED.end_time
	`, execution.ID, execution.FlowID, string(execution.Status), devices,
		execution.ProgressPercentage, execution.StartTime, endTime)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

// Executions returns all stored execution records, newest first.
func (p *Persistence) Executions(ctx context.Context) ([]*models.Execution, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, flow_id, status, devices, progress_percentage, start_time, end_time
		FROM executions
		ORDER BY start_time DESC
	`)
	if err != nil {
		return nil, persistence.NewExecutionError("List", "", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*models.Execution, 0)

	for rows.Next() {
		record, err := scanExecution(rows)
		if err != nil {
			return nil, persistence.NewExecutionError("List", "", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewExecutionError("List", "", err)
	}

	return records, nil
}

// ExecutionByID loads one execution record by id.
func (p *Persistence) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, flow_id, status, devices, progress_percentage, start_time, end_time
		FROM executions
		WHERE id = $1
	`, id)

	record, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return record, nil
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution models.Execution
		status    string
		devices   []byte
		endTime   sql.NullTime
	)

	err := row.Scan(&execution.ID, &execution.FlowID, &status, &devices,
		&execution.ProgressPercentage, &execution.StartTime, &endTime)
	if err != nil {
		return nil, err
	}

	execution.Status = models.ExecutionStatus(status)

	err = json.Unmarshal(devices, &execution.Devices)
	if err != nil {
		return nil, err
	}

	if endTime.Valid {
		execution.EndTime = &endTime.Time
	}

	return &execution, nil
}
