// Package web provides HTTP request and response types for the execution
// engine API.
package web

import "github.com/bryan-essi/mobiq/pkg/models"

// CreateFlowRequest is the request body for creating a flow.
type CreateFlowRequest struct {
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Steps       []FlowStepInput `json:"steps"       validate:"required,min=1,dive"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	Owner       string          `json:"owner"`
}

// UpdateFlowRequest supports partial updates; nil fields are left untouched.
type UpdateFlowRequest struct {
	Name        *string         `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string         `json:"description,omitempty"`
	Steps       []FlowStepInput `json:"steps,omitempty"       validate:"omitempty,min=1,dive"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

// FlowStepInput is one step in a submitted flow.
type FlowStepInput struct {
	Sequence          int            `json:"sequence"           validate:"gte=0"`
	ModuleID          string         `json:"module_id"          validate:"required"`
	Name              string         `json:"name"`
	InputParameters   map[string]any `json:"input_parameters,omitempty"`
	ContinueOnFailure bool           `json:"continue_on_failure"`
	RetryCount        int            `json:"retry_count"        validate:"gte=0"`
	TimeoutOverride   *int           `json:"timeout_override,omitempty" validate:"omitempty,gte=0"`
}

func (s FlowStepInput) toModel() *models.FlowStep {
	return &models.FlowStep{
		Sequence:          s.Sequence,
		ModuleID:          s.ModuleID,
		Name:              s.Name,
		InputParameters:   s.InputParameters,
		ContinueOnFailure: s.ContinueOnFailure,
		RetryCount:        s.RetryCount,
		TimeoutOverride:   s.TimeoutOverride,
	}
}

func flowSteps(inputs []FlowStepInput) []*models.FlowStep {
	steps := make([]*models.FlowStep, 0, len(inputs))
	for _, input := range inputs {
		steps = append(steps, input.toModel())
	}

	return steps
}

// StartExecutionRequest is the request body for starting a flow run.
type StartExecutionRequest struct {
	FlowID    string   `json:"flow_id"    validate:"required"`
	DeviceIDs []string `json:"device_ids" validate:"required,min=1,dive,required"`
}
