package models

import "time"

// Flow is an ordered sequence of module invocations run as one logical test.
type Flow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Steps       []*FlowStep    `json:"steps"       validate:"required,min=1,dive"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Owner       string         `json:"owner"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
}

// FlowStep references one catalog module with per-step execution policy.
// Sequence numbers form a strict total order within a flow.
type FlowStep struct {
	Sequence          int            `json:"sequence"           validate:"gte=0"`
	ModuleID          string         `json:"module_id"          validate:"required"`
	Name              string         `json:"name"`
	InputParameters   map[string]any `json:"input_parameters,omitempty"`
	ContinueOnFailure bool           `json:"continue_on_failure"`
	RetryCount        int            `json:"retry_count"        validate:"gte=0"` // overrides the module's max_retries when positive
	TimeoutOverride   *int           `json:"timeout_override,omitempty"`          // seconds
}

// StepTimeout resolves the effective wall-clock bound for one attempt,
// preferring the step override over the module default.
func (s *FlowStep) StepTimeout(def *ModuleDefinition) time.Duration {
	if s.TimeoutOverride != nil {
		return time.Duration(*s.TimeoutOverride) * time.Second
	}

	return def.Timeout()
}

// StepRetries resolves the retry budget for one step, preferring a positive
// step retry_count over the module's max_retries default.
func (s *FlowStep) StepRetries(def *ModuleDefinition) int {
	if s.RetryCount > 0 {
		return s.RetryCount
	}

	return def.MaxRetries
}

// Snapshot returns a deep copy of the flow. Running executions operate on a
// copy so later edits to the stored flow never affect an in-flight run.
func (f *Flow) Snapshot() *Flow {
	copied := *f

	copied.Steps = make([]*FlowStep, len(f.Steps))
	for i, step := range f.Steps {
		stepCopy := *step

		if step.TimeoutOverride != nil {
			override := *step.TimeoutOverride
			stepCopy.TimeoutOverride = &override
		}

		if step.InputParameters != nil {
			params := make(map[string]any, len(step.InputParameters))
			for k, v := range step.InputParameters {
				params[k] = v
			}

			stepCopy.InputParameters = params
		}

		copied.Steps[i] = &stepCopy
	}

	return &copied
}

// ValidateStepOrder checks that step sequence numbers are strictly
// increasing with no duplicates.
func (f *Flow) ValidateStepOrder() bool {
	for i := 1; i < len(f.Steps); i++ {
		if f.Steps[i].Sequence <= f.Steps[i-1].Sequence {
			return false
		}
	}

	return true
}
