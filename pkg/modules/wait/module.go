// Package wait provides the deviceless module that pauses a flow between
// steps, typically to let radio state settle.
package wait

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/protocol"
)

type ModuleFactory struct{}

func NewModuleFactory() *ModuleFactory {
	return &ModuleFactory{}
}

func (*ModuleFactory) ID() string {
	return "wait"
}

func (*ModuleFactory) Definition() *models.ModuleDefinition {
	return &models.ModuleDefinition{
		ID:             "wait",
		Name:           "Wait",
		Description:    "Pauses the flow for a fixed number of seconds.",
		TimeoutSeconds: 120,
		MaxRetries:     0,
		RequiresDevice: false,
	}
}

func (*ModuleFactory) ParameterSchema() string {
	return `{
		"type": "object",
		"properties": {
			"seconds": {
				"type": "number",
				"minimum": 0,
				"maximum": 600,
				"description": "Seconds to pause."
			}
		},
		"required": ["seconds"]
	}`
}

func (f *ModuleFactory) Create() (protocol.Module, error) {
	return &Module{}, nil
}

type Module struct{}

func (m *Module) Execute(ctx context.Context, mctx protocol.ModuleContext, logger *slog.Logger) (*models.CommandResult, error) {
	seconds, ok := numberParam(mctx.Params["seconds"])
	if !ok {
		return nil, errors.New("wait module requires a numeric seconds parameter")
	}

	logger.InfoContext(ctx, "Waiting", "seconds", seconds)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Duration(seconds * float64(time.Second))):
		return &models.CommandResult{ExitCode: 0}, nil
	}
}

func numberParam(raw any) (float64, bool) {
	switch value := raw.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	default:
		return 0, false
	}
}
