// Package shell provides the generic module that runs an arbitrary adb
// shell command on the target device.
package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/protocol"
)

// ModuleFactory creates shell module instances.
type ModuleFactory struct{}

func NewModuleFactory() *ModuleFactory {
	return &ModuleFactory{}
}

func (*ModuleFactory) ID() string {
	return "shell"
}

func (*ModuleFactory) Definition() *models.ModuleDefinition {
	return &models.ModuleDefinition{
		ID:             "shell",
		Name:           "Shell Command",
		Description:    "Runs an arbitrary shell command on the device and records its output.",
		TimeoutSeconds: 30,
		MaxRetries:     2,
		RequiresDevice: true,
	}
}

func (*ModuleFactory) ParameterSchema() string {
	return `{
		"type": "object",
		"properties": {
			"argv": {
				"type": "array",
				"items": {"type": "string"},
				"minItems": 1,
				"description": "Command and arguments to run through 'adb shell'."
			}
		},
		"required": ["argv"]
	}`
}

func (f *ModuleFactory) Create() (protocol.Module, error) {
	return &Module{}, nil
}

type Module struct{}

func (m *Module) Execute(ctx context.Context, mctx protocol.ModuleContext, logger *slog.Logger) (*models.CommandResult, error) {
	argv, err := argvParam(mctx.Params)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Running shell command", "argv", argv)

	return mctx.Bridge.RunCommand(ctx, mctx.DeviceID, argv)
}

func argvParam(params map[string]any) ([]string, error) {
	raw, ok := params["argv"]
	if !ok {
		return nil, errors.New("shell module requires an argv parameter")
	}

	switch value := raw.(type) {
	case []string:
		return value, nil
	case []any:
		argv := make([]string, 0, len(value))

		for _, item := range value {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("argv element %v is not a string", item)
			}

			argv = append(argv, s)
		}

		return argv, nil
	default:
		return nil, fmt.Errorf("argv must be a string array, got %T", raw)
	}
}
