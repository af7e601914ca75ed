// Package airplanemode provides the module that toggles airplane mode and
// confirms the resulting radio state.
package airplanemode

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/protocol"
)

type ModuleFactory struct{}

func NewModuleFactory() *ModuleFactory {
	return &ModuleFactory{}
}

func (*ModuleFactory) ID() string {
	return "airplanemode"
}

func (*ModuleFactory) Definition() *models.ModuleDefinition {
	return &models.ModuleDefinition{
		ID:             "airplanemode",
		Name:           "Airplane Mode",
		Description:    "Toggles airplane mode and reads the setting back to confirm the new state.",
		TimeoutSeconds: 15,
		MaxRetries:     1,
		RequiresDevice: true,
	}
}

func (*ModuleFactory) ParameterSchema() string {
	return `{
		"type": "object",
		"properties": {
			"enabled": {
				"type": "boolean",
				"description": "Target airplane mode state."
			}
		},
		"required": ["enabled"]
	}`
}

func (f *ModuleFactory) Create() (protocol.Module, error) {
	return &Module{}, nil
}

type Module struct{}

func (m *Module) Execute(ctx context.Context, mctx protocol.ModuleContext, logger *slog.Logger) (*models.CommandResult, error) {
	enabled, ok := mctx.Params["enabled"].(bool)
	if !ok {
		return nil, errors.New("airplanemode module requires a boolean enabled parameter")
	}

	value := "0"
	if enabled {
		value = "1"
	}

	logger.InfoContext(ctx, "Setting airplane mode", "enabled", enabled)

	result, err := mctx.Bridge.RunCommand(ctx, mctx.DeviceID,
		[]string{"settings", "put", "global", "airplane_mode_on", value})
	if err != nil {
		return nil, err
	}

	if result.ExitCode != 0 {
		return result, nil
	}

	broadcast, err := mctx.Bridge.RunCommand(ctx, mctx.DeviceID,
		[]string{"am", "broadcast", "-a", "android.intent.action.AIRPLANE_MODE",
			"--ez", "state", boolString(enabled)})
	if err != nil {
		return nil, err
	}

	if broadcast.ExitCode != 0 {
		return broadcast, nil
	}

	// Read the state back. A toggle that cannot be confirmed is reported
	// with state_confirmed=false rather than trusted blindly.
	confirm, err := mctx.Bridge.RunCommand(ctx, mctx.DeviceID,
		[]string{"settings", "get", "global", "airplane_mode_on"})
	if err != nil || confirm.ExitCode != 0 {
		logger.WarnContext(ctx, "Airplane mode state could not be confirmed", "enabled", enabled)

		return &models.CommandResult{
			ExitCode:       0,
			Stdout:         result.Stdout,
			StateConfirmed: false,
		}, nil
	}

	got := strings.TrimSpace(confirm.Stdout)
	if got != value {
		return &models.CommandResult{
			ExitCode: 1,
			Stderr:   "airplane mode read-back mismatch: want " + value + ", got " + got,
		}, nil
	}

	return &models.CommandResult{
		ExitCode:       0,
		Stdout:         got,
		StateConfirmed: true,
	}, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}

	return "false"
}
