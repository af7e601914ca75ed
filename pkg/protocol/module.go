package protocol

import (
	"context"
	"log/slog"

	"github.com/bryan-essi/mobiq/pkg/models"
)

// ModuleContext carries everything a module needs to act on one device.
// Params are the flow step's input parameters, already validated against the
// module's parameter schema by the registry.
type ModuleContext struct {
	ExecutionID string
	DeviceID    string
	Params      map[string]any
	Bridge      Bridge
}

// Module is one runnable unit of device automation. Execute performs a
// single attempt; timeout and retry policy belong to the runner, not the
// module.
type Module interface {
	Execute(ctx context.Context, mctx ModuleContext, logger *slog.Logger) (*models.CommandResult, error)
}

// ModuleFactory creates module instances and describes them to the catalog.
type ModuleFactory interface {
	// ID returns the stable catalog id of the module.
	ID() string

	// Definition returns the immutable catalog entry.
	Definition() *models.ModuleDefinition

	// ParameterSchema returns the JSON schema for step input parameters, or
	// an empty string when the module takes none.
	ParameterSchema() string

	Create() (Module, error)
}
