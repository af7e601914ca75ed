// Package registry is the module catalog: it owns the immutable module
// definitions and creates module instances for the runner.
package registry

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/bryan-essi/mobiq/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// ErrUnknownModule indicates a module id that is not in the catalog.
var ErrUnknownModule = errors.New("module not registered")

type Registry struct {
	logger          *slog.Logger
	moduleFactories map[string]protocol.ModuleFactory
	parameterSchema map[string]*gojsonschema.Schema
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:          log,
		moduleFactories: make(map[string]protocol.ModuleFactory),
		parameterSchema: make(map[string]*gojsonschema.Schema),
	}
}

// RegisterModule adds a module factory to the catalog, compiling its
// parameter schema when it declares one.
func (r *Registry) RegisterModule(factory protocol.ModuleFactory) error {
	id := factory.ID()

	rawSchema := factory.ParameterSchema()
	if rawSchema != "" {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(rawSchema))
		if err != nil {
			return fmt.Errorf("invalid parameter schema for module %s: %w", id, err)
		}

		r.parameterSchema[id] = schema
	}

	r.moduleFactories[id] = factory

	return nil
}

// ResolveModule returns the catalog definition for the given module id.
func (r *Registry) ResolveModule(moduleID string) (*models.ModuleDefinition, error) {
	factory, ok := r.moduleFactories[moduleID]
	if !ok {
		return nil, fmt.Errorf("module %q: %w", moduleID, ErrUnknownModule)
	}

	return factory.Definition(), nil
}

// CreateModule instantiates the module for one run.
func (r *Registry) CreateModule(moduleID string) (protocol.Module, error) {
	factory, ok := r.moduleFactories[moduleID]
	if !ok {
		return nil, fmt.Errorf("module %q: %w", moduleID, ErrUnknownModule)
	}

	return factory.Create()
}

// ValidateParameters checks step input parameters against the module's
// declared schema. Modules without a schema accept anything.
func (r *Registry) ValidateParameters(moduleID string, params map[string]any) error {
	if _, ok := r.moduleFactories[moduleID]; !ok {
		return fmt.Errorf("module %q: %w", moduleID, ErrUnknownModule)
	}

	schema, ok := r.parameterSchema[moduleID]
	if !ok {
		return nil
	}

	if params == nil {
		params = map[string]any{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("failed to validate parameters for module %s: %w", moduleID, err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid parameters for module %s: %s", moduleID, errs[0].String())
		}

		return fmt.Errorf("invalid parameters for module %s", moduleID)
	}

	return nil
}

// ModuleDefinitions returns every catalog entry.
func (r *Registry) ModuleDefinitions() []*models.ModuleDefinition {
	definitions := make([]*models.ModuleDefinition, 0, len(r.moduleFactories))
	for _, factory := range r.moduleFactories {
		definitions = append(definitions, factory.Definition())
	}

	return definitions
}
