// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/bryan-essi/mobiq/pkg/modules/airplanemode"
	"github.com/bryan-essi/mobiq/pkg/modules/shell"
	"github.com/bryan-essi/mobiq/pkg/modules/wait"
	"github.com/bryan-essi/mobiq/pkg/protocol"
	"github.com/bryan-essi/mobiq/pkg/registry"
)

// NewRegistry builds the module catalog: native modules plus any compiled
// module plugins found under pluginsPath.
func NewRegistry(log *slog.Logger, pluginsPath string) *registry.Registry {
	reg := registry.NewRegistry(log)

	mustRegister(reg, shell.NewModuleFactory())
	mustRegister(reg, airplanemode.NewModuleFactory())
	mustRegister(reg, wait.NewModuleFactory())

	if pluginsPath != "" {
		factories, err := reg.LoadModulePlugins(pluginsPath)
		if err != nil {
			panic(err)
		}

		for _, factory := range factories {
			mustRegister(reg, factory)
		}
	}

	return reg
}

func mustRegister(reg *registry.Registry, factory protocol.ModuleFactory) {
	if err := reg.RegisterModule(factory); err != nil {
		panic(err)
	}
}
