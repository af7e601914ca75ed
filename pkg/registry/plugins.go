package registry

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"

	"github.com/bryan-essi/mobiq/pkg/protocol"
)

// LoadModulePlugins loads compiled module factories from *.so files under
// pluginsPath/modules. Each plugin must export a "Module" symbol
// implementing protocol.ModuleFactory.
func (r *Registry) LoadModulePlugins(pluginsPath string) ([]protocol.ModuleFactory, error) {
	rootPath := pluginsPath + "/modules"
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "**/*.so")
	if err != nil {
		return nil, err
	}

	l := r.logger.With(slog.String("path", rootPath))
	l.Info("Loading module plugins")

	factories := make([]protocol.ModuleFactory, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		symbol, err := plg.Lookup("Module")
		if err != nil {
			return nil, fmt.Errorf("plugin %s has no Module symbol: %w", p, err)
		}

		factory, ok := symbol.(protocol.ModuleFactory)
		if !ok {
			return nil, fmt.Errorf("plugin %s Module symbol is not a ModuleFactory", p)
		}

		factories = append(factories, factory)

		l.Info("Loaded module plugin", slog.String("plugin", p))
	}

	return factories, nil
}
