package main

import (
	"context"
	"os"

	"github.com/bryan-essi/mobiq/pkg/bridge/adb"
	"github.com/bryan-essi/mobiq/pkg/cmd"
	"github.com/bryan-essi/mobiq/pkg/coordinator"
	"github.com/bryan-essi/mobiq/pkg/devices"
	"github.com/bryan-essi/mobiq/pkg/flow"
	"github.com/bryan-essi/mobiq/pkg/log"
	"github.com/bryan-essi/mobiq/pkg/runner"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9191

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "mobiq-api",
		Usage:                 "Manage flows and run them on the device lab",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (memory, kafka)",
				Value:   "memory",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "adb-path",
				Usage:   "Path to the adb binary",
				Value:   "adb",
				Sources: cli.EnvVars("ADB_PATH"),
			},
			&cli.StringFlag{
				Name:     "plugins-path",
				Usage:    "Path to the directory containing module plugins",
				Value:    "",
				Required: false,
				Sources:  cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Mobiq API")

			catalog := cmd.NewRegistry(logger, command.String("plugins-path"))

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "mobiq-api", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			bridge := adb.NewBridge(logger, adb.WithBinary(command.String("adb-path")))
			deviceRegistry := devices.NewRegistry(bridge, eventBus, logger)

			go func() {
				if err := deviceRegistry.Run(ctx); err != nil && ctx.Err() == nil {
					logger.ErrorContext(ctx, "Device discovery loop stopped", "error", err)
				}
			}()

			moduleRunner := runner.NewModuleRunner(catalog, bridge, logger)
			engine := flow.NewEngine(moduleRunner, eventBus, logger)
			executionCoordinator := coordinator.NewCoordinator(
				deviceRegistry, catalog, engine, store, eventBus, logger)

			api := NewAPI(logger, executionCoordinator, store, catalog, deviceRegistry)

			err := api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
