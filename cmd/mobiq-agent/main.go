package main

import (
	"context"
	"os"

	"github.com/bryan-essi/mobiq/pkg/bridge/adb"
	"github.com/bryan-essi/mobiq/pkg/cmd"
	"github.com/bryan-essi/mobiq/pkg/config"
	"github.com/bryan-essi/mobiq/pkg/coordinator"
	"github.com/bryan-essi/mobiq/pkg/devices"
	"github.com/bryan-essi/mobiq/pkg/flow"
	"github.com/bryan-essi/mobiq/pkg/log"
	"github.com/bryan-essi/mobiq/pkg/otelhelper"
	"github.com/bryan-essi/mobiq/pkg/queue"
	"github.com/bryan-essi/mobiq/pkg/runner"
	"github.com/bryan-essi/mobiq/pkg/scheduler"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "mobiq-agent",
		Usage:                 "Run the device execution agent",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "agent-id",
				Aliases: []string{"id"},
				Usage:   "Custom agent ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("AGENT_ID"),
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
				Name:    "redis-url",
				Usage:   "Redis address for the run-request queue (disabled if empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file with queue settings and recurring flow schedules",
				Value:   "",
				Sources: cli.EnvVars("CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:     "plugins-path",
				Usage:    "Path to the directory containing module plugins",
				Value:    "",
				Required: false,
				Sources:  cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("OTEL_ENABLED"),
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

			agentID := command.String("agent-id")
			if agentID == "" {
				agentID = "agent-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("mobiq-agent").With("agent_id", agentID)
			logger.InfoContext(ctx, "Initializing agent")

			catalog := cmd.NewRegistry(logger, command.String("plugins-path"))

			eventBus := cmd.NewEventBus(command.String("event-bus"), "mobiq-agent", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			bridge := adb.NewBridge(logger, adb.WithBinary(command.String("adb-path")))
			deviceRegistry := devices.NewRegistry(bridge, eventBus, logger)
			moduleRunner := runner.NewModuleRunner(catalog, bridge, logger)
			engine := flow.NewEngine(moduleRunner, eventBus, logger)

			coordinatorOpts := []coordinator.Option{}

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "mobiq-agent")
				if err != nil {
					return err
				}

				coordinatorOpts = append(coordinatorOpts, coordinator.WithTracer(tracer))
			}

			executionCoordinator := coordinator.NewCoordinator(
				deviceRegistry, catalog, engine, store, eventBus, logger, coordinatorOpts...)

			start := func(ctx context.Context, flowID string, deviceIDs []string) error {
				_, err := executionCoordinator.Start(ctx, flowID, deviceIDs)

				return err
			}

			cfg := &config.AgentConfigFile{}

			if path := command.String("config"); path != "" {
				var err error

				cfg, err = config.LoadAgentConfig(path)
				if err != nil {
					return err
				}
			}

			queueAddr := cfg.Queue.Addr
			if queueAddr == "" {
				queueAddr = command.String("redis-url")
			}

			var receiver *queue.Receiver

			if queueAddr != "" {
				opts := []queue.Option{queue.WithCredentials(cfg.Queue.Password, cfg.Queue.DB)}
				if cfg.Queue.Name != "" {
					opts = append(opts, queue.WithQueue(cfg.Queue.Name))
				}

				var err error

				receiver, err = queue.NewReceiver(queueAddr, start, logger, opts...)
				if err != nil {
					return err
				}
			}

			var flowScheduler *scheduler.Scheduler

			if len(cfg.Schedules) > 0 {
				flowScheduler = scheduler.NewScheduler(start, logger, nil)

				for _, entry := range cfg.Schedules {
					if err := flowScheduler.Add(entry); err != nil {
						return err
					}
				}
			}

			agent := NewAgent(agentID, deviceRegistry, executionCoordinator, receiver, flowScheduler, logger)

			return agent.Start(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
