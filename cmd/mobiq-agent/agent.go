package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryan-essi/mobiq/pkg/coordinator"
	"github.com/bryan-essi/mobiq/pkg/devices"
	"github.com/bryan-essi/mobiq/pkg/queue"
	"github.com/bryan-essi/mobiq/pkg/scheduler"
)

// Agent is the headless engine process: it polls the device lab, consumes
// queued run requests, and fires scheduled sweeps.
type Agent struct {
	id          string
	logger      *slog.Logger
	devices     *devices.Registry
	coordinator *coordinator.Coordinator
	receiver    *queue.Receiver
	scheduler   *scheduler.Scheduler
}

func NewAgent(
	id string,
	deviceRegistry *devices.Registry,
	executionCoordinator *coordinator.Coordinator,
	receiver *queue.Receiver,
	flowScheduler *scheduler.Scheduler,
	logger *slog.Logger,
) *Agent {
	return &Agent{
		id:          id,
		logger:      logger.With("module", "mobiq-agent", "agent_id", id),
		devices:     deviceRegistry,
		coordinator: executionCoordinator,
		receiver:    receiver,
		scheduler:   flowScheduler,
	}
}

// Start runs the agent until SIGINT/SIGTERM or ctx cancellation.
func (a *Agent) Start(ctx context.Context) error {
	a.logger.InfoContext(ctx, "Starting agent")

	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()

	go func() {
		if err := a.devices.Run(pollCtx); err != nil && pollCtx.Err() == nil {
			a.logger.ErrorContext(ctx, "Device discovery loop stopped", "error", err)
		}
	}()

	if a.receiver != nil {
		if err := a.receiver.Start(ctx); err != nil {
			return fmt.Errorf("failed to start run-request receiver: %w", err)
		}
	}

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	a.logger.InfoContext(ctx, "Agent started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	a.logger.InfoContext(ctx, "Shutting down agent...")

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	if a.receiver != nil {
		if err := a.receiver.Stop(ctx); err != nil {
			a.logger.ErrorContext(ctx, "Failed to stop run-request receiver", "error", err)
		}
	}

	return nil
}
