// Package adb implements the device bridge on top of the adb binary. Every
// command is a fresh adb process; the adb server multiplexes the actual USB
// or TCP transport.
package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/bryan-essi/mobiq/pkg/models"
)

const defaultBinary = "adb"

// Bridge shells out to adb. It is stateless and safe for concurrent use;
// per-device serialization is the device handle's job, not the bridge's.
type Bridge struct {
	binary string
	logger *slog.Logger
}

type Option func(*Bridge)

// WithBinary overrides the adb binary path.
func WithBinary(path string) Option {
	return func(b *Bridge) {
		b.binary = path
	}
}

func NewBridge(logger *slog.Logger, opts ...Option) *Bridge {
	bridge := &Bridge{
		binary: defaultBinary,
		logger: logger.With("module", "adb"),
	}

	for _, opt := range opts {
		opt(bridge)
	}

	return bridge
}

// ListConnectedDeviceIDs parses `adb devices` output. Only devices in the
// "device" state count as connected; "offline" and "unauthorized" entries
// are not usable targets.
func (b *Bridge) ListConnectedDeviceIDs(ctx context.Context) ([]string, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, b.binary, "devices")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("adb devices: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	ids := make([]string, 0, 4)

	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "device" {
			ids = append(ids, fields[0])
		}
	}

	return ids, nil
}

// RunCommand runs `adb -s <device> shell <argv...>`. A non-zero device-side
// exit code is a result, not an error; only failures to reach the device at
// all are returned as errors.
func (b *Bridge) RunCommand(ctx context.Context, deviceID string, argv []string) (*models.CommandResult, error) {
	if len(argv) == 0 {
		return nil, errors.New("adb shell: empty argv")
	}

	args := append([]string{"-s", deviceID, "shell"}, argv...)

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, b.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	b.logger.DebugContext(ctx, "Running adb shell command", "device_id", deviceID, "argv", argv)

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &models.CommandResult{
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			}, nil
		}

		return nil, fmt.Errorf("adb shell on %s: %w", deviceID, err)
	}

	return &models.CommandResult{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}
