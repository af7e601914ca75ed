// Package protocol defines the interfaces between the execution engine and
// its external collaborators: the ADB transport, catalog modules, and the
// devices they run against.
package protocol

import (
	"context"

	"github.com/bryan-essi/mobiq/pkg/models"
)

// Bridge is the transport to physically connected devices. Implementations
// wrap the Android Debug Bridge; the engine never shells out directly.
//
// RunCommand must honor ctx cancellation on a best-effort basis: a cancelled
// context releases the caller, even if the underlying device command cannot
// be interrupted. Transport failures are returned as errors; a command that
// ran but exited non-zero is a successful RunCommand with a non-zero
// ExitCode.
type Bridge interface {
	ListConnectedDeviceIDs(ctx context.Context) ([]string, error)
	RunCommand(ctx context.Context, deviceID string, argv []string) (*models.CommandResult, error)
}
