package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bryan-essi/mobiq/pkg/persistence"
	"github.com/bryan-essi/mobiq/pkg/persistence/file"
	"github.com/bryan-essi/mobiq/pkg/persistence/postgresql"
)

// NewPersistence picks the storage backend from the database URL scheme.
// Anything that is not a postgres URL is treated as a filesystem root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseScheme(databaseURL) {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize postgresql persistence: %w", err))
		}

		return store
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	}
}

func parseScheme(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
