// Package cmd provides shared construction helpers for the matrix
// binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentmatrix/matrix/pkg/persistence"
	"github.com/agentmatrix/matrix/pkg/persistence/file"
	"github.com/agentmatrix/matrix/pkg/persistence/postgresql"
)

// NewPersistence creates a persistence backend from the database URL
// scheme: postgres:// selects PostgreSQL, anything else the file backend.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch persistenceProvider(databaseURL) {
	case "postgres":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgresql persistence: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func persistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	if provider == "postgres" || provider == "postgresql" {
		return "postgres"
	}

	return "file"
}
