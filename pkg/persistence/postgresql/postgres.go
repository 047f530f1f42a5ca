// Package postgresql provides PostgreSQL persistence for runs,
// executions, gates, interventions and workflows.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/agentmatrix/matrix/pkg/persistence"
	"github.com/agentmatrix/matrix/pkg/persistence/sqlbase"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	runRepo       *RunRepository
	executionRepo *ExecutionRepository
	gateRepo      *GateRepository
	intervRepo    *InterventionRepository
	workflowRepo  *WorkflowRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs
// pending schema migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		runRepo:       &RunRepository{db: database, logger: logger},
		executionRepo: &ExecutionRepository{db: database, logger: logger},
		gateRepo:      &GateRepository{db: database, logger: logger},
		intervRepo:    &InterventionRepository{db: database, logger: logger},
		workflowRepo:  &WorkflowRepository{db: database, logger: logger},
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) OvernightRunRepository() persistence.OvernightRunRepository {
	return p.runRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) GateRepository() persistence.GateRepository {
	return p.gateRepo
}

func (p *Persistence) InterventionRepository() persistence.InterventionRepository {
	return p.intervRepo
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

// closeRows closes rows and logs any error; it is used from defers.
func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
