// Package persistence provides the data storage abstraction for runs,
// executions, gates, interventions and workflows.
package persistence

import (
	"context"
	"time"

	"github.com/agentmatrix/matrix/pkg/models"
)

// Persistence is the storage entry point. Every repository is scoped by
// project id and honors soft deletes.
type Persistence interface {
	OvernightRunRepository() OvernightRunRepository
	ExecutionRepository() ExecutionRepository
	GateRepository() GateRepository
	InterventionRepository() InterventionRepository
	WorkflowRepository() WorkflowRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListRunsOptions filters overnight run listings.
type ListRunsOptions struct {
	Status          *models.RunStatus
	ScheduledAfter  *time.Time
	ScheduledBefore *time.Time
	Limit           int
	Offset          int
}

// OvernightRunRepository stores overnight runs. Save persists the full
// record; the batch loop relies on each Save being durable before the
// next iteration begins.
type OvernightRunRepository interface {
	Save(ctx context.Context, run *models.OvernightRun) error
	GetByID(ctx context.Context, projectID, runID string) (*models.OvernightRun, error)
	List(ctx context.Context, projectID string, opts ListRunsOptions) ([]*models.OvernightRun, error)
	// ListDue returns scheduled runs across all projects whose
	// scheduled_for is at or before now. Used by the runner daemon.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.OvernightRun, error)
	Delete(ctx context.Context, projectID, runID string) error
}

// ListExecutionsOptions filters execution listings.
type ListExecutionsOptions struct {
	WorkflowID string
	Status     *models.ExecutionStatus
	Limit      int
	Offset     int
}

// ExecutionRepository stores workflow executions.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, projectID, executionID string) (*models.WorkflowExecution, error)
	List(ctx context.Context, projectID string, opts ListExecutionsOptions) ([]*models.WorkflowExecution, error)
}

// ListGatesOptions filters gate listings.
type ListGatesOptions struct {
	WorkflowID  string
	ExecutionID string
	GateType    *models.GateType
	Status      *models.GateStatus
	Limit       int
	Offset      int
}

// GateRepository stores approval gates.
type GateRepository interface {
	Save(ctx context.Context, gate *models.Gate) error
	GetByID(ctx context.Context, projectID, gateID string) (*models.Gate, error)
	List(ctx context.Context, projectID string, opts ListGatesOptions) ([]*models.Gate, error)
	// GetForStep returns the gate for the exact (execution, step) pair,
	// or nil when none exists.
	GetForStep(ctx context.Context, projectID, executionID, stepID string) (*models.Gate, error)
}

// ListInterventionsOptions filters intervention listings.
type ListInterventionsOptions struct {
	WorkflowID  string
	ExecutionID string
	Type        *models.InterventionType
	Status      *models.InterventionStatus
	Limit       int
	Offset      int
}

// InterventionRepository stores interventions. Listings are ordered by
// creation time ascending so consumers apply control actions in order.
type InterventionRepository interface {
	Save(ctx context.Context, intervention *models.Intervention) error
	GetByID(ctx context.Context, projectID, interventionID string) (*models.Intervention, error)
	List(ctx context.Context, projectID string, opts ListInterventionsOptions) ([]*models.Intervention, error)
}

// ListWorkflowsOptions filters workflow listings.
type ListWorkflowsOptions struct {
	Name        string
	Scope       *models.WorkflowScope
	Environment *models.WorkflowEnvironment
	Limit       int
	Offset      int
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, projectID, workflowID string) (*models.Workflow, error)
	List(ctx context.Context, projectID string, opts ListWorkflowsOptions) ([]*models.Workflow, error)
	Delete(ctx context.Context, projectID, workflowID string) error
}
