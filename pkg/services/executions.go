package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
)

// Executions manages workflow execution records: status transitions
// validated against the state graph, step pointer and per-step results.
type Executions struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

func NewExecutions(persistence persistence.Persistence, logger *slog.Logger) *Executions {
	return &Executions{
		persistence: persistence,
		logger:      logger.With("service", "executions"),
	}
}

// CreateExecutionRequest contains the fields callers provide for a new
// execution record.
type CreateExecutionRequest struct {
	WorkflowID string `validate:"required"`
	Input      string ``
	CreatedBy  string ``
}

// Create persists a new execution in pending status.
func (s *Executions) Create(ctx context.Context, projectID string, req CreateExecutionRequest) (*models.WorkflowExecution, error) {
	workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, projectID, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	now := time.Now().UTC()

	execution := &models.WorkflowExecution{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		WorkflowID:  req.WorkflowID,
		Status:      models.ExecutionStatusPending,
		StepResults: make(map[string]models.StepResult),
		Input:       req.Input,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   req.CreatedBy,
	}

	err = s.persistence.ExecutionRepository().Save(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	return execution, nil
}

// FetchByID retrieves an execution within the project scope.
func (s *Executions) FetchByID(ctx context.Context, projectID, executionID string) (*models.WorkflowExecution, error) {
	execution, err := s.persistence.ExecutionRepository().GetByID(ctx, projectID, executionID)
	if err != nil {
		return nil, err
	}

	if execution == nil {
		return nil, ErrExecutionNotFound
	}

	return execution, nil
}

// List retrieves executions with filtering and pagination.
func (s *Executions) List(ctx context.Context, projectID string, opts persistence.ListExecutionsOptions) ([]*models.WorkflowExecution, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	if opts.Limit > 100 {
		opts.Limit = 100
	}

	executions, err := s.persistence.ExecutionRepository().List(ctx, projectID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	return executions, nil
}

// Transition moves the execution to next after validating the state
// graph, maintaining the set-once started_at/completed_at timestamps.
func (s *Executions) Transition(ctx context.Context, projectID, executionID string, next models.ExecutionStatus) (*models.WorkflowExecution, error) {
	execution, err := s.FetchByID(ctx, projectID, executionID)
	if err != nil {
		return nil, err
	}

	if !execution.Status.CanTransitionTo(next) {
		return nil, &ServiceError{
			Op:      "Transition",
			Code:    "INVALID_STATE_TRANSITION",
			Message: fmt.Sprintf("cannot transition execution from %s to %s", execution.Status, next),
			Err:     ErrInvalidStateTransition,
		}
	}

	execution.ApplyStatus(next, time.Now().UTC())

	err = s.persistence.ExecutionRepository().Save(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to persist execution transition: %w", err)
	}

	return execution, nil
}

// Start transitions pending -> running.
func (s *Executions) Start(ctx context.Context, projectID, executionID string) (*models.WorkflowExecution, error) {
	return s.Transition(ctx, projectID, executionID, models.ExecutionStatusRunning)
}

// Pause transitions running -> paused.
func (s *Executions) Pause(ctx context.Context, projectID, executionID string) (*models.WorkflowExecution, error) {
	return s.Transition(ctx, projectID, executionID, models.ExecutionStatusPaused)
}

// Resume transitions paused -> running.
func (s *Executions) Resume(ctx context.Context, projectID, executionID string) (*models.WorkflowExecution, error) {
	return s.Transition(ctx, projectID, executionID, models.ExecutionStatusRunning)
}

// Cancel transitions running -> cancelled.
func (s *Executions) Cancel(ctx context.Context, projectID, executionID string) (*models.WorkflowExecution, error) {
	return s.Transition(ctx, projectID, executionID, models.ExecutionStatusCancelled)
}

// SetCurrentStep records which step the engine is executing.
func (s *Executions) SetCurrentStep(ctx context.Context, projectID, executionID, stepID string) (*models.WorkflowExecution, error) {
	execution, err := s.FetchByID(ctx, projectID, executionID)
	if err != nil {
		return nil, err
	}

	execution.CurrentStepID = &stepID
	execution.UpdatedAt = time.Now().UTC()

	err = s.persistence.ExecutionRepository().Save(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to persist current step: %w", err)
	}

	return execution, nil
}

// RecordStepResult upserts the result for a step; the last writer for a
// given step id wins.
func (s *Executions) RecordStepResult(ctx context.Context, projectID, executionID, stepID string, result models.StepResult) (*models.WorkflowExecution, error) {
	execution, err := s.FetchByID(ctx, projectID, executionID)
	if err != nil {
		return nil, err
	}

	execution.RecordStepResult(stepID, result)
	execution.UpdatedAt = time.Now().UTC()

	err = s.persistence.ExecutionRepository().Save(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to persist step result: %w", err)
	}

	return execution, nil
}
