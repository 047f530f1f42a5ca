package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
)

// stepSchema validates the steps array of a workflow definition.
const stepSchema = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"required": ["id", "name"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"name": {"type": "string", "minLength": 1},
			"agent_id": {"type": "string"},
			"depends_on": {"type": "array", "items": {"type": "string"}},
			"config": {"type": "object"}
		},
		"additionalProperties": false
	}
}`

// Workflows manages workflow definitions and starts executions for them.
type Workflows struct {
	persistence persistence.Persistence
	executions  *Executions
	logger      *slog.Logger
	schema      *gojsonschema.Schema
}

func NewWorkflows(persistence persistence.Persistence, executions *Executions, logger *slog.Logger) (*Workflows, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(stepSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile step schema: %w", err)
	}

	return &Workflows{
		persistence: persistence,
		executions:  executions,
		logger:      logger.With("service", "workflows"),
		schema:      schema,
	}, nil
}

// CreateWorkflowRequest contains the fields callers provide for a new
// workflow.
type CreateWorkflowRequest struct {
	Name        string                     `validate:"required,min=1,max=255"`
	Description string                     ``
	Steps       []models.WorkflowStep      `validate:"required,min=1,dive"`
	Scope       models.WorkflowScope       `validate:"omitempty,oneof=personal team public"`
	Environment models.WorkflowEnvironment `validate:"omitempty,oneof=dev staging prod"`
	Tags        []string                   ``
	Metadata    map[string]any             ``
	CreatedBy   string                     ``
}

// Create persists a new workflow at version 1.
func (s *Workflows) Create(ctx context.Context, projectID string, req CreateWorkflowRequest) (*models.Workflow, error) {
	if err := s.validateSteps(req.Steps); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Name:        req.Name,
		Description: req.Description,
		Steps:       req.Steps,
		Scope:       req.Scope,
		Environment: req.Environment,
		Version:     1,
		Tags:        req.Tags,
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   req.CreatedBy,
	}

	if workflow.Scope == "" {
		workflow.Scope = models.WorkflowScopePersonal
	}

	if workflow.Environment == "" {
		workflow.Environment = models.WorkflowEnvironmentDev
	}

	err := s.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// FetchByID retrieves a workflow within the project scope.
func (s *Workflows) FetchByID(ctx context.Context, projectID, workflowID string) (*models.Workflow, error) {
	workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, projectID, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// List retrieves workflows with filtering and pagination.
func (s *Workflows) List(ctx context.Context, projectID string, opts persistence.ListWorkflowsOptions) ([]*models.Workflow, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	if opts.Limit > 100 {
		opts.Limit = 100
	}

	workflows, err := s.persistence.WorkflowRepository().List(ctx, projectID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// UpdateWorkflowRequest contains the updatable fields of a workflow.
// Nil fields are left untouched; any change bumps the version.
type UpdateWorkflowRequest struct {
	Name        *string                     `validate:"omitempty,min=1,max=255"`
	Description *string                     ``
	Steps       []models.WorkflowStep       `validate:"omitempty,min=1,dive"`
	Scope       *models.WorkflowScope       `validate:"omitempty,oneof=personal team public"`
	Environment *models.WorkflowEnvironment `validate:"omitempty,oneof=dev staging prod"`
	Tags        []string                    ``
	Metadata    map[string]any              ``
}

// Update patches the workflow definition and bumps its version.
func (s *Workflows) Update(ctx context.Context, projectID, workflowID string, req UpdateWorkflowRequest) (*models.Workflow, error) {
	if req.Steps != nil {
		if err := s.validateSteps(req.Steps); err != nil {
			return nil, err
		}
	}

	workflow, err := s.FetchByID(ctx, projectID, workflowID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		workflow.Name = *req.Name
	}

	if req.Description != nil {
		workflow.Description = *req.Description
	}

	if req.Steps != nil {
		workflow.Steps = req.Steps
	}

	if req.Scope != nil {
		workflow.Scope = *req.Scope
	}

	if req.Environment != nil {
		workflow.Environment = *req.Environment
	}

	if req.Tags != nil {
		workflow.Tags = req.Tags
	}

	if req.Metadata != nil {
		workflow.Metadata = req.Metadata
	}

	workflow.Version++
	workflow.UpdatedAt = time.Now().UTC()

	err = s.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// Delete soft-deletes a workflow.
func (s *Workflows) Delete(ctx context.Context, projectID, workflowID string) error {
	err := s.persistence.WorkflowRepository().Delete(ctx, projectID, workflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return ErrWorkflowNotFound
		}

		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

// Run creates a pending execution for the workflow.
func (s *Workflows) Run(ctx context.Context, projectID, workflowID, input, createdBy string) (*models.WorkflowExecution, error) {
	return s.executions.Create(ctx, projectID, CreateExecutionRequest{
		WorkflowID: workflowID,
		Input:      input,
		CreatedBy:  createdBy,
	})
}

// validateSteps checks the steps array against the step schema.
func (s *Workflows) validateSteps(steps []models.WorkflowStep) error {
	if len(steps) == 0 {
		return NewValidationError("validateSteps", "STEPS_REQUIRED", "workflow must have at least one step", ErrStepsRequired)
	}

	result, err := s.schema.Validate(gojsonschema.NewGoLoader(steps))
	if err != nil {
		return fmt.Errorf("failed to validate steps: %w", err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return NewValidationError("validateSteps", "STEP_CONFIG_INVALID",
			strings.Join(descriptions, "; "), ErrStepConfigInvalid)
	}

	return nil
}
