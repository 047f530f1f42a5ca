package web

import (
	"time"

	"github.com/agentmatrix/matrix/pkg/models"
)

// CreateRunRequest is the request body for creating an overnight run.
type CreateRunRequest struct {
	Name         string            `json:"name"                    validate:"max=255"`
	Description  string            `json:"description,omitempty"`
	WorkflowIDs  []string          `json:"workflow_ids"            validate:"required,min=1,dive,required"`
	ScheduledFor *time.Time        `json:"scheduled_for,omitempty"`
	Config       *models.RunConfig `json:"config,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
}

// CreateWorkflowRequest is the request body for creating a workflow.
type CreateWorkflowRequest struct {
	Name        string                     `json:"name"                  validate:"required,min=1,max=255"`
	Description string                     `json:"description,omitempty"`
	Steps       []models.WorkflowStep      `json:"steps"                 validate:"required,min=1,dive"`
	Scope       models.WorkflowScope       `json:"scope,omitempty"       validate:"omitempty,oneof=personal team public"`
	Environment models.WorkflowEnvironment `json:"environment,omitempty" validate:"omitempty,oneof=dev staging prod"`
	Tags        []string                   `json:"tags,omitempty"`
	Metadata    map[string]any             `json:"metadata,omitempty"`
}

// UpdateWorkflowRequest is the request body for partially updating a
// workflow. Omitted fields are left untouched.
type UpdateWorkflowRequest struct {
	Name        *string                     `json:"name,omitempty"        validate:"omitempty,min=1,max=255"`
	Description *string                     `json:"description,omitempty"`
	Steps       []models.WorkflowStep       `json:"steps,omitempty"       validate:"omitempty,min=1,dive"`
	Scope       *models.WorkflowScope       `json:"scope,omitempty"       validate:"omitempty,oneof=personal team public"`
	Environment *models.WorkflowEnvironment `json:"environment,omitempty" validate:"omitempty,oneof=dev staging prod"`
	Tags        []string                    `json:"tags,omitempty"`
	Metadata    map[string]any              `json:"metadata,omitempty"`
}

// RunWorkflowRequest is the request body for starting an execution.
type RunWorkflowRequest struct {
	Input string `json:"input,omitempty"`
}

// CreateGateRequest is the request body for creating a gate.
type CreateGateRequest struct {
	WorkflowID  string          `json:"workflow_id"        validate:"required"`
	ExecutionID string          `json:"execution_id"       validate:"required"`
	StepID      string          `json:"step_id"            validate:"required"`
	GateType    models.GateType `json:"gate_type"          validate:"required,oneof=approval review deploy cost"`
	Config      map[string]any  `json:"config,omitempty"`
	Context     map[string]any  `json:"context,omitempty"`
}

// ResolveGateRequest is the request body for approving or rejecting a gate.
type ResolveGateRequest struct {
	ReviewedBy string `json:"reviewed_by" validate:"required"`
	Reason     string `json:"reason,omitempty"`
}

// CreateInterventionRequest is the request body for creating an intervention.
type CreateInterventionRequest struct {
	WorkflowID       string                  `json:"workflow_id"       validate:"required"`
	ExecutionID      string                  `json:"execution_id"      validate:"required"`
	StepID           *string                 `json:"step_id,omitempty"`
	InterventionType models.InterventionType `json:"intervention_type" validate:"required,oneof=pause resume inject approve reject cancel"`
	Message          string                  `json:"message,omitempty"`
	Data             map[string]any          `json:"data,omitempty"`
}
