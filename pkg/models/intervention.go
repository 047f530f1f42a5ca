package models

import "time"

// InterventionType names the control action injected into an execution.
type InterventionType string

const (
	InterventionTypePause   InterventionType = "pause"
	InterventionTypeResume  InterventionType = "resume"
	InterventionTypeInject  InterventionType = "inject"
	InterventionTypeApprove InterventionType = "approve"
	InterventionTypeReject  InterventionType = "reject"
	InterventionTypeCancel  InterventionType = "cancel"
)

// InterventionStatus is set once by the execution engine that consumes
// the intervention.
type InterventionStatus string

const (
	InterventionStatusPending InterventionStatus = "pending"
	InterventionStatusApplied InterventionStatus = "applied"
	InterventionStatusFailed  InterventionStatus = "failed"
)

// Intervention is an immutable record of an externally injected control
// action against an execution. The record itself does not drive
// pause/resume; the execution engine polls pending interventions and acts
// on them.
type Intervention struct {
	ID               string             `json:"id"`
	ProjectID        string             `json:"project_id"`
	WorkflowID       string             `json:"workflow_id"`
	ExecutionID      string             `json:"execution_id"`
	StepID           *string            `json:"step_id,omitempty"`
	InterventionType InterventionType   `json:"intervention_type"`
	Message          string             `json:"message,omitempty"`
	Data             map[string]any     `json:"data,omitempty"`
	Status           InterventionStatus `json:"status"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	CreatedBy        string             `json:"created_by,omitempty"`
}
