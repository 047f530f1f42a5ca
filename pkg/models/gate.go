package models

import "time"

// GateType classifies what kind of human decision a gate is waiting for.
type GateType string

const (
	GateTypeApproval GateType = "approval"
	GateTypeReview   GateType = "review"
	GateTypeDeploy   GateType = "deploy"
	GateTypeCost     GateType = "cost"
)

// GateStatus is the resolution state of a gate. A gate is resolved exactly
// once; approved and rejected are terminal.
type GateStatus string

const (
	GateStatusPending  GateStatus = "pending"
	GateStatusApproved GateStatus = "approved"
	GateStatusRejected GateStatus = "rejected"
)

// Gate blocks a named step of an execution pending a human decision.
// Absence of a gate for a step is not implicit approval; callers must
// check existence.
type Gate struct {
	ID              string         `json:"id"`
	ProjectID       string         `json:"project_id"`
	WorkflowID      string         `json:"workflow_id"`
	ExecutionID     string         `json:"execution_id"`
	StepID          string         `json:"step_id"`
	GateType        GateType       `json:"gate_type"`
	Status          GateStatus     `json:"status"`
	ReviewedBy      string         `json:"reviewed_by,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	Config          map[string]any `json:"config,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	CreatedBy       string         `json:"created_by,omitempty"`
}

// Resolved reports whether the gate has already been approved or rejected.
func (g *Gate) Resolved() bool {
	return g.Status != GateStatusPending
}
