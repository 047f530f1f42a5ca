package models

import "time"

// WorkflowScope controls visibility of a workflow within a project.
type WorkflowScope string

const (
	WorkflowScopePersonal WorkflowScope = "personal"
	WorkflowScopeTeam     WorkflowScope = "team"
	WorkflowScopePublic   WorkflowScope = "public"
)

// WorkflowEnvironment tags which environment a workflow targets.
type WorkflowEnvironment string

const (
	WorkflowEnvironmentDev     WorkflowEnvironment = "dev"
	WorkflowEnvironmentStaging WorkflowEnvironment = "staging"
	WorkflowEnvironmentProd    WorkflowEnvironment = "prod"
)

// WorkflowStep is a named unit of work within a workflow. Step execution
// itself is performed by the external bridge engine.
type WorkflowStep struct {
	ID        string         `json:"id"         validate:"required"`
	Name      string         `json:"name"       validate:"required"`
	AgentID   string         `json:"agent_id,omitempty"`
	DependsOn []string       `json:"depends_on,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
}

// Workflow is an ordered step definition owned by a project.
type Workflow struct {
	ID          string              `json:"id"`
	ProjectID   string              `json:"project_id"`
	Name        string              `json:"name"        validate:"required,min=1,max=255"`
	Description string              `json:"description,omitempty"`
	Steps       []WorkflowStep      `json:"steps"`
	Scope       WorkflowScope       `json:"scope"`
	Environment WorkflowEnvironment `json:"environment"`
	Version     int                 `json:"version"`
	Tags        []string            `json:"tags,omitempty"`
	Metadata    map[string]any      `json:"metadata,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	CreatedBy   string              `json:"created_by,omitempty"`
	DeletedAt   *time.Time          `json:"deleted_at,omitempty"`
}
