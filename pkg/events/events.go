// Package events defines event types for run and execution lifecycle
// notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the single topic all lifecycle events are published on.
const Topic = "matrix.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Overnight run lifecycle events.
	RunStartRequestedEvent    EventType = "run.start.requested"
	RunStartedEvent           EventType = "run.started"
	RunPausedEvent            EventType = "run.paused"
	RunResumedEvent           EventType = "run.resumed"
	RunCancelledEvent         EventType = "run.cancelled"
	RunFinishedEvent          EventType = "run.finished"
	RunWorkflowCompletedEvent EventType = "run.workflow.completed"
	RunWorkflowFailedEvent    EventType = "run.workflow.failed"

	// Gate and intervention events.
	GateApprovedEvent        EventType = "gate.approved"
	GateRejectedEvent        EventType = "gate.rejected"
	InterventionCreatedEvent EventType = "intervention.created"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	ProjectID string         `json:"project_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, projectID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ProjectID: projectID,
		Metadata:  make(map[string]any),
	}
}

// RunStartRequested asks the runner daemon to begin executing a run.
type RunStartRequested struct {
	BaseEvent

	RunID string `json:"run_id"`
}

func (e RunStartRequested) GetType() EventType {
	return RunStartRequestedEvent
}

type RunStarted struct {
	BaseEvent

	RunID          string `json:"run_id"`
	TotalWorkflows int    `json:"total_workflows"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunPaused struct {
	BaseEvent

	RunID                string `json:"run_id"`
	CurrentWorkflowIndex int    `json:"current_workflow_index"`
}

func (e RunPaused) GetType() EventType {
	return RunPausedEvent
}

type RunResumed struct {
	BaseEvent

	RunID                string `json:"run_id"`
	CurrentWorkflowIndex int    `json:"current_workflow_index"`
}

func (e RunResumed) GetType() EventType {
	return RunResumedEvent
}

type RunCancelled struct {
	BaseEvent

	RunID string `json:"run_id"`
}

func (e RunCancelled) GetType() EventType {
	return RunCancelledEvent
}

// RunFinished is published when the batch loop reaches a terminal state.
type RunFinished struct {
	BaseEvent

	RunID              string `json:"run_id"`
	Status             string `json:"status"`
	CompletedWorkflows int    `json:"completed_workflows"`
	FailedWorkflows    int    `json:"failed_workflows"`
	DurationMs         int64  `json:"duration_ms"`
}

func (e RunFinished) GetType() EventType {
	return RunFinishedEvent
}

type RunWorkflowCompleted struct {
	BaseEvent

	RunID      string `json:"run_id"`
	WorkflowID string `json:"workflow_id"`
	DurationMs int64  `json:"duration_ms"`
}

func (e RunWorkflowCompleted) GetType() EventType {
	return RunWorkflowCompletedEvent
}

type RunWorkflowFailed struct {
	BaseEvent

	RunID      string `json:"run_id"`
	WorkflowID string `json:"workflow_id"`
	Error      string `json:"error"`
	DurationMs int64  `json:"duration_ms"`
}

func (e RunWorkflowFailed) GetType() EventType {
	return RunWorkflowFailedEvent
}

type GateApproved struct {
	BaseEvent

	GateID      string `json:"gate_id"`
	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
	ReviewedBy  string `json:"reviewed_by"`
}

func (e GateApproved) GetType() EventType {
	return GateApprovedEvent
}

type GateRejected struct {
	BaseEvent

	GateID      string `json:"gate_id"`
	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
	ReviewedBy  string `json:"reviewed_by"`
	Reason      string `json:"reason"`
}

func (e GateRejected) GetType() EventType {
	return GateRejectedEvent
}

type InterventionCreated struct {
	BaseEvent

	InterventionID   string `json:"intervention_id"`
	ExecutionID      string `json:"execution_id"`
	InterventionType string `json:"intervention_type"`
}

func (e InterventionCreated) GetType() EventType {
	return InterventionCreatedEvent
}
