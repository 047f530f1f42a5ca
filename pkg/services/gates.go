package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentmatrix/matrix/pkg/eventbus"
	"github.com/agentmatrix/matrix/pkg/events"
	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
)

// Gates manages approval gates. Gates are pure records: creating or
// resolving one signals the external execution engine, it does not
// itself pause or resume anything.
type Gates struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

func NewGates(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Gates {
	return &Gates{
		persistence: persistence,
		publisher:   publisher,
		logger:      logger.With("service", "gates"),
	}
}

// CreateGateRequest contains the fields callers provide for a new gate.
type CreateGateRequest struct {
	WorkflowID  string          `validate:"required"`
	ExecutionID string          `validate:"required"`
	StepID      string          `validate:"required"`
	GateType    models.GateType `validate:"required,oneof=approval review deploy cost"`
	Config      map[string]any  ``
	Context     map[string]any  ``
	CreatedBy   string          ``
}

// Create persists a new pending gate for an execution step.
func (s *Gates) Create(ctx context.Context, projectID string, req CreateGateRequest) (*models.Gate, error) {
	if req.StepID == "" {
		return nil, NewValidationError("Create", "GATE_STEP_REQUIRED", "gate requires a step id", ErrGateStepRequired)
	}

	if req.GateType == models.GateTypeCost {
		if _, ok := req.Config["cost_threshold"]; !ok {
			return nil, NewValidationError("Create", "COST_THRESHOLD_REQUIRED",
				"cost gate requires a cost_threshold config value", ErrCostThresholdRequired)
		}
	}

	now := time.Now().UTC()

	gate := &models.Gate{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		WorkflowID:  req.WorkflowID,
		ExecutionID: req.ExecutionID,
		StepID:      req.StepID,
		GateType:    req.GateType,
		Status:      models.GateStatusPending,
		Config:      req.Config,
		Context:     req.Context,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   req.CreatedBy,
	}

	err := s.persistence.GateRepository().Save(ctx, gate)
	if err != nil {
		return nil, fmt.Errorf("failed to create gate: %w", err)
	}

	return gate, nil
}

// CreateApprovalGate creates a pending approval gate for a step.
func (s *Gates) CreateApprovalGate(ctx context.Context, projectID, workflowID, executionID, stepID, createdBy string) (*models.Gate, error) {
	return s.Create(ctx, projectID, CreateGateRequest{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		StepID:      stepID,
		GateType:    models.GateTypeApproval,
		CreatedBy:   createdBy,
	})
}

// CreateCostGate creates a pending cost gate with the given threshold.
func (s *Gates) CreateCostGate(ctx context.Context, projectID, workflowID, executionID, stepID string, costThreshold float64, createdBy string) (*models.Gate, error) {
	return s.Create(ctx, projectID, CreateGateRequest{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		StepID:      stepID,
		GateType:    models.GateTypeCost,
		Config:      map[string]any{"cost_threshold": costThreshold},
		CreatedBy:   createdBy,
	})
}

// FetchByID retrieves a gate within the project scope.
func (s *Gates) FetchByID(ctx context.Context, projectID, gateID string) (*models.Gate, error) {
	gate, err := s.persistence.GateRepository().GetByID(ctx, projectID, gateID)
	if err != nil {
		return nil, err
	}

	if gate == nil {
		return nil, ErrGateNotFound
	}

	return gate, nil
}

// List retrieves gates with filtering and pagination.
func (s *Gates) List(ctx context.Context, projectID string, opts persistence.ListGatesOptions) ([]*models.Gate, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	if opts.Limit > 100 {
		opts.Limit = 100
	}

	gates, err := s.persistence.GateRepository().List(ctx, projectID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list gates: %w", err)
	}

	return gates, nil
}

// Approve resolves a pending gate as approved, recording the reviewer.
// A gate is resolved exactly once.
func (s *Gates) Approve(ctx context.Context, projectID, gateID, reviewedBy string) (*models.Gate, error) {
	gate, err := s.FetchByID(ctx, projectID, gateID)
	if err != nil {
		return nil, err
	}

	if gate.Resolved() {
		return nil, &ServiceError{
			Op:      "Approve",
			Code:    "GATE_ALREADY_RESOLVED",
			Message: fmt.Sprintf("gate is already %s", gate.Status),
			Err:     ErrGateAlreadyResolved,
		}
	}

	gate.Status = models.GateStatusApproved
	gate.ReviewedBy = reviewedBy
	gate.UpdatedAt = time.Now().UTC()

	err = s.persistence.GateRepository().Save(ctx, gate)
	if err != nil {
		return nil, fmt.Errorf("failed to approve gate: %w", err)
	}

	s.publish(ctx, events.GateApproved{
		BaseEvent:   events.NewBaseEvent(events.GateApprovedEvent, projectID),
		GateID:      gate.ID,
		ExecutionID: gate.ExecutionID,
		StepID:      gate.StepID,
		ReviewedBy:  reviewedBy,
	})

	return gate, nil
}

// Reject resolves a pending gate as rejected, recording the reviewer and
// reason.
func (s *Gates) Reject(ctx context.Context, projectID, gateID, reviewedBy, reason string) (*models.Gate, error) {
	gate, err := s.FetchByID(ctx, projectID, gateID)
	if err != nil {
		return nil, err
	}

	if gate.Resolved() {
		return nil, &ServiceError{
			Op:      "Reject",
			Code:    "GATE_ALREADY_RESOLVED",
			Message: fmt.Sprintf("gate is already %s", gate.Status),
			Err:     ErrGateAlreadyResolved,
		}
	}

	gate.Status = models.GateStatusRejected
	gate.ReviewedBy = reviewedBy
	gate.RejectionReason = reason
	gate.UpdatedAt = time.Now().UTC()

	err = s.persistence.GateRepository().Save(ctx, gate)
	if err != nil {
		return nil, fmt.Errorf("failed to reject gate: %w", err)
	}

	s.publish(ctx, events.GateRejected{
		BaseEvent:   events.NewBaseEvent(events.GateRejectedEvent, projectID),
		GateID:      gate.ID,
		ExecutionID: gate.ExecutionID,
		StepID:      gate.StepID,
		ReviewedBy:  reviewedBy,
		Reason:      reason,
	})

	return gate, nil
}

// PendingForExecution lists an execution's unresolved gates, oldest first.
func (s *Gates) PendingForExecution(ctx context.Context, projectID, executionID string) ([]*models.Gate, error) {
	pending := models.GateStatusPending

	gates, err := s.persistence.GateRepository().List(ctx, projectID, persistence.ListGatesOptions{
		ExecutionID: executionID,
		Status:      &pending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending gates: %w", err)
	}

	return gates, nil
}

// GateForStep returns the gate for the exact (execution, step) pair.
func (s *Gates) GateForStep(ctx context.Context, projectID, executionID, stepID string) (*models.Gate, error) {
	gate, err := s.persistence.GateRepository().GetForStep(ctx, projectID, executionID, stepID)
	if err != nil {
		return nil, err
	}

	if gate == nil {
		return nil, ErrGateNotFound
	}

	return gate, nil
}

// IsStepApproved reports whether an approved gate exists for the exact
// (execution, step) pair. No gate at all, a pending gate and a rejected
// gate all answer false; absence is never implicit approval.
func (s *Gates) IsStepApproved(ctx context.Context, projectID, executionID, stepID string) (bool, error) {
	gate, err := s.persistence.GateRepository().GetForStep(ctx, projectID, executionID, stepID)
	if err != nil {
		return false, err
	}

	return gate != nil && gate.Status == models.GateStatusApproved, nil
}

func (s *Gates) publish(ctx context.Context, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
