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

// Interventions manages intervention records. An intervention is created
// once per control action; only its status flips to applied or failed,
// by the execution engine that consumes it.
type Interventions struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

func NewInterventions(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Interventions {
	return &Interventions{
		persistence: persistence,
		publisher:   publisher,
		logger:      logger.With("service", "interventions"),
	}
}

// CreateInterventionRequest contains the fields callers provide for a
// new intervention.
type CreateInterventionRequest struct {
	WorkflowID       string                  `validate:"required"`
	ExecutionID      string                  `validate:"required"`
	StepID           *string                 ``
	InterventionType models.InterventionType `validate:"required,oneof=pause resume inject approve reject cancel"`
	Message          string                  ``
	Data             map[string]any          ``
	CreatedBy        string                  ``
}

// Create persists a new pending intervention.
func (s *Interventions) Create(ctx context.Context, projectID string, req CreateInterventionRequest) (*models.Intervention, error) {
	now := time.Now().UTC()

	intervention := &models.Intervention{
		ID:               uuid.New().String(),
		ProjectID:        projectID,
		WorkflowID:       req.WorkflowID,
		ExecutionID:      req.ExecutionID,
		StepID:           req.StepID,
		InterventionType: req.InterventionType,
		Message:          req.Message,
		Data:             req.Data,
		Status:           models.InterventionStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        req.CreatedBy,
	}

	err := s.persistence.InterventionRepository().Save(ctx, intervention)
	if err != nil {
		return nil, fmt.Errorf("failed to create intervention: %w", err)
	}

	s.publish(ctx, events.InterventionCreated{
		BaseEvent:        events.NewBaseEvent(events.InterventionCreatedEvent, projectID),
		InterventionID:   intervention.ID,
		ExecutionID:      intervention.ExecutionID,
		InterventionType: string(intervention.InterventionType),
	})

	return intervention, nil
}

// FetchByID retrieves an intervention within the project scope.
func (s *Interventions) FetchByID(ctx context.Context, projectID, interventionID string) (*models.Intervention, error) {
	intervention, err := s.persistence.InterventionRepository().GetByID(ctx, projectID, interventionID)
	if err != nil {
		return nil, err
	}

	if intervention == nil {
		return nil, ErrInterventionNotFound
	}

	return intervention, nil
}

// List retrieves interventions with filtering, creation time ascending.
func (s *Interventions) List(ctx context.Context, projectID string, opts persistence.ListInterventionsOptions) ([]*models.Intervention, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	if opts.Limit > 100 {
		opts.Limit = 100
	}

	interventions, err := s.persistence.InterventionRepository().List(ctx, projectID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list interventions: %w", err)
	}

	return interventions, nil
}

// PendingForExecution lists an execution's pending interventions in
// arrival order, for the engine to consume.
func (s *Interventions) PendingForExecution(ctx context.Context, projectID, executionID string) ([]*models.Intervention, error) {
	pending := models.InterventionStatusPending

	interventions, err := s.persistence.InterventionRepository().List(ctx, projectID, persistence.ListInterventionsOptions{
		ExecutionID: executionID,
		Status:      &pending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending interventions: %w", err)
	}

	return interventions, nil
}

// MarkApplied flips a pending intervention to applied.
func (s *Interventions) MarkApplied(ctx context.Context, projectID, interventionID string) (*models.Intervention, error) {
	return s.resolve(ctx, projectID, interventionID, models.InterventionStatusApplied)
}

// MarkFailed flips a pending intervention to failed.
func (s *Interventions) MarkFailed(ctx context.Context, projectID, interventionID string) (*models.Intervention, error) {
	return s.resolve(ctx, projectID, interventionID, models.InterventionStatusFailed)
}

func (s *Interventions) resolve(ctx context.Context, projectID, interventionID string, status models.InterventionStatus) (*models.Intervention, error) {
	intervention, err := s.FetchByID(ctx, projectID, interventionID)
	if err != nil {
		return nil, err
	}

	if intervention.Status != models.InterventionStatusPending {
		return nil, &ServiceError{
			Op:      "resolve",
			Code:    "INTERVENTION_RESOLVED",
			Message: fmt.Sprintf("intervention is already %s", intervention.Status),
			Err:     ErrInterventionResolved,
		}
	}

	intervention.Status = status
	intervention.UpdatedAt = time.Now().UTC()

	err = s.persistence.InterventionRepository().Save(ctx, intervention)
	if err != nil {
		return nil, fmt.Errorf("failed to update intervention: %w", err)
	}

	return intervention, nil
}

func (s *Interventions) publish(ctx context.Context, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
