package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentmatrix/matrix/pkg/eventbus"
	"github.com/agentmatrix/matrix/pkg/events"
	"github.com/agentmatrix/matrix/pkg/lease"
	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
	"github.com/agentmatrix/matrix/pkg/protocol"
)

// executeLeaseTTL bounds how long a crashed runner blocks a takeover.
const executeLeaseTTL = 5 * time.Minute

// OvernightRuns manages overnight batch runs: lifecycle transitions, the
// sequential batch loop, and derived progress.
type OvernightRuns struct {
	persistence persistence.Persistence
	executor    protocol.WorkflowExecutor
	publisher   eventbus.EventPublisher
	leases      lease.Manager
	logger      *slog.Logger
}

// NewOvernightRuns creates the run service. The executor may be nil for
// deployments that only manage run records; Execute then fails with
// ErrExecutorNotConfigured.
func NewOvernightRuns(
	persistence persistence.Persistence,
	executor protocol.WorkflowExecutor,
	publisher eventbus.EventPublisher,
	leases lease.Manager,
	logger *slog.Logger,
) *OvernightRuns {
	return &OvernightRuns{
		persistence: persistence,
		executor:    executor,
		publisher:   publisher,
		leases:      leases,
		logger:      logger.With("service", "overnight_runs"),
	}
}

// CreateRunRequest contains the fields callers provide for a new run.
type CreateRunRequest struct {
	Name         string            `validate:"max=255"`
	Description  string            ``
	WorkflowIDs  []string          `validate:"required,min=1,dive,required"`
	ScheduledFor *time.Time        ``
	Config       *models.RunConfig ``
	Tags         []string          ``
	Metadata     map[string]any    ``
	CreatedBy    string            ``
}

// Create persists a new run in scheduled status with the cursor at zero.
func (s *OvernightRuns) Create(ctx context.Context, projectID string, req CreateRunRequest) (*models.OvernightRun, error) {
	if len(req.WorkflowIDs) == 0 {
		return nil, NewValidationError("Create", "NO_WORKFLOWS", "run must contain at least one workflow", ErrNoWorkflows)
	}

	now := time.Now().UTC()

	run := &models.OvernightRun{
		ID:                   uuid.New().String(),
		ProjectID:            projectID,
		Name:                 req.Name,
		Description:          req.Description,
		WorkflowIDs:          req.WorkflowIDs,
		Status:               models.RunStatusScheduled,
		CurrentWorkflowIndex: 0,
		WorkflowResults:      []models.WorkflowResult{},
		ScheduledFor:         req.ScheduledFor,
		Config:               req.Config,
		Tags:                 req.Tags,
		Metadata:             req.Metadata,
		CreatedAt:            now,
		UpdatedAt:            now,
		CreatedBy:            req.CreatedBy,
	}

	err := s.persistence.OvernightRunRepository().Save(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// FetchByID retrieves a run within the project scope.
func (s *OvernightRuns) FetchByID(ctx context.Context, projectID, runID string) (*models.OvernightRun, error) {
	run, err := s.persistence.OvernightRunRepository().GetByID(ctx, projectID, runID)
	if err != nil {
		return nil, err
	}

	if run == nil {
		return nil, ErrRunNotFound
	}

	return run, nil
}

// List retrieves runs with filtering and pagination.
func (s *OvernightRuns) List(ctx context.Context, projectID string, opts persistence.ListRunsOptions) ([]*models.OvernightRun, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	if opts.Limit > 100 {
		opts.Limit = 100
	}

	runs, err := s.persistence.OvernightRunRepository().List(ctx, projectID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

// Delete soft-deletes a run.
func (s *OvernightRuns) Delete(ctx context.Context, projectID, runID string) error {
	err := s.persistence.OvernightRunRepository().Delete(ctx, projectID, runID)
	if err != nil {
		if persistence.IsRunNotFound(err) {
			return ErrRunNotFound
		}

		return fmt.Errorf("failed to delete run: %w", err)
	}

	return nil
}

// Start transitions scheduled -> running and asks the runner to execute.
func (s *OvernightRuns) Start(ctx context.Context, projectID, runID string) (*models.OvernightRun, error) {
	run, err := s.transition(ctx, projectID, runID, models.RunStatusRunning)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.RunStartRequested{
		BaseEvent: events.NewBaseEvent(events.RunStartRequestedEvent, projectID),
		RunID:     run.ID,
	})

	return run, nil
}

// Pause transitions running -> paused. The batch loop observes the new
// status at its next iteration boundary.
func (s *OvernightRuns) Pause(ctx context.Context, projectID, runID string) (*models.OvernightRun, error) {
	run, err := s.transition(ctx, projectID, runID, models.RunStatusPaused)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.RunPaused{
		BaseEvent:            events.NewBaseEvent(events.RunPausedEvent, projectID),
		RunID:                run.ID,
		CurrentWorkflowIndex: run.CurrentWorkflowIndex,
	})

	return run, nil
}

// Resume transitions paused -> running and asks the runner to continue
// from the persisted cursor.
func (s *OvernightRuns) Resume(ctx context.Context, projectID, runID string) (*models.OvernightRun, error) {
	run, err := s.transition(ctx, projectID, runID, models.RunStatusRunning)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.RunResumed{
		BaseEvent:            events.NewBaseEvent(events.RunResumedEvent, projectID),
		RunID:                run.ID,
		CurrentWorkflowIndex: run.CurrentWorkflowIndex,
	})
	s.publish(ctx, events.RunStartRequested{
		BaseEvent: events.NewBaseEvent(events.RunStartRequestedEvent, projectID),
		RunID:     run.ID,
	})

	return run, nil
}

// Cancel transitions the run to cancelled from any status that permits it.
func (s *OvernightRuns) Cancel(ctx context.Context, projectID, runID string) (*models.OvernightRun, error) {
	run, err := s.transition(ctx, projectID, runID, models.RunStatusCancelled)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.RunCancelled{
		BaseEvent: events.NewBaseEvent(events.RunCancelledEvent, projectID),
		RunID:     run.ID,
	})

	return run, nil
}

// transition validates the state graph and persists the new status.
func (s *OvernightRuns) transition(ctx context.Context, projectID, runID string, next models.RunStatus) (*models.OvernightRun, error) {
	run, err := s.FetchByID(ctx, projectID, runID)
	if err != nil {
		return nil, err
	}

	if !run.Status.CanTransitionTo(next) {
		return nil, &ServiceError{
			Op:      "transition",
			Code:    "INVALID_STATE_TRANSITION",
			Message: fmt.Sprintf("cannot transition run from %s to %s", run.Status, next),
			Err:     ErrInvalidStateTransition,
		}
	}

	run.ApplyStatus(next, time.Now().UTC())

	err = s.persistence.OvernightRunRepository().Save(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("failed to persist run transition: %w", err)
	}

	return run, nil
}

// Execute runs the batch loop for the run: sequentially executes each
// workflow from the persisted cursor, tolerating per-item failure,
// persisting after every item, and observing pause/cancel at iteration
// boundaries. It returns the final persisted run state.
//
// Concurrent Execute calls for the same run are serialized by a
// single-owner lease; a second caller fails with lease.ErrNotAcquired.
func (s *OvernightRuns) Execute(ctx context.Context, projectID, runID string) (*models.OvernightRun, error) {
	if s.executor == nil {
		return nil, ErrExecutorNotConfigured
	}

	run, err := s.FetchByID(ctx, projectID, runID)
	if err != nil {
		return nil, err
	}

	if run.Status.Terminal() {
		return nil, &ServiceError{
			Op:      "Execute",
			Code:    "INVALID_STATE_TRANSITION",
			Message: fmt.Sprintf("run is already %s", run.Status),
			Err:     ErrInvalidStateTransition,
		}
	}

	held, err := s.acquireLease(ctx, run)
	if err != nil {
		return nil, err
	}

	if held != nil {
		defer func() {
			if err := held.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "failed to release run lease", "run_id", runID, "error", err)
			}
		}()
	}

	repo := s.persistence.OvernightRunRepository()
	logger := s.logger.With("run_id", runID, "project_id", projectID)

	if run.Status != models.RunStatusRunning {
		run.ApplyStatus(models.RunStatusRunning, time.Now().UTC())

		if err := repo.Save(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to mark run running: %w", err)
		}
	}

	s.publish(ctx, events.RunStarted{
		BaseEvent:      events.NewBaseEvent(events.RunStartedEvent, projectID),
		RunID:          run.ID,
		TotalWorkflows: len(run.WorkflowIDs),
	})

	logger.InfoContext(ctx, "Starting batch execution",
		"total_workflows", len(run.WorkflowIDs),
		"start_index", run.CurrentWorkflowIndex)

	// Working copies seeded from the persisted record so a resumed run
	// continues accumulating instead of restarting from zero.
	results := run.WorkflowResults
	totalTokensInput := run.TotalTokensInput
	totalTokensOutput := run.TotalTokensOutput
	totalCost := run.TotalCost
	batchStart := time.Now()

	for i := run.CurrentWorkflowIndex; i < len(run.WorkflowIDs); i++ {
		// Fresh read each iteration: pause/cancel writers flip status
		// concurrently and are observed here, at the boundary.
		current, err := s.FetchByID(ctx, projectID, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read run during execution: %w", err)
		}

		if current.Status == models.RunStatusPaused || current.Status == models.RunStatusCancelled {
			logger.InfoContext(ctx, "Stopping batch loop on external status change", "status", current.Status)

			return current, nil
		}

		run = current
		run.CurrentWorkflowIndex = i
		run.UpdatedAt = time.Now().UTC()

		if err := repo.Save(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to persist workflow index: %w", err)
		}

		if held != nil {
			if err := held.Renew(ctx, executeLeaseTTL); err != nil {
				if errors.Is(err, lease.ErrLeaseLost) {
					logger.WarnContext(ctx, "Run lease lost, stopping batch loop", "index", i)

					return run, fmt.Errorf("stopping batch execution: %w", err)
				}

				return nil, fmt.Errorf("failed to renew run lease: %w", err)
			}
		}

		workflowID := run.WorkflowIDs[i]
		itemStart := time.Now()

		execResult, execErr := s.executor.ExecuteWorkflow(ctx, projectID, workflowID)
		durationMS := time.Since(itemStart).Milliseconds()

		if execErr != nil {
			logger.WarnContext(ctx, "Workflow failed within batch",
				"workflow_id", workflowID, "index", i, "error", execErr)

			results = append(results, models.WorkflowResult{
				WorkflowID: workflowID,
				Status:     models.ResultStatusFailed,
				Error:      execErr.Error(),
				DurationMS: durationMS,
			})

			s.publish(ctx, events.RunWorkflowFailed{
				BaseEvent:  events.NewBaseEvent(events.RunWorkflowFailedEvent, projectID),
				RunID:      run.ID,
				WorkflowID: workflowID,
				Error:      execErr.Error(),
				DurationMs: durationMS,
			})
		} else {
			results = append(results, models.WorkflowResult{
				WorkflowID:   workflowID,
				Status:       models.ResultStatusCompleted,
				Output:       execResult.Output,
				TokensInput:  execResult.TokensInput,
				TokensOutput: execResult.TokensOutput,
				Cost:         execResult.Cost,
				DurationMS:   durationMS,
			})

			totalTokensInput += execResult.TokensInput
			totalTokensOutput += execResult.TokensOutput
			totalCost = totalCost.Add(execResult.Cost)

			s.publish(ctx, events.RunWorkflowCompleted{
				BaseEvent:  events.NewBaseEvent(events.RunWorkflowCompletedEvent, projectID),
				RunID:      run.ID,
				WorkflowID: workflowID,
				DurationMs: durationMS,
			})
		}

		// Re-read before saving the result so a pause or cancel written
		// while the item was executing is not clobbered by stale status.
		current, err = s.FetchByID(ctx, projectID, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read run before result persist: %w", err)
		}

		run = current
		run.WorkflowResults = results
		run.TotalTokensInput = totalTokensInput
		run.TotalTokensOutput = totalTokensOutput
		run.TotalCost = totalCost
		run.UpdatedAt = time.Now().UTC()

		if err := repo.Save(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to persist workflow result: %w", err)
		}
	}

	// Natural completion only: an early return above leaves the status
	// untouched for the pause/cancel writer that set it.
	current, err := s.FetchByID(ctx, projectID, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read run for final status: %w", err)
	}

	if current.Status != models.RunStatusRunning {
		return current, nil
	}

	run = current

	finalStatus := models.RunStatusCompleted
	if run.FailedResults() > 0 {
		finalStatus = models.RunStatusFailed
	}

	run.ApplyStatus(finalStatus, time.Now().UTC())

	if err := repo.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist final run status: %w", err)
	}

	logger.InfoContext(ctx, "Batch execution finished",
		"status", finalStatus,
		"completed", run.CompletedResults(),
		"failed", run.FailedResults(),
		"duration_ms", time.Since(batchStart).Milliseconds())

	s.publish(ctx, events.RunFinished{
		BaseEvent:          events.NewBaseEvent(events.RunFinishedEvent, projectID),
		RunID:              run.ID,
		Status:             string(finalStatus),
		CompletedWorkflows: run.CompletedResults(),
		FailedWorkflows:    run.FailedResults(),
		DurationMs:         time.Since(batchStart).Milliseconds(),
	})

	return run, nil
}

// GetProgress derives the progress view from the run's persisted state.
func (s *OvernightRuns) GetProgress(ctx context.Context, projectID, runID string) (*models.RunProgress, error) {
	run, err := s.FetchByID(ctx, projectID, runID)
	if err != nil {
		return nil, err
	}

	total := len(run.WorkflowIDs)
	completed := run.CompletedResults()
	failed := run.FailedResults()

	progress := &models.RunProgress{
		ID:                   run.ID,
		Status:               run.Status,
		TotalWorkflows:       total,
		CompletedWorkflows:   completed,
		FailedWorkflows:      failed,
		CurrentWorkflowIndex: run.CurrentWorkflowIndex,
	}

	if run.CurrentWorkflowIndex < total {
		id := run.WorkflowIDs[run.CurrentWorkflowIndex]
		progress.CurrentWorkflowID = &id
	}

	if total > 0 {
		progress.ProgressPercent = float64(completed+failed) / float64(total) * 100
	}

	// ETA averages every recorded result, failed ones included: a fast
	// failure pulls the estimate down.
	if len(run.WorkflowResults) > 0 {
		var totalDuration int64
		for _, result := range run.WorkflowResults {
			totalDuration += result.DurationMS
		}

		remaining := int64(total-completed-failed) * (totalDuration / int64(len(run.WorkflowResults)))
		progress.EstimatedRemainingMS = &remaining
	}

	return progress, nil
}

// acquireLease takes the single-owner execute lease when a lease manager
// is configured; without one, concurrent Execute calls are unsupported.
func (s *OvernightRuns) acquireLease(ctx context.Context, run *models.OvernightRun) (lease.Lease, error) {
	if s.leases == nil {
		return nil, nil
	}

	held, err := s.leases.Acquire(ctx, "run:"+run.ID, executeLeaseTTL)
	if err != nil {
		if errors.Is(err, lease.ErrNotAcquired) {
			return nil, &ServiceError{
				Op:      "Execute",
				Code:    "RUN_ALREADY_EXECUTING",
				Message: "another executor holds the lease for this run",
				Err:     err,
			}
		}

		return nil, fmt.Errorf("failed to acquire run lease: %w", err)
	}

	return held, nil
}

func (s *OvernightRuns) publish(ctx context.Context, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *OvernightRuns) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}
