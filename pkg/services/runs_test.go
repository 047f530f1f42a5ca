package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmatrix/matrix/pkg/lease"
	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence/file"
	"github.com/agentmatrix/matrix/pkg/protocol"
)

const testProject = "project-1"

// stubExecutor returns canned results per workflow id and can invoke a
// callback before each execution, used to flip run status mid-batch.
type stubExecutor struct {
	results    map[string]*protocol.ExecutionResult
	failures   map[string]error
	beforeEach func(workflowID string)
	calls      []string
}

func (e *stubExecutor) ExecuteWorkflow(_ context.Context, _, workflowID string) (*protocol.ExecutionResult, error) {
	if e.beforeEach != nil {
		e.beforeEach(workflowID)
	}

	e.calls = append(e.calls, workflowID)

	if err, ok := e.failures[workflowID]; ok {
		return nil, err
	}

	if result, ok := e.results[workflowID]; ok {
		return result, nil
	}

	return &protocol.ExecutionResult{Output: "ok"}, nil
}

func newRunService(t *testing.T, executor protocol.WorkflowExecutor) (*OvernightRuns, *file.Persistence) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	service := NewOvernightRuns(persistence, executor, nil, lease.NewLocalManager(), slog.Default())

	return service, persistence
}

func createRun(t *testing.T, service *OvernightRuns, workflowIDs []string) *models.OvernightRun {
	t.Helper()

	run, err := service.Create(t.Context(), testProject, CreateRunRequest{
		Name:        "nightly batch",
		WorkflowIDs: workflowIDs,
	})
	require.NoError(t, err)

	return run
}

func TestOvernightRuns_Create(t *testing.T) {
	service, _ := newRunService(t, nil)

	run := createRun(t, service, []string{"w1", "w2"})

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, models.RunStatusScheduled, run.Status)
	assert.Equal(t, 0, run.CurrentWorkflowIndex)
	assert.Empty(t, run.WorkflowResults)
	assert.True(t, run.TotalCost.IsZero())
}

func TestOvernightRuns_Create_NoWorkflows(t *testing.T) {
	service, _ := newRunService(t, nil)

	_, err := service.Create(t.Context(), testProject, CreateRunRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoWorkflows)
}

func TestOvernightRuns_Execute_AllSucceed(t *testing.T) {
	executor := &stubExecutor{
		results: map[string]*protocol.ExecutionResult{
			"w1": {Output: "a", TokensInput: 10, TokensOutput: 20, Cost: decimal.NewFromFloat(0.5)},
			"w2": {Output: "b", TokensInput: 5, TokensOutput: 15, Cost: decimal.NewFromFloat(0.25)},
		},
	}
	service, _ := newRunService(t, executor)
	run := createRun(t, service, []string{"w1", "w2"})

	final, err := service.Execute(t.Context(), testProject, run.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, final.Status)
	assert.Len(t, final.WorkflowResults, 2)
	assert.Equal(t, int64(15), final.TotalTokensInput)
	assert.Equal(t, int64(35), final.TotalTokensOutput)
	assert.True(t, final.TotalCost.Equal(decimal.NewFromFloat(0.75)))
	assert.NotNil(t, final.StartedAt)
	assert.NotNil(t, final.CompletedAt)
}

// Mixed success and failure: the failure is recorded in order, totals
// only accumulate successes, and the run ends failed.
func TestOvernightRuns_Execute_PartialFailure(t *testing.T) {
	executor := &stubExecutor{
		results: map[string]*protocol.ExecutionResult{
			"w1": {Output: "a", TokensInput: 10, Cost: decimal.NewFromFloat(0.5)},
			"w3": {Output: "c", TokensInput: 10, Cost: decimal.NewFromFloat(0.5)},
		},
		failures: map[string]error{
			"w2": errors.New("agent exploded"),
		},
	}
	service, _ := newRunService(t, executor)
	run := createRun(t, service, []string{"w1", "w2", "w3"})

	final, err := service.Execute(t.Context(), testProject, run.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, final.Status)
	require.Len(t, final.WorkflowResults, 3)
	assert.Equal(t, "w1", final.WorkflowResults[0].WorkflowID)
	assert.Equal(t, models.ResultStatusCompleted, final.WorkflowResults[0].Status)
	assert.Equal(t, "w2", final.WorkflowResults[1].WorkflowID)
	assert.Equal(t, models.ResultStatusFailed, final.WorkflowResults[1].Status)
	assert.Equal(t, "agent exploded", final.WorkflowResults[1].Error)
	assert.Equal(t, "w3", final.WorkflowResults[2].WorkflowID)
	assert.Equal(t, models.ResultStatusCompleted, final.WorkflowResults[2].Status)

	// Failed item contributes nothing to the totals.
	assert.Equal(t, int64(20), final.TotalTokensInput)
	assert.True(t, final.TotalCost.Equal(decimal.NewFromFloat(1.0)))

	// Cursor stays at the last processed index.
	assert.Equal(t, 2, final.CurrentWorkflowIndex)
}

// Pause flipped externally between items stops the loop without
// overwriting the paused status.
func TestOvernightRuns_Execute_PauseObservedAtBoundary(t *testing.T) {
	executor := &stubExecutor{
		results: map[string]*protocol.ExecutionResult{
			"w1": {Output: "a"},
		},
	}
	service, persistence := newRunService(t, executor)
	run := createRun(t, service, []string{"w1", "w2"})
	runID := run.ID

	// Pause is written while w1 executes; the loop observes it at the top
	// of the w2 iteration and must not execute w2.
	executor.beforeEach = func(workflowID string) {
		if workflowID != "w1" {
			t.Fatalf("unexpected execution of %s", workflowID)
		}

		stored, err := persistence.OvernightRunRepository().GetByID(t.Context(), testProject, runID)
		require.NoError(t, err)
		stored.ApplyStatus(models.RunStatusPaused, time.Now().UTC())
		require.NoError(t, persistence.OvernightRunRepository().Save(t.Context(), stored))
	}

	final, err := service.Execute(t.Context(), testProject, runID)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusPaused, final.Status)
	assert.Len(t, final.WorkflowResults, 1)
	assert.Equal(t, []string{"w1"}, executor.calls)
}

// Resuming a paused run continues from the persisted cursor.
func TestOvernightRuns_Execute_ResumeFromCursor(t *testing.T) {
	executor := &stubExecutor{}
	service, persistence := newRunService(t, executor)
	run := createRun(t, service, []string{"w1", "w2", "w3"})

	// Simulate an earlier interrupted run: one result recorded, cursor
	// at 1, paused.
	now := time.Now().UTC()
	run.ApplyStatus(models.RunStatusRunning, now)
	run.WorkflowResults = []models.WorkflowResult{
		{WorkflowID: "w1", Status: models.ResultStatusCompleted, DurationMS: 100},
	}
	run.CurrentWorkflowIndex = 1
	run.ApplyStatus(models.RunStatusPaused, now)
	require.NoError(t, persistence.OvernightRunRepository().Save(t.Context(), run))

	_, err := service.Resume(t.Context(), testProject, run.ID)
	require.NoError(t, err)

	final, err := service.Execute(t.Context(), testProject, run.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, final.Status)
	assert.Len(t, final.WorkflowResults, 3)
	assert.Equal(t, []string{"w2", "w3"}, executor.calls)
}

func TestOvernightRuns_Execute_NoExecutor(t *testing.T) {
	service, _ := newRunService(t, nil)
	run := createRun(t, service, []string{"w1"})

	_, err := service.Execute(t.Context(), testProject, run.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutorNotConfigured)
}

func TestOvernightRuns_Execute_TerminalRunRejected(t *testing.T) {
	executor := &stubExecutor{}
	service, _ := newRunService(t, executor)
	run := createRun(t, service, []string{"w1"})

	final, err := service.Execute(t.Context(), testProject, run.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusCompleted, final.Status)

	_, err = service.Execute(t.Context(), testProject, run.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Equal(t, []string{"w1"}, executor.calls)
}

// Cursor already past the end of the list: zero iterations, completed
// pass-through.
func TestOvernightRuns_Execute_CursorBeyondList(t *testing.T) {
	executor := &stubExecutor{}
	service, persistence := newRunService(t, executor)
	run := createRun(t, service, []string{"w1"})

	run.CurrentWorkflowIndex = 5
	require.NoError(t, persistence.OvernightRunRepository().Save(t.Context(), run))

	final, err := service.Execute(t.Context(), testProject, run.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, final.Status)
	assert.Empty(t, executor.calls)
	assert.Empty(t, final.WorkflowResults)
}

func TestOvernightRuns_Execute_NotFound(t *testing.T) {
	executor := &stubExecutor{}
	service, _ := newRunService(t, executor)

	_, err := service.Execute(t.Context(), testProject, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestOvernightRuns_Transitions(t *testing.T) {
	service, _ := newRunService(t, nil)

	t.Run("pause scheduled run rejected", func(t *testing.T) {
		run := createRun(t, service, []string{"w1"})

		_, err := service.Pause(t.Context(), testProject, run.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("start then pause then resume", func(t *testing.T) {
		run := createRun(t, service, []string{"w1"})

		started, err := service.Start(t.Context(), testProject, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusRunning, started.Status)
		assert.NotNil(t, started.StartedAt)

		paused, err := service.Pause(t.Context(), testProject, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusPaused, paused.Status)

		resumed, err := service.Resume(t.Context(), testProject, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusRunning, resumed.Status)
		assert.Equal(t, started.StartedAt, resumed.StartedAt)
	})

	t.Run("cancel from scheduled", func(t *testing.T) {
		run := createRun(t, service, []string{"w1"})

		cancelled, err := service.Cancel(t.Context(), testProject, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCancelled, cancelled.Status)
		assert.NotNil(t, cancelled.CompletedAt)
	})

	t.Run("cancel completed run rejected", func(t *testing.T) {
		executor := &stubExecutor{}
		execService, _ := newRunService(t, executor)
		run := createRun(t, execService, []string{"w1"})

		_, err := execService.Execute(t.Context(), testProject, run.ID)
		require.NoError(t, err)

		_, err = execService.Cancel(t.Context(), testProject, run.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})
}

func TestOvernightRuns_GetProgress(t *testing.T) {
	service, persistence := newRunService(t, nil)
	run := createRun(t, service, []string{"w1", "w2", "w3", "w4"})

	run.WorkflowResults = []models.WorkflowResult{
		{WorkflowID: "w1", Status: models.ResultStatusCompleted, DurationMS: 1000},
		{WorkflowID: "w2", Status: models.ResultStatusFailed, DurationMS: 500},
	}
	run.CurrentWorkflowIndex = 2
	require.NoError(t, persistence.OvernightRunRepository().Save(t.Context(), run))

	progress, err := service.GetProgress(t.Context(), testProject, run.ID)
	require.NoError(t, err)

	assert.Equal(t, 4, progress.TotalWorkflows)
	assert.Equal(t, 1, progress.CompletedWorkflows)
	assert.Equal(t, 1, progress.FailedWorkflows)
	assert.InDelta(t, 50.0, progress.ProgressPercent, 0.001)
	require.NotNil(t, progress.CurrentWorkflowID)
	assert.Equal(t, "w3", *progress.CurrentWorkflowID)

	// avg(1000, 500) = 750ms per item, 2 items remaining.
	require.NotNil(t, progress.EstimatedRemainingMS)
	assert.Equal(t, int64(1500), *progress.EstimatedRemainingMS)
}

func TestOvernightRuns_GetProgress_NoResults(t *testing.T) {
	service, _ := newRunService(t, nil)
	run := createRun(t, service, []string{"w1", "w2"})

	progress, err := service.GetProgress(t.Context(), testProject, run.ID)
	require.NoError(t, err)

	assert.Zero(t, progress.ProgressPercent)
	assert.Nil(t, progress.EstimatedRemainingMS)

	// Idempotent without intervening writes.
	again, err := service.GetProgress(t.Context(), testProject, run.ID)
	require.NoError(t, err)
	assert.Equal(t, progress, again)
}

// A held lease makes a second Execute for the same run fail fast.
func TestOvernightRuns_Execute_LeaseHeld(t *testing.T) {
	leases := lease.NewLocalManager()
	persistence := file.NewPersistence(t.TempDir())
	service := NewOvernightRuns(persistence, &stubExecutor{}, nil, leases, slog.Default())
	run := createRun(t, service, []string{"w1"})

	held, err := leases.Acquire(t.Context(), "run:"+run.ID, time.Minute)
	require.NoError(t, err)

	defer func() { _ = held.Release(t.Context()) }()

	_, err = service.Execute(t.Context(), testProject, run.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, lease.ErrNotAcquired)
}

// Totals never decrease across persists within one execute call.
func TestOvernightRuns_Execute_MonotonicTotals(t *testing.T) {
	executor := &stubExecutor{
		results: map[string]*protocol.ExecutionResult{
			"w1": {TokensInput: 5, Cost: decimal.NewFromFloat(0.1)},
			"w3": {TokensInput: 7, Cost: decimal.NewFromFloat(0.2)},
		},
		failures: map[string]error{
			"w2": errors.New("boom"),
		},
	}
	service, persistence := newRunService(t, executor)
	run := createRun(t, service, []string{"w1", "w2", "w3"})

	var lastTokens int64

	lastCost := decimal.Zero
	executor.beforeEach = func(string) {
		stored, err := persistence.OvernightRunRepository().GetByID(t.Context(), testProject, run.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stored.TotalTokensInput, lastTokens)
		assert.True(t, stored.TotalCost.GreaterThanOrEqual(lastCost))
		lastTokens = stored.TotalTokensInput
		lastCost = stored.TotalCost
	}

	_, err := service.Execute(t.Context(), testProject, run.ID)
	require.NoError(t, err)
}
